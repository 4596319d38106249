// Package importcost answers, for a JS-family source file, how many bytes
// each of its external imports would add to a production bundle. Run is the
// single public entry point; everything else in internal/ is a stage of its
// pipeline.
package importcost

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/importcost/internal/debounce"
	ierrors "github.com/standardbeagle/importcost/internal/errors"
	"github.com/standardbeagle/importcost/internal/extractor"
	"github.com/standardbeagle/importcost/internal/resolver"
	"github.com/standardbeagle/importcost/internal/sizecache"
	"github.com/standardbeagle/importcost/internal/sizer"
	"github.com/standardbeagle/importcost/internal/types"
)

// EventType tags which of the four lifecycle events an Event carries.
type EventType string

const (
	EventStart      EventType = "start"
	EventCalculated EventType = "calculated"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one message on an Emitter's channel. Entries holds the full set
// for start/done; Entry holds the single freshly computed one for
// calculated; Err holds the fatal cause for error.
type Event struct {
	Type    EventType
	Entries []types.PackageEntry
	Entry   types.PackageEntry
	Err     error
}

// Emitter is the typed multi-event stream Run returns. Consumers range over
// Events() until it closes; a closed channel with no terminal done/error
// event does not occur in normal operation (Run always emits exactly one
// terminal event before closing).
type Emitter struct {
	events chan Event
	cancel context.CancelFunc
	closed chan struct{}
}

// Events returns the channel of lifecycle events. It closes once the
// terminal done or error event has been sent.
func (e *Emitter) Events() <-chan Event { return e.events }

// Cleanup synchronously cancels any in-flight work for this call and waits
// for its goroutine to exit, releasing ephemeral sizer directories on every
// in-flight call. Safe to call multiple times and safe to call after the
// emitter has already finished naturally.
func (e *Emitter) Cleanup() {
	e.cancel()
	<-e.closed
}

var (
	defaultRegistry debounce.Registry
	defaultCache    *sizecache.Cache
	defaultCacheErr error
	defaultCacheOne sync.Once
)

func defaultCacheInstance() (*sizecache.Cache, error) {
	defaultCacheOne.Do(func() {
		dir, err := sizecache.DefaultDir()
		if err != nil {
			defaultCache, defaultCacheErr = sizecache.Open("")
			return
		}
		defaultCache, defaultCacheErr = sizecache.Open(dir)
	})
	return defaultCache, defaultCacheErr
}

// ClearSizeCache empties the default cache's in-memory tier. Per the size
// cache's contract, disk state is untouched: a later lookup rehydrates it.
func ClearSizeCache() error {
	c, err := defaultCacheInstance()
	if err != nil {
		return err
	}
	c.Clear()
	return nil
}

// UseCacheDir points the default cache at dir instead of sizecache.DefaultDir,
// for drivers (cmd/importcost's --cache-dir, internal/mcpserver) that let a
// caller override where the on-disk tier lives. Must be called before the
// first Run.
func UseCacheDir(dir string) error {
	var err error
	defaultCacheOne.Do(func() {
		defaultCache, defaultCacheErr = sizecache.Open(dir)
	})
	if defaultCacheErr != nil {
		err = defaultCacheErr
	}
	return err
}

// maxConcurrentSizers bounds how many esbuild invocations run at once when
// config.Concurrent is true, independent of how many CPUs are free: esbuild
// itself spins up its own worker pool per call, so fanning out beyond a
// handful of simultaneous calls buys nothing and just competes for memory.
var maxConcurrentSizers = int64(runtime.NumCPU())

// Run extracts, resolves, sizes, and caches every external import in
// source, reporting progress over the returned Emitter's four-event
// lifecycle. A second call for the same fileName whose imports fingerprint
// differently from an earlier call still in flight cancels the earlier call,
// which then ends with a DebounceError; a second call with the same imports
// leaves the earlier one to finish.
func Run(ctx context.Context, fileName string, source []byte, language types.Language, config types.Config) *Emitter {
	cache, err := defaultCacheInstance()
	if err != nil {
		cache, _ = sizecache.Open("")
	}
	return run(ctx, &defaultRegistry, cache, fileName, source, language, config)
}

func run(ctx context.Context, registry *debounce.Registry, cache *sizecache.Cache, fileName string, source []byte, language types.Language, config types.Config) *Emitter {
	runCtx, cancel := context.WithCancel(ctx)
	em := &Emitter{
		events: make(chan Event, 16),
		cancel: cancel,
		closed: make(chan struct{}),
	}

	go func() {
		defer cancel()
		defer close(em.events)
		defer close(em.closed)
		execute(runCtx, registry, cache, fileName, source, language, config, em.events)
	}()

	return em
}

type resolvedImport struct {
	decl types.ImportDeclaration
	info *types.PackageInfo
}

func execute(ctx context.Context, registry *debounce.Registry, cache *sizecache.Cache, fileName string, source []byte, language types.Language, config types.Config, events chan<- Event) {
	if language == types.Unknown {
		events <- Event{Type: EventDone, Entries: []types.PackageEntry{}}
		return
	}

	decls, err := extractor.Extract(fileName, source, language)
	if err != nil {
		events <- Event{Type: EventError, Err: err}
		return
	}

	canonicalStrings := make([]string, len(decls))
	for i, decl := range decls {
		canonicalStrings[i] = decl.String
	}
	callCtx, token := registry.Start(ctx, fileName, debounce.Fingerprint(canonicalStrings))
	defer token.Finish()

	resolved := make([]resolvedImport, 0, len(decls))
	for _, decl := range decls {
		info, err := resolver.Resolve(fileName, decl.Name)
		if err != nil {
			continue // not installed: silently filtered from every event
		}
		resolved = append(resolved, resolvedImport{decl: decl, info: info})
	}

	if callCtx.Err() != nil {
		emitSupersededIfApplicable(callCtx, fileName, events)
		return
	}

	startEntries := make([]types.PackageEntry, len(resolved))
	for i, r := range resolved {
		startEntries[i] = types.PackageEntry{Name: r.decl.Name, Line: r.decl.Line, String: r.decl.String}
	}
	events <- Event{Type: EventStart, Entries: startEntries}

	doneEntries := make([]types.PackageEntry, len(resolved))
	var mu sync.Mutex
	set := func(i int, entry types.PackageEntry) {
		mu.Lock()
		doneEntries[i] = entry
		mu.Unlock()
		events <- Event{Type: EventCalculated, Entry: entry}
	}

	sizeOne := func(i int, r resolvedImport) {
		entry := computeEntry(callCtx, cache, r, config)
		set(i, entry)
	}

	if config.Concurrent {
		g, gctx := errgroup.WithContext(callCtx)
		sem := semaphore.NewWeighted(maxConcurrentSizers)
		for i, r := range resolved {
			i, r := i, r
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return nil
				}
				defer sem.Release(1)
				sizeOne(i, r)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, r := range resolved {
			if callCtx.Err() != nil {
				break
			}
			sizeOne(i, r)
		}
	}

	cache.Flush()

	if callCtx.Err() != nil {
		emitSupersededIfApplicable(callCtx, fileName, events)
		return
	}

	events <- Event{Type: EventDone, Entries: doneEntries}
}

func emitSupersededIfApplicable(ctx context.Context, fileName string, events chan<- Event) {
	if errors.Is(context.Cause(ctx), debounce.ErrSuperseded) {
		events <- Event{Type: EventError, Err: ierrors.NewDebounceError(fileName)}
		return
	}
	events <- Event{Type: EventError, Err: ctx.Err()}
}

func computeEntry(ctx context.Context, cache *sizecache.Cache, r resolvedImport, config types.Config) types.PackageEntry {
	entry := types.PackageEntry{Name: r.decl.Name, Line: r.decl.Line, String: r.decl.String}

	key := sizecache.Key(r.decl.Name, r.info.Version, r.decl.String)
	if cached, ok := cache.Get(key); ok {
		entry.Size = cached.Size
		entry.Gzip = cached.Gzip
		return entry
	}

	sizeCtx := ctx
	if config.HasDeadline() {
		var cancel context.CancelFunc
		sizeCtx, cancel = context.WithTimeout(ctx, time.Duration(config.MaxCallTime)*time.Millisecond)
		defer cancel()
	}

	externals := append(resolver.Externals(r.info), config.Externals...)
	result, err := sizer.Size(sizeCtx, r.decl, externals)
	if err != nil {
		errType := ierrors.ErrorTypeBundle
		var timeoutErr *ierrors.TimeoutError
		if errors.As(err, &timeoutErr) {
			errType = ierrors.ErrorTypeTimeout
		}
		entry.Error = &types.ErrorInfo{Type: string(errType)}
		return entry
	}

	entry.Size = result.Size
	entry.Gzip = result.Gzip
	cache.Set(key, result)
	cache.Flush()
	return entry
}
