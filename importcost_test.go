package importcost

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/standardbeagle/importcost/internal/debounce"
	"github.com/standardbeagle/importcost/internal/sizecache"
	"github.com/standardbeagle/importcost/internal/types"
)

func newTestCache(t *testing.T) *sizecache.Cache {
	t.Helper()
	c, err := sizecache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	return c
}

func writeFixturePackage(t *testing.T, root, name, body string) {
	t.Helper()
	pkgDir := filepath.Join(root, "node_modules", name)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	manifest := `{"name": "` + name + `", "version": "1.0.0", "main": "index.js"}`
	if err := os.WriteFile(filepath.Join(pkgDir, "package.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "index.js"), []byte(body), 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}
}

func drain(em *Emitter) []Event {
	var events []Event
	for ev := range em.Events() {
		events = append(events, ev)
	}
	return events
}

func TestRunUnknownLanguageEmitsEmptyDone(t *testing.T) {
	var registry debounce.Registry
	em := run(context.Background(), &registry, newTestCache(t), "/src/app.txt", []byte("whatever"), types.Unknown, types.Config{})
	events := drain(em)

	if len(events) != 1 || events[0].Type != EventDone {
		t.Fatalf("expected a single done event, got %+v", events)
	}
	if len(events[0].Entries) != 0 {
		t.Errorf("expected empty entries, got %+v", events[0].Entries)
	}
}

func TestRunParseErrorEmitsError(t *testing.T) {
	var registry debounce.Registry
	em := run(context.Background(), &registry, newTestCache(t), "/src/app.js", []byte(`import { from 'chai'`), types.JavaScript, types.Config{})
	events := drain(em)

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("expected a single error event, got %+v", events)
	}
}

func TestRunUnresolvedImportAbsentFromEvents(t *testing.T) {
	root := t.TempDir()
	fileName := filepath.Join(root, "app.js")

	var registry debounce.Registry
	em := run(context.Background(), &registry, newTestCache(t), fileName, []byte(`import sinon from 'sinon';`), types.JavaScript, types.Config{})
	events := drain(em)

	if len(events) != 2 || events[0].Type != EventStart || events[1].Type != EventDone {
		t.Fatalf("expected a start event then a done event, got %+v", events)
	}
	if len(events[0].Entries) != 0 || len(events[1].Entries) != 0 {
		t.Errorf("expected no entries for an unresolvable import, got start=%+v done=%+v", events[0].Entries, events[1].Entries)
	}
}

func TestRunResolvedPackageProducesSizedEntry(t *testing.T) {
	root := t.TempDir()
	writeFixturePackage(t, root, "tinymod", "module.exports = { greet: function() { return 'hi'; } };")
	fileName := filepath.Join(root, "app.js")

	var registry debounce.Registry
	em := run(context.Background(), &registry, newTestCache(t), fileName, []byte(`const tinymod = require('tinymod');`), types.JavaScript, types.Config{})
	events := drain(em)

	if len(events) < 3 {
		t.Fatalf("expected start, calculated, done events, got %+v", events)
	}
	if events[0].Type != EventStart {
		t.Fatalf("expected first event to be start, got %v", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("expected last event to be done, got %v", last.Type)
	}
	if len(last.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(last.Entries))
	}
	entry := last.Entries[0]
	if entry.Error != nil {
		t.Fatalf("expected no error, got %+v", entry.Error)
	}
	if entry.Size <= 0 {
		t.Errorf("expected a positive size, got %d", entry.Size)
	}
	if entry.Gzip <= 0 || entry.Gzip > entry.Size {
		t.Errorf("expected 0 < gzip <= size, got gzip=%d size=%d", entry.Gzip, entry.Size)
	}
}

func TestRunSecondCallSupersedesFirst(t *testing.T) {
	root := t.TempDir()
	writeFixturePackage(t, root, "tinymod", "module.exports = {};")
	fileName := filepath.Join(root, "app.js")

	var registry debounce.Registry
	cache := newTestCache(t)

	em1 := run(context.Background(), &registry, cache, fileName, []byte(`import a from 'tinymod';`), types.JavaScript, types.Config{})
	em2 := run(context.Background(), &registry, cache, fileName, []byte(`import { b } from 'tinymod';`), types.JavaScript, types.Config{})

	events1 := drain(em1)
	events2 := drain(em2)

	if len(events1) != 1 || events1[0].Type != EventError {
		t.Fatalf("expected the first call to terminate with a single error event, got %+v", events1)
	}
	last2 := events2[len(events2)-1]
	if last2.Type != EventDone {
		t.Errorf("expected the second call to complete normally, got %v", last2.Type)
	}
}

func TestRunTimeoutProducesTimeoutError(t *testing.T) {
	root := t.TempDir()
	writeFixturePackage(t, root, "tinymod", "module.exports = {};")
	fileName := filepath.Join(root, "app.js")

	var registry debounce.Registry
	config := types.Config{MaxCallTime: int64(time.Nanosecond.Milliseconds())}
	if config.MaxCallTime == 0 {
		config.MaxCallTime = 1
	}

	em := run(context.Background(), &registry, newTestCache(t), fileName, []byte(`import a from 'tinymod';`), types.JavaScript, config)
	events := drain(em)
	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("expected a done event even on timeout, got %v", last.Type)
	}
	if len(last.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(last.Entries))
	}
	if last.Entries[0].Error == nil {
		t.Fatal("expected a timeout error on the entry")
	}
	if last.Entries[0].Error.Type != "TimeoutError" {
		t.Errorf("expected error type TimeoutError, got %q", last.Entries[0].Error.Type)
	}
}

func TestRunCleanupCancelsInFlightCall(t *testing.T) {
	root := t.TempDir()
	writeFixturePackage(t, root, "tinymod", "module.exports = {};")
	fileName := filepath.Join(root, "app.js")

	var registry debounce.Registry
	em := run(context.Background(), &registry, newTestCache(t), fileName, []byte(`import a from 'tinymod';`), types.JavaScript, types.Config{})
	em.Cleanup()

	select {
	case <-em.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("expected the emitter to close promptly after Cleanup")
	}
}
