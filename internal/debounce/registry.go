// Package debounce implements the fingerprint and debounce registry: it
// decides whether a new call for a file should supersede one already in
// flight, and provides the order-independent fingerprint that decision is
// based on.
package debounce

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrSuperseded is the cancellation cause a superseded call's context carries.
// The orchestrator checks context.Cause(ctx) for this sentinel to distinguish
// "a newer call took over" from an ordinary caller-supplied cancellation.
var ErrSuperseded = errors.New("debounce: superseded by a newer call for this file")

// Fingerprint hashes the sorted set of canonical import strings with
// xxhash.Sum64, mirroring the teacher's FastHash field
// (internal/core/file_content_store.go) used for cheap content equality.
// Sorting first makes the result independent of extraction order.
func Fingerprint(canonicalStrings []string) uint64 {
	sorted := make([]string, len(canonicalStrings))
	copy(sorted, canonicalStrings)
	sort.Strings(sorted)
	return xxhash.Sum64String(strings.Join(sorted, "\x00"))
}

// session tracks one in-flight call for a fileName, identified by the
// pointer itself so Finish can tell whether it's still the registry's current
// occupant or has already been superseded and replaced.
type session struct {
	cancel      context.CancelCauseFunc
	fingerprint uint64
}

// Registry is a sync.Map-based singleton keyed by fileName, in the style of
// the teacher's lock-free MetricsCache (internal/cache/metrics_cache.go).
// The zero value is ready to use.
type Registry struct {
	inflight sync.Map // map[string]*session
}

// Start registers a new call for fileName carrying fingerprint, the hash of
// its freshly extracted import set. If a call is already in flight for the
// same fileName with a different fingerprint, it is cancelled with
// ErrSuperseded. A matching fingerprint means the caller re-invoked with the
// same imports (e.g. an editor save that didn't change any import line); the
// prior call is left to finish on its own rather than being cancelled for no
// reason. Start returns a context derived from parent that callers should
// use for the rest of the pipeline. Callers must call Finish with the
// returned token once the call completes, successfully or not.
func (r *Registry) Start(parent context.Context, fileName string, fingerprint uint64) (context.Context, *Token) {
	ctx, cancel := context.WithCancelCause(parent)
	s := &session{cancel: cancel, fingerprint: fingerprint}

	if prev, loaded := r.inflight.Swap(fileName, s); loaded {
		if prevSession := prev.(*session); prevSession.fingerprint != fingerprint {
			prevSession.cancel(ErrSuperseded)
		}
	}

	return ctx, &Token{registry: r, fileName: fileName, self: s}
}

// Token identifies one Start call so Finish can avoid deleting a newer
// session that has since replaced this one in the map.
type Token struct {
	registry *Registry
	fileName string
	self     *session
}

// Finish removes this call's entry from the registry, but only if a newer
// call hasn't already taken its place.
func (t *Token) Finish() {
	t.registry.inflight.CompareAndDelete(t.fileName, t.self)
}
