// Package sizecache implements the two-tier size cache: a bounded in-memory
// LRU tier backed by a single on-disk JSON file, keyed by package name,
// resolved version, and canonical import string so a dependency bump or an
// edited import clause both invalidate correctly.
package sizecache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/importcost/internal/types"
	"github.com/standardbeagle/importcost/internal/version"
)

const (
	diskFileName   = "size-cache.json"
	bundlerVersion = "esbuild-v0.19.12"
	defaultMemSize = 2048
)

// Key derives the cache key for one (package, version, canonical import
// string) triple. The canonical string can be arbitrarily long (many named
// specifiers); xxhash keeps the key bounded, matching the teacher's own use
// of a content hash ahead of a human-readable suffix
// (internal/core/file_content_store.go's FastHash field).
func Key(pkgName, pkgVersion, canonical string) string {
	sum := xxhash.Sum64String(canonical)
	return pkgName + "\x00" + pkgVersion + "\x00" + strconv.FormatUint(sum, 16)
}

type diskEntry struct {
	Schema         int                        `json:"schema"`
	RuntimeVersion string                     `json:"runtimeVersion"`
	BundlerVersion string                     `json:"bundlerVersion"`
	Entries        map[string]types.SizeResult `json:"entries"`
}

// Cache is the two-tier size cache. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	mem      *lru.Cache[string, types.SizeResult]
	diskPath string
	entries  map[string]types.SizeResult
	dirty    bool
}

// Open loads (or initializes) the disk-backed cache rooted at dir. An empty dir
// disables the disk tier entirely; only the in-memory LRU is used, which is
// how tests and short-lived CLI invocations without a writable cache
// directory still get cross-call reuse within a single process.
func Open(dir string) (*Cache, error) {
	mem, err := lru.New[string, types.SizeResult](defaultMemSize)
	if err != nil {
		return nil, fmt.Errorf("sizecache: building memory tier: %w", err)
	}

	c := &Cache{mem: mem, entries: map[string]types.SizeResult{}}
	if dir == "" {
		return c, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sizecache: creating cache dir: %w", err)
	}
	c.diskPath = filepath.Join(dir, diskFileName)

	raw, err := os.ReadFile(c.diskPath)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("sizecache: reading disk cache: %w", err)
	}

	var disk diskEntry
	if err := json.Unmarshal(raw, &disk); err != nil {
		// A corrupt or foreign cache file is treated as empty rather than fatal.
		return c, nil
	}
	if disk.Schema != version.CacheSchema || disk.RuntimeVersion != runtime.Version() || disk.BundlerVersion != bundlerVersion {
		return c, nil
	}
	c.entries = disk.Entries
	if c.entries == nil {
		c.entries = map[string]types.SizeResult{}
	}
	return c, nil
}

// DefaultDir returns the cache directory importcost uses when the caller
// hasn't configured one explicitly: os.UserCacheDir()/importcost.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "importcost"), nil
}

// Get returns the cached size for key, checking the in-memory tier first and
// falling back to the disk-backed map, promoting a disk hit into memory.
func (c *Cache) Get(key string) (types.SizeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.mem.Get(key); ok {
		return v, true
	}
	if v, ok := c.entries[key]; ok {
		c.mem.Add(key, v)
		return v, true
	}
	return types.SizeResult{}, false
}

// Set stores value under key in both tiers and marks the disk tier dirty.
// Callers that want durability must call Flush; Set alone does not hit disk.
func (c *Cache) Set(key string, value types.SizeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Add(key, value)
	c.entries[key] = value
	c.dirty = true
}

// Flush persists the disk tier if there are unwritten changes, using a
// write-temp-then-rename so a crash mid-write never leaves a truncated cache
// file behind.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.diskPath == "" || !c.dirty {
		return nil
	}

	disk := diskEntry{
		Schema:         version.CacheSchema,
		RuntimeVersion: runtime.Version(),
		BundlerVersion: bundlerVersion,
		Entries:        c.entries,
	}
	raw, err := json.Marshal(disk)
	if err != nil {
		return fmt.Errorf("sizecache: encoding disk cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.diskPath), "size-cache-*.tmp")
	if err != nil {
		return fmt.Errorf("sizecache: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sizecache: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sizecache: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.diskPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sizecache: renaming temp file: %w", err)
	}

	c.dirty = false
	return nil
}

// Clear empties the in-memory tier only. Disk state is left untouched: a
// subsequent Get falls through to c.entries and rehydrates the memory tier
// from what's still on disk.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Purge()
}
