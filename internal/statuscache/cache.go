// SPDX-License-Identifier: MPL-2.0

// Package statuscache persists tool check results between runs so unchanged
// tools don't pay for a shell check on every invocation. Entries carry a
// timestamp and are ignored past a staleness TTL; callers can also bypass the
// cache explicitly.
package statuscache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fibr-cli/internal/toolcheck"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the cache file name inside the fibr cache directory.
const FileName = "toolstatus.toml"

// DefaultTTL is the staleness bound when the user config sets none.
const DefaultTTL = 24 * time.Hour

type (
	// entry is the on-disk form of one tool's cached result.
	entry struct {
		Status       string    `toml:"status"`
		Installed    bool      `toml:"installed"`
		ValidVersion bool      `toml:"valid_version"`
		Detail       string    `toml:"detail,omitempty"`
		CheckedAt    time.Time `toml:"checked_at"`
	}

	// fileFormat is the cache file's top-level TOML shape.
	fileFormat struct {
		Tools map[string]entry `toml:"tools"`
	}

	// Cache is an in-memory view of the persisted tool-status file. Lookups
	// and stores are whole-entry operations; a concurrent reader never sees a
	// partially updated entry.
	Cache struct {
		path string
		ttl  time.Duration

		mu      sync.RWMutex
		entries map[string]entry
	}
)

// Open loads the cache at path, tolerating a missing file (empty cache).
// A corrupt file is discarded rather than failing the run: the cache is an
// optimization, not a source of truth.
func Open(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{path: path, ttl: ttl, entries: make(map[string]entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var f fileFormat
	if err := toml.Unmarshal(data, &f); err != nil {
		return c
	}
	if f.Tools != nil {
		c.entries = f.Tools
	}
	return c
}

// Lookup returns the cached result for tool if present and fresh.
func (c *Cache) Lookup(tool string) (toolcheck.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[tool]
	if !ok || time.Since(e.CheckedAt) > c.ttl {
		return toolcheck.Result{}, false
	}
	return toolcheck.Result{
		Installed:    e.Installed,
		ValidVersion: e.ValidVersion,
		Status:       toolcheck.ParseStatus(e.Status),
		Detail:       e.Detail,
	}, true
}

// Store replaces the entry for tool. Error results are not cached: a check
// that timed out or errored should be retried next run, not remembered.
func (c *Cache) Store(tool string, res toolcheck.Result) {
	if res.Status == toolcheck.StatusError {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tool] = entry{
		Status:       res.Status.String(),
		Installed:    res.Installed,
		ValidVersion: res.ValidVersion,
		Detail:       res.Detail,
		CheckedAt:    time.Now(),
	}
}

// StoreAll replaces entries for every result in the batch.
func (c *Cache) StoreAll(results map[string]toolcheck.Result) {
	for tool, res := range results {
		c.Store(tool, res)
	}
}

// Invalidate drops the entry for tool, or every entry when tool is "".
func (c *Cache) Invalidate(tool string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tool == "" {
		c.entries = make(map[string]entry)
		return
	}
	delete(c.entries, tool)
}

// Flush writes the cache back to disk. The file is written to a temp sibling
// and renamed so a crash mid-write never leaves a truncated cache.
func (c *Cache) Flush() error {
	c.mu.RLock()
	f := fileFormat{Tools: make(map[string]entry, len(c.entries))}
	for k, v := range c.entries {
		f.Tools[k] = v
	}
	c.mu.RUnlock()

	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal tool status cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Path returns the cache file location.
func (c *Cache) Path() string { return c.path }

// ErrNoCacheDir means no per-user cache location could be determined.
var ErrNoCacheDir = errors.New("cannot determine user cache directory")

// DefaultPath returns the per-user cache file location
// ($XDG_CACHE_HOME/fibr/toolstatus.toml or the platform equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCacheDir, err)
	}
	return filepath.Join(dir, "fibr", FileName), nil
}
