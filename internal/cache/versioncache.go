// Package cache holds the in-memory component catalog and its refresh logic.
package cache

import (
	"sort"
	"sync"

	"ci-component-catalog/internal/domain"
)

// VersionCache maps instance + "|" + project path to the sorted version list
// of that project. It has no TTL of its own; freshness is governed by the
// owning Manager's refresh cadence.
type VersionCache struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewVersionCache creates an empty version cache.
func NewVersionCache() *VersionCache {
	return &VersionCache{entries: make(map[string][]string)}
}

func versionKey(instance, path string) string {
	return instance + "|" + path
}

// Get returns the cached versions for a project, if present.
func (c *VersionCache) Get(instance, path string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	versions, ok := c.entries[versionKey(instance, path)]
	return versions, ok
}

// Set stores the version list for a project.
func (c *VersionCache) Set(instance, path string, versions []string) {
	c.mu.Lock()
	c.entries[versionKey(instance, path)] = versions
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *VersionCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]string)
	c.mu.Unlock()
}

// Entries returns the cache as an ordered key/value list for the snapshot.
func (c *VersionCache) Entries() []domain.VersionCacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.VersionCacheEntry, 0, len(c.entries))
	for key, versions := range c.entries {
		out = append(out, domain.VersionCacheEntry{Key: key, Versions: versions})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Restore replaces the cache content from a persisted snapshot.
func (c *VersionCache) Restore(entries []domain.VersionCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]string, len(entries))
	for _, entry := range entries {
		c.entries[entry.Key] = entry.Versions
	}
}
