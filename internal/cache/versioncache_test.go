package cache_test

import (
	"testing"

	"ci-component-catalog/internal/cache"
	"ci-component-catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCache(t *testing.T) {
	t.Parallel()

	c := cache.NewVersionCache()

	_, ok := c.Get("gitlab.com", "grp/proj")
	assert.False(t, ok)

	c.Set("gitlab.com", "grp/proj", []string{"main", "v1.0.0"})
	versions, ok := c.Get("gitlab.com", "grp/proj")
	require.True(t, ok)
	assert.Equal(t, []string{"main", "v1.0.0"}, versions)

	// the same path on a different instance is a different entry
	_, ok = c.Get("gitlab.example.com", "grp/proj")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("gitlab.com", "grp/proj")
	assert.False(t, ok)
}

func TestVersionCache_EntriesAndRestore(t *testing.T) {
	t.Parallel()

	c := cache.NewVersionCache()
	c.Set("gitlab.com", "b/proj", []string{"v2.0.0"})
	c.Set("gitlab.com", "a/proj", []string{"v1.0.0"})

	entries := c.Entries()
	require.Len(t, entries, 2)
	// entries come back in deterministic key order for the snapshot
	assert.Equal(t, "gitlab.com|a/proj", entries[0].Key)
	assert.Equal(t, "gitlab.com|b/proj", entries[1].Key)

	restored := cache.NewVersionCache()
	restored.Restore(entries)
	versions, ok := restored.Get("gitlab.com", "b/proj")
	require.True(t, ok)
	assert.Equal(t, []string{"v2.0.0"}, versions)

	restored.Restore([]domain.VersionCacheEntry{})
	_, ok = restored.Get("gitlab.com", "b/proj")
	assert.False(t, ok)
}
