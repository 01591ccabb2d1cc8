package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ci-component-catalog/internal/config"
	"ci-component-catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
gitlab:
  token: glpat-test
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gitlab.com", cfg.GitLab.DefaultInstance)
	assert.Equal(t, "glpat-test", cfg.GitLab.Token)
	assert.Empty(t, cfg.Sources)

	assert.Equal(t, 3600, cfg.Cache.CacheTimeSeconds)
	assert.Equal(t, time.Hour, cfg.Cache.CacheTime())
	assert.Equal(t, 0, cfg.Cache.VersionCacheTimeSeconds)
	assert.Equal(t, ".component-cache", cfg.Cache.SnapshotPath)
	assert.True(t, cfg.Cache.PersistenceEnabled)

	assert.Equal(t, 5, cfg.Fetch.BatchSize)
	assert.Equal(t, 10, cfg.Fetch.TimeoutMinutes)
}

func TestLoadConfig_FullFile(t *testing.T) {
	path := writeConfig(t, `
gitlab:
  default_instance: gitlab.example.com
  token: glpat-default
  tokens:
    gitlab.other.com: glpat-other
sources:
  - name: CI Templates
    path: platform/ci-templates
    type: group
  - name: Deploy
    path: tools/deploy
    gitlab_instance: gitlab.other.com
cache:
  cache_time_seconds: 120
  version_cache_time_seconds: 600
  persistence_enabled: false
fetch:
  batch_size: 3
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gitlab.example.com", cfg.GitLab.DefaultInstance)
	assert.Equal(t, "glpat-other", cfg.GitLab.Tokens["gitlab.other.com"])
	assert.Equal(t, 2*time.Minute, cfg.Cache.CacheTime())
	assert.Equal(t, 10*time.Minute, cfg.Cache.VersionCacheTime())
	assert.False(t, cfg.Cache.PersistenceEnabled)
	assert.Equal(t, 3, cfg.Fetch.BatchSize)

	sources := cfg.DomainSources()
	require.Len(t, sources, 2)
	assert.Equal(t, domain.SourceTypeGroup, sources[0].Type)
	assert.Equal(t, "gitlab.example.com", sources[0].GitLabInstance,
		"source without an instance inherits the default")
	assert.Equal(t, domain.SourceTypeProject, sources[1].Type,
		"missing type normalizes to project")
	assert.Equal(t, "gitlab.other.com", sources[1].GitLabInstance)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "source without name",
			content: `
sources:
  - path: group/proj
`,
			wantErr: "must have a name",
		},
		{
			name: "source without path",
			content: `
sources:
  - name: Broken
`,
			wantErr: "must have a path",
		},
		{
			name: "unknown source type",
			content: `
sources:
  - name: Broken
    path: group/proj
    type: organization
`,
			wantErr: "unknown type",
		},
		{
			name: "non-positive cache time",
			content: `
cache:
  cache_time_seconds: -5
`,
			wantErr: "cache.cache_time_seconds must be positive",
		},
		{
			name: "persistence without path",
			content: `
cache:
  snapshot_path: ""
`,
			wantErr: "snapshot_path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = config.LoadConfig("")
	require.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("GITLAB_INSTANCE", "gitlab.env.com")
	t.Setenv("GITLAB_TOKEN", "glpat-env")

	path := writeConfig(t, `
cache:
  persistence_enabled: false
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gitlab.env.com", cfg.GitLab.DefaultInstance)
	assert.Equal(t, "glpat-env", cfg.GitLab.Token)
}
