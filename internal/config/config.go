package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ci-component-catalog/internal/domain"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	GitLab  GitLabConfig   `yaml:"gitlab"  mapstructure:"gitlab"`
	Sources []SourceConfig `yaml:"sources" mapstructure:"sources"`
	Cache   CacheConfig    `yaml:"cache"   mapstructure:"cache"`
	Fetch   FetchConfig    `yaml:"fetch"   mapstructure:"fetch"`
}

// GitLabConfig holds connection settings. Tokens maps instance hosts to
// access tokens for sources living on other GitLab installations.
type GitLabConfig struct {
	DefaultInstance string            `yaml:"default_instance" mapstructure:"default_instance"`
	Token           string            `yaml:"token"            mapstructure:"token"`
	Tokens          map[string]string `yaml:"tokens"           mapstructure:"tokens"`
}

// SourceConfig is one remote location to discover components in.
type SourceConfig struct {
	Name           string `yaml:"name"                      mapstructure:"name"`
	Path           string `yaml:"path"                      mapstructure:"path"`
	GitLabInstance string `yaml:"gitlab_instance,omitempty" mapstructure:"gitlab_instance"`
	Type           string `yaml:"type,omitempty"            mapstructure:"type"`
}

// CacheConfig controls freshness windows and persistence.
type CacheConfig struct {
	CacheTimeSeconds        int    `yaml:"cache_time_seconds"         mapstructure:"cache_time_seconds"`
	VersionCacheTimeSeconds int    `yaml:"version_cache_time_seconds" mapstructure:"version_cache_time_seconds"`
	SnapshotPath            string `yaml:"snapshot_path"              mapstructure:"snapshot_path"`
	PersistenceEnabled      bool   `yaml:"persistence_enabled"        mapstructure:"persistence_enabled"`
}

// FetchConfig controls fetch concurrency.
type FetchConfig struct {
	BatchSize      int `yaml:"batch_size"      mapstructure:"batch_size"`
	TimeoutMinutes int `yaml:"timeout_minutes" mapstructure:"timeout_minutes"`
}

// CacheTime returns the component freshness window.
func (c CacheConfig) CacheTime() time.Duration {
	return time.Duration(c.CacheTimeSeconds) * time.Second
}

// VersionCacheTime returns the version-list freshness window; zero means the
// manager default of 4x the cache time.
func (c CacheConfig) VersionCacheTime() time.Duration {
	return time.Duration(c.VersionCacheTimeSeconds) * time.Second
}

// DomainSources converts the configured sources to domain values with
// defaults applied.
func (c *Config) DomainSources() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		instance := s.GitLabInstance
		if instance == "" {
			instance = c.GitLab.DefaultInstance
		}
		sources = append(sources, domain.Source{
			Name:           s.Name,
			Path:           s.Path,
			GitLabInstance: instance,
			Type:           domain.SourceType(s.Type),
		}.Normalized())
	}
	return sources
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Fresh Viper instance per load to avoid data races in concurrent tests
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaultValues(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("gitlab.default_instance", "GITLAB_INSTANCE")
	_ = v.BindEnv("gitlab.token", "GITLAB_TOKEN")
	_ = v.BindEnv("cache.snapshot_path", "CATALOG_SNAPSHOT_PATH")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaultValues(v *viper.Viper) {
	v.SetDefault("gitlab.default_instance", domain.DefaultInstance)

	// An empty source list is valid; the cache falls back to the built-in
	// placeholder components.
	v.SetDefault("sources", []SourceConfig{})

	v.SetDefault("cache.cache_time_seconds", 3600)
	v.SetDefault("cache.version_cache_time_seconds", 0) // 0 = 4x cache_time
	v.SetDefault("cache.snapshot_path", ".component-cache")
	v.SetDefault("cache.persistence_enabled", true)

	v.SetDefault("fetch.batch_size", 5)
	v.SetDefault("fetch.timeout_minutes", 10)

	v.SetDefault("logging.level", "info")
}

func validateConfig(config Config) error {
	if config.GitLab.DefaultInstance == "" {
		return fmt.Errorf("gitlab.default_instance is required")
	}

	if config.Cache.CacheTimeSeconds <= 0 {
		return fmt.Errorf("cache.cache_time_seconds must be positive")
	}

	if config.Cache.PersistenceEnabled && config.Cache.SnapshotPath == "" {
		return fmt.Errorf("cache.snapshot_path is required when persistence is enabled")
	}

	if config.Fetch.BatchSize <= 0 {
		return fmt.Errorf("fetch.batch_size must be positive")
	}

	for i, source := range config.Sources {
		if source.Name == "" {
			return fmt.Errorf("sources[%d] must have a name", i)
		}
		if source.Path == "" {
			return fmt.Errorf("sources[%d] must have a path", i)
		}
		switch source.Type {
		case "", "project", "group":
		default:
			return fmt.Errorf("sources[%d] has unknown type %q", i, source.Type)
		}
	}

	return nil
}
