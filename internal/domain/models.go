package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultInstance is assumed when a source does not name a GitLab host.
const DefaultInstance = "gitlab.com"

// Component is a reusable pipeline template discovered at a remote location.
// The tuple (Name, SourcePath, GitLabInstance, Version) identifies one cache
// entry; a later write for the same tuple replaces the earlier one in place.
type Component struct {
	Name              string      `json:"name"               yaml:"name"`
	Description       string      `json:"description"        yaml:"description"`
	Parameters        []Parameter `json:"parameters"         yaml:"parameters"`
	Source            string      `json:"source"             yaml:"source"`      // display label, e.g. "Group/Project"
	SourcePath        string      `json:"source_path"        yaml:"source_path"` // remote project path, identity key
	GitLabInstance    string      `json:"gitlab_instance"    yaml:"gitlab_instance"`
	Version           string      `json:"version"            yaml:"version"` // tag or branch this snapshot was read at
	URL               string      `json:"url"                yaml:"url"`
	AvailableVersions []string    `json:"available_versions" yaml:"available_versions,omitempty"`
	Readme            string      `json:"readme,omitempty"   yaml:"-"`
}

// Key returns the dedup identity of the component.
func (c *Component) Key() string {
	return c.Name + "|" + c.SourcePath + "|" + c.GitLabInstance + "|" + c.Version
}

// Parameter is one declared input of a component. Parameters are built in a
// single parse pass and replaced wholesale when the owning component is
// refreshed.
type Parameter struct {
	Name        string       `json:"name"        yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Required    bool         `json:"required"    yaml:"required"`
	Type        string       `json:"type"        yaml:"type"` // "string" | "boolean" | "number" | arbitrary
	Default     DefaultValue `json:"default"     yaml:"default"`
}

// DefaultKind discriminates the typed default of a parameter.
type DefaultKind int

const (
	NoDefault DefaultKind = iota
	StringDefault
	BoolDefault
	NumberDefault
)

// DefaultValue is the tagged union behind Parameter.Default. The zero value
// means "no default declared".
type DefaultValue struct {
	Kind DefaultKind
	Str  string
	Bool bool
	Num  float64
}

func StringVal(s string) DefaultValue   { return DefaultValue{Kind: StringDefault, Str: s} }
func BoolVal(b bool) DefaultValue      { return DefaultValue{Kind: BoolDefault, Bool: b} }
func NumberVal(n float64) DefaultValue { return DefaultValue{Kind: NumberDefault, Num: n} }

// IsSet reports whether a default was declared at all.
func (d DefaultValue) IsSet() bool { return d.Kind != NoDefault }

// String renders the default the way it appeared in source, or "" when unset.
func (d DefaultValue) String() string {
	switch d.Kind {
	case StringDefault:
		return d.Str
	case BoolDefault:
		return strconv.FormatBool(d.Bool)
	case NumberDefault:
		return strconv.FormatFloat(d.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes the default as the native scalar it represents, or
// null when unset, so the persisted snapshot stays readable.
func (d DefaultValue) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case StringDefault:
		return json.Marshal(d.Str)
	case BoolDefault:
		return json.Marshal(d.Bool)
	case NumberDefault:
		return json.Marshal(d.Num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON restores the tagged union from a native scalar.
func (d *DefaultValue) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*d = DefaultValue{}
	case string:
		*d = StringVal(val)
	case bool:
		*d = BoolVal(val)
	case float64:
		*d = NumberVal(val)
	default:
		return fmt.Errorf("unsupported default value type %T", v)
	}
	return nil
}

// MarshalYAML mirrors the JSON encoding for CLI output.
func (d DefaultValue) MarshalYAML() (any, error) {
	switch d.Kind {
	case StringDefault:
		return d.Str, nil
	case BoolDefault:
		return d.Bool, nil
	case NumberDefault:
		return d.Num, nil
	default:
		return nil, nil
	}
}

// SourceType distinguishes single-project sources from group sources.
type SourceType string

const (
	SourceTypeProject SourceType = "project"
	SourceTypeGroup   SourceType = "group"
)

// Source is one configured remote location to discover components in.
type Source struct {
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	GitLabInstance string     `json:"gitlab_instance"`
	Type           SourceType `json:"type"`
}

// Normalized returns the source with defaults applied.
func (s Source) Normalized() Source {
	if s.GitLabInstance == "" {
		s.GitLabInstance = DefaultInstance
	}
	if s.Type == "" {
		s.Type = SourceTypeProject
	}
	return s
}

// Project is the remote project metadata the catalog fetcher needs.
type Project struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"` // full path with namespace
	DefaultBranch string `json:"default_branch"`
	WebURL        string `json:"web_url"`
}

// VersionCacheEntry is one serialized version-cache record. The snapshot
// stores the cache as an ordered list of pairs, not a native map.
type VersionCacheEntry struct {
	Key      string   `json:"key"` // instance + "|" + project path
	Versions []string `json:"versions"`
}

// SnapshotVersion tags the persisted blob for future migration.
const SnapshotVersion = 1

// CacheSnapshot is the persisted unit owned by the cache manager.
type CacheSnapshot struct {
	Version              int                 `json:"version"`
	Components           []Component         `json:"components"`
	LastRefreshTime      int64               `json:"last_refresh_time"` // epoch millis
	ProjectVersionsCache []VersionCacheEntry `json:"project_versions_cache"`
}

// CacheInfo is a diagnostic view of the manager's state.
type CacheInfo struct {
	ComponentCount     int   `json:"component_count"`
	LastRefreshTime    int64 `json:"last_refresh_time"`
	PersistenceEnabled bool  `json:"persistence_enabled"`
}
