package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"ci-component-catalog/internal/catalog"
	"ci-component-catalog/internal/domain"
	"ci-component-catalog/internal/version"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTime is how long a component snapshot stays fresh.
	DefaultCacheTime = time.Hour
	// version lists stay fresh four times as long as the component list
	versionCacheFactor = 4
)

// Options configures a Manager. Fetcher and Pool are required; a nil Store
// disables persistence.
type Options struct {
	Sources            []domain.Source
	Fetcher            domain.CatalogFetcher
	Pool               domain.ClientPool
	Store              domain.SnapshotStore
	CacheTime          time.Duration
	VersionCacheTime   time.Duration
	PersistenceEnabled bool
	Logger             *zap.Logger

	// Now is a clock seam for tests; defaults to time.Now.
	Now func() time.Time
}

// Manager owns the in-memory component catalog: it drives refreshes across
// all configured sources, merges and dedupes results, persists snapshots and
// serves freshness-gated, non-blocking reads.
type Manager struct {
	sources          []domain.Source
	fetcher          domain.CatalogFetcher
	pool             domain.ClientPool
	store            domain.SnapshotStore
	cacheTime        time.Duration
	versionCacheTime time.Duration
	persistence      bool
	logger           *zap.Logger
	now              func() time.Time

	refresh singleflight.Group

	mu              sync.RWMutex
	components      []domain.Component
	sourceErrors    map[string]string
	lastRefresh     time.Time
	lastVersionScan time.Time
	versions        *VersionCache
}

// NewManager creates a manager. Call Load afterwards to pick up a persisted
// snapshot.
func NewManager(opts Options) *Manager {
	cacheTime := opts.CacheTime
	if cacheTime <= 0 {
		cacheTime = DefaultCacheTime
	}
	versionCacheTime := opts.VersionCacheTime
	if versionCacheTime <= 0 {
		versionCacheTime = cacheTime * versionCacheFactor
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		sources:          opts.Sources,
		fetcher:          opts.Fetcher,
		pool:             opts.Pool,
		store:            opts.Store,
		cacheTime:        cacheTime,
		versionCacheTime: versionCacheTime,
		persistence:      opts.PersistenceEnabled && opts.Store != nil,
		logger:           logger,
		now:              now,
		sourceErrors:     make(map[string]string),
		versions:         NewVersionCache(),
	}
}

// Load restores the persisted snapshot, if any. A missing or invalid
// snapshot leaves the cache empty; it is never fatal.
func (m *Manager) Load(ctx context.Context) {
	if !m.persistence {
		return
	}

	snapshot, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("Failed to load cache snapshot", zap.Error(err))
		return
	}
	if snapshot == nil {
		return
	}

	m.mu.Lock()
	m.components = snapshot.Components
	m.lastRefresh = time.UnixMilli(snapshot.LastRefreshTime)
	m.lastVersionScan = m.lastRefresh
	m.versions.Restore(snapshot.ProjectVersionsCache)
	m.mu.Unlock()

	m.logger.Info("Restored cache snapshot",
		zap.Int("components", len(snapshot.Components)),
		zap.Time("last_refresh", time.UnixMilli(snapshot.LastRefreshTime)))
}

// GetComponents returns the current snapshot immediately, never blocking on
// network activity. A stale snapshot triggers a background full refresh; a
// fresh snapshot with stale version lists triggers a background version scan.
func (m *Manager) GetComponents(ctx context.Context) []domain.Component {
	m.mu.RLock()
	components := slices.Clone(m.components)
	componentsStale := m.now().Sub(m.lastRefresh) > m.cacheTime
	versionsStale := m.now().Sub(m.lastVersionScan) > m.versionCacheTime
	m.mu.RUnlock()

	if componentsStale {
		background := context.WithoutCancel(ctx)
		go func() {
			if err := m.RefreshComponents(background); err != nil {
				m.logger.Warn("Background refresh failed", zap.Error(err))
			}
		}()
	} else if versionsStale {
		background := context.WithoutCancel(ctx)
		go func() {
			if err := m.RefreshVersions(background); err != nil {
				m.logger.Warn("Background version scan failed", zap.Error(err))
			}
		}()
	}

	return components
}

// RefreshComponents rebuilds the whole catalog from the configured sources.
// At most one refresh runs at a time; concurrent callers share the in-flight
// run instead of starting another. Per-source failures are recorded in the
// source error map and contribute zero components; they never abort sibling
// sources or the refresh itself.
func (m *Manager) RefreshComponents(ctx context.Context) error {
	_, err, _ := m.refresh.Do("refresh", func() (any, error) {
		m.refreshOnce(ctx)
		return nil, nil
	})
	return err
}

func (m *Manager) refreshOnce(ctx context.Context) {
	started := m.now()
	m.logger.Info("Refreshing component catalog", zap.Int("sources", len(m.sources)))

	m.versions.Clear()

	results := make([][]domain.Component, len(m.sources))
	newErrors := make(map[string]string)

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
	)
	for i, source := range m.sources {
		wg.Add(1)
		go func(i int, source domain.Source) {
			defer wg.Done()

			components, err := m.fetchSource(ctx, source)
			if err != nil {
				if errors.Is(err, catalog.ErrNoComponents) {
					m.logger.Info("Source has no components",
						zap.String("source", source.Name))
				} else {
					m.logger.Warn("Source refresh failed",
						zap.String("source", source.Name),
						zap.Error(err))
				}
				errMu.Lock()
				newErrors[source.Name] = err.Error()
				errMu.Unlock()
				return
			}
			results[i] = components
		}(i, source)
	}
	wg.Wait()

	// flatten in source-configuration order, deduping by identity key
	merged := make([]domain.Component, 0)
	index := make(map[string]int)
	for _, sourceComponents := range results {
		for _, component := range sourceComponents {
			if at, ok := index[component.Key()]; ok {
				merged[at] = component
				continue
			}
			index[component.Key()] = len(merged)
			merged = append(merged, component)
		}
	}

	if len(m.sources) == 0 {
		merged = builtinComponents()
	}

	m.mu.Lock()
	m.components = merged
	m.sourceErrors = newErrors
	m.lastRefresh = m.now()
	m.mu.Unlock()

	m.persistSnapshot(ctx)

	// second pass: fill in version lists for components that lack them,
	// sequentially and tolerant of individual failures
	m.fillMissingVersions(ctx)

	m.mu.Lock()
	m.lastVersionScan = m.now()
	m.mu.Unlock()

	m.persistSnapshot(ctx)

	m.logger.Info("Component catalog refreshed",
		zap.Int("components", len(merged)),
		zap.Int("source_errors", len(newErrors)),
		zap.Duration("took", m.now().Sub(started)))
}

func (m *Manager) fetchSource(ctx context.Context, source domain.Source) ([]domain.Component, error) {
	source = source.Normalized()
	if source.Type == domain.SourceTypeGroup {
		return m.fetcher.FetchGroup(ctx, source)
	}
	return m.fetcher.FetchProject(ctx, source)
}

// ForceRefresh resets the freshness clock and refreshes, guaranteeing a real
// fetch regardless of current staleness.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	m.mu.Lock()
	m.lastRefresh = time.Time{}
	m.mu.Unlock()
	return m.RefreshComponents(ctx)
}

// AddComponentToCache upserts a single component by its identity key without
// triggering a refresh. Used when one component was resolved out-of-band.
func (m *Manager) AddComponentToCache(ctx context.Context, component domain.Component) {
	m.mu.Lock()
	replaced := false
	for i := range m.components {
		if m.components[i].Key() == component.Key() {
			m.components[i] = component
			replaced = true
			break
		}
	}
	if !replaced {
		m.components = append(m.components, component)
	}
	m.mu.Unlock()

	m.persistSnapshot(ctx)
}

// FetchComponentVersions resolves the sorted version list for a component's
// project, consulting the version cache before the network, writes it back
// onto every matching cached component and returns it. A fetch failure
// degrades to the component's own version as a single-element list.
func (m *Manager) FetchComponentVersions(ctx context.Context, component domain.Component) []string {
	instance := component.GitLabInstance
	if instance == "" {
		instance = domain.DefaultInstance
	}

	versions, ok := m.versions.Get(instance, component.SourcePath)
	if !ok {
		resolved, err := m.resolveProjectVersions(ctx, instance, component.SourcePath)
		if err != nil {
			m.logger.Warn("Failed to fetch component versions",
				zap.String("source_path", component.SourcePath),
				zap.Error(err))
			fallback := component.Version
			if fallback == "" {
				fallback = "main"
			}
			return []string{fallback}
		}
		versions = resolved
		m.versions.Set(instance, component.SourcePath, versions)
	}

	m.mu.Lock()
	for i := range m.components {
		if m.components[i].SourcePath == component.SourcePath && m.components[i].GitLabInstance == instance {
			m.components[i].AvailableVersions = versions
		}
	}
	m.mu.Unlock()

	m.persistSnapshot(ctx)
	return versions
}

// resolveProjectVersions lists a project's tags, injects the well-known
// branch names and ranks the result.
func (m *Manager) resolveProjectVersions(ctx context.Context, instance, path string) ([]string, error) {
	client, err := m.pool.ClientFor(instance)
	if err != nil {
		return nil, err
	}
	tags, err := client.ListTags(ctx, path)
	if err != nil {
		return nil, err
	}
	return version.WithBranches(tags), nil
}

// FetchSpecificVersion resolves one component at an explicit version. The
// version is validated against the project's tags and branches before any
// content is fetched; an unknown version or a missing component of that name
// yields nil, nil. Only a failed project-metadata lookup is an error. The
// resolved component is added to the cache without evicting other versions.
func (m *Manager) FetchSpecificVersion(
	ctx context.Context,
	name, sourcePath, instance, requested string,
) (*domain.Component, error) {
	if instance == "" {
		instance = domain.DefaultInstance
	}

	client, err := m.pool.ClientFor(instance)
	if err != nil {
		return nil, err
	}

	exists, err := m.versionExists(ctx, client, sourcePath, requested)
	if err != nil {
		m.logger.Warn("Failed to validate requested version",
			zap.String("source_path", sourcePath),
			zap.String("version", requested),
			zap.Error(err))
		return nil, nil
	}
	if !exists {
		m.logger.Debug("Requested version does not exist",
			zap.String("source_path", sourcePath),
			zap.String("version", requested))
		return nil, nil
	}

	source := domain.Source{Path: sourcePath, GitLabInstance: instance}
	components, err := m.fetcher.FetchProjectAtRef(ctx, source, requested)
	if err != nil {
		// project metadata lookup failed; this is the one fatal path
		return nil, err
	}

	for i := range components {
		if components[i].Name == name {
			component := components[i]
			m.AddComponentToCache(ctx, component)
			return &component, nil
		}
	}
	return nil, nil
}

func (m *Manager) versionExists(ctx context.Context, client domain.RemoteClient, path, requested string) (bool, error) {
	tags, err := client.ListTags(ctx, path)
	if err != nil {
		return false, err
	}
	if slices.Contains(tags, requested) {
		return true, nil
	}
	branches, err := client.ListBranches(ctx, path)
	if err != nil {
		return false, err
	}
	return slices.Contains(branches, requested), nil
}

// RefreshVersions re-resolves the version list of every cached component's
// project. Individual failures are logged and skipped.
func (m *Manager) RefreshVersions(ctx context.Context) error {
	_, err, _ := m.refresh.Do("versions", func() (any, error) {
		m.versions.Clear()

		m.mu.Lock()
		for i := range m.components {
			m.components[i].AvailableVersions = nil
		}
		m.mu.Unlock()

		m.fillMissingVersions(ctx)

		m.mu.Lock()
		m.lastVersionScan = m.now()
		m.mu.Unlock()

		m.persistSnapshot(ctx)
		return nil, nil
	})
	return err
}

// fillMissingVersions resolves availableVersions for every component that
// lacks them, one project at a time.
func (m *Manager) fillMissingVersions(ctx context.Context) {
	m.mu.RLock()
	var pending []domain.Component
	seen := make(map[string]bool)
	for _, component := range m.components {
		if len(component.AvailableVersions) > 0 {
			continue
		}
		key := component.GitLabInstance + "|" + component.SourcePath
		if seen[key] {
			continue
		}
		seen[key] = true
		pending = append(pending, component)
	}
	m.mu.RUnlock()

	for _, component := range pending {
		versions, ok := m.versions.Get(component.GitLabInstance, component.SourcePath)
		if !ok {
			resolved, err := m.resolveProjectVersions(ctx, component.GitLabInstance, component.SourcePath)
			if err != nil {
				m.logger.Warn("Failed to resolve versions",
					zap.String("source_path", component.SourcePath),
					zap.Error(err))
				continue
			}
			versions = resolved
			m.versions.Set(component.GitLabInstance, component.SourcePath, versions)
		}

		m.mu.Lock()
		for i := range m.components {
			if m.components[i].SourcePath == component.SourcePath &&
				m.components[i].GitLabInstance == component.GitLabInstance {
				m.components[i].AvailableVersions = versions
			}
		}
		m.mu.Unlock()
	}
}

// GetSourceErrors returns a copy of the last refresh's per-source failures.
func (m *Manager) GetSourceErrors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.sourceErrors))
	for name, message := range m.sourceErrors {
		out[name] = message
	}
	return out
}

// Info returns a diagnostic view of the cache state.
func (m *Manager) Info() domain.CacheInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.CacheInfo{
		ComponentCount:     len(m.components),
		LastRefreshTime:    m.lastRefresh.UnixMilli(),
		PersistenceEnabled: m.persistence,
	}
}

// persistSnapshot writes the current state through the snapshot store.
// Persistence failures are logged and never block the in-memory cache.
func (m *Manager) persistSnapshot(ctx context.Context) {
	if !m.persistence {
		return
	}

	m.mu.RLock()
	snapshot := &domain.CacheSnapshot{
		Version:              domain.SnapshotVersion,
		Components:           slices.Clone(m.components),
		LastRefreshTime:      m.lastRefresh.UnixMilli(),
		ProjectVersionsCache: m.versions.Entries(),
	}
	m.mu.RUnlock()

	if err := m.store.Save(ctx, snapshot); err != nil {
		m.logger.Warn("Failed to persist cache snapshot", zap.Error(err))
	}
}

// builtinComponents is the zero-configuration fallback catalog.
func builtinComponents() []domain.Component {
	return []domain.Component{
		{
			Name:        "deploy",
			Description: "Deploy an application to an environment",
			Source:      "built-in",
			SourcePath:  "local/deploy",
			Version:     "main",
			Parameters: []domain.Parameter{
				{
					Name:        "environment",
					Description: "Target environment",
					Required:    true,
					Type:        "string",
				},
				{
					Name:        "dry_run",
					Description: "Plan the deployment without applying it",
					Type:        "boolean",
					Default:     domain.BoolVal(false),
				},
			},
		},
		{
			Name:        "test",
			Description: "Run the project test suite",
			Source:      "built-in",
			SourcePath:  "local/test",
			Version:     "main",
			Parameters: []domain.Parameter{
				{
					Name:        "stage",
					Description: "Pipeline stage to attach the job to",
					Type:        "string",
					Default:     domain.StringVal("test"),
				},
			},
		},
	}
}
