package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ci-component-catalog/internal/cache"
	"ci-component-catalog/internal/catalog"
	"ci-component-catalog/internal/config"
	"ci-component-catalog/internal/domain"
	"ci-component-catalog/internal/gitlab"
	"ci-component-catalog/internal/logger"
	"ci-component-catalog/internal/render"
	"ci-component-catalog/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile   string
	outputFormat string
	debug        bool
	showVersion  string
)

var rootCmd = &cobra.Command{
	Use:   "component-catalog",
	Short: "Discover and cache reusable CI pipeline components from GitLab",
	Long: `A command-line tool that maintains a local catalog of reusable CI
pipeline components discovered in configured GitLab projects and groups.
Templates are fetched through the GitLab API, their spec headers parsed into
typed parameter lists, and the resulting catalog cached with time-based
freshness and a persisted snapshot across runs.`,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached components, refreshing in the background when stale",
	RunE:  runList,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a full catalog refresh from all configured sources",
	RunE:  runRefresh,
}

var versionsCmd = &cobra.Command{
	Use:   "versions <component>",
	Short: "Resolve the available versions of a cached component",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

var showCmd = &cobra.Command{
	Use:   "show <component>",
	Short: "Show one component in detail, optionally at a specific version",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func setupCommands() {
	rootCmd.AddCommand(listCmd, refreshCmd, versionsCmd, showCmd)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (required)")
	if err := rootCmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(fmt.Sprintf("failed to mark config flag as required: %v", err))
	}
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", render.FormatTable, "Output format: table, json or yaml")

	showCmd.Flags().StringVar(&showVersion, "version", "", "Resolve the component at this tag or branch")
}

func main() {
	setupCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, builds the manager and restores the snapshot. The
// returned cleanup closes the snapshot store.
func setup() (context.Context, context.CancelFunc, *cache.Manager, func(), error) {
	if debug {
		logger.SetLevel(zap.DebugLevel)
	}
	l := logger.GetLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	timeout := time.Duration(cfg.Fetch.TimeoutMinutes) * time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	pool := gitlab.NewPool(cfg.GitLab.Token, cfg.GitLab.Tokens, l)
	fetcher := catalog.NewFetcher(pool, cfg.Fetch.BatchSize, l)

	var snapshots domain.SnapshotStore
	persistence := cfg.Cache.PersistenceEnabled
	if persistence {
		badgerStore, err := store.OpenBadger(cfg.Cache.SnapshotPath, l)
		if err != nil {
			l.Warn("Snapshot store unavailable, continuing without persistence", zap.Error(err))
			persistence = false
		} else {
			snapshots = badgerStore
		}
	}

	manager := cache.NewManager(cache.Options{
		Sources:            cfg.DomainSources(),
		Fetcher:            fetcher,
		Pool:               pool,
		Store:              snapshots,
		CacheTime:          cfg.Cache.CacheTime(),
		VersionCacheTime:   cfg.Cache.VersionCacheTime(),
		PersistenceEnabled: persistence,
		Logger:             l,
	})
	manager.Load(ctx)

	cleanup := func() {
		if snapshots != nil {
			if err := snapshots.Close(); err != nil {
				l.Warn("Failed to close snapshot store", zap.Error(err))
			}
		}
	}
	return ctx, cancel, manager, cleanup, nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel, manager, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	// an empty cache means first run; wait for the refresh instead of
	// printing nothing
	if manager.Info().ComponentCount == 0 {
		if err := manager.RefreshComponents(ctx); err != nil {
			return fmt.Errorf("failed to refresh components: %w", err)
		}
	}

	components := manager.GetComponents(ctx)
	return render.Components(os.Stdout, outputFormat, components, manager.GetSourceErrors())
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, cancel, manager, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	if err := manager.ForceRefresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh components: %w", err)
	}

	info := manager.Info()
	fmt.Printf("Refreshed %d components\n", info.ComponentCount)
	for name, message := range manager.GetSourceErrors() {
		fmt.Printf("  source %s failed: %s\n", name, message)
	}
	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx, cancel, manager, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	component, ok := findComponent(manager.GetComponents(ctx), args[0])
	if !ok {
		return fmt.Errorf("component %q is not in the cache; run refresh first", args[0])
	}

	versions := manager.FetchComponentVersions(ctx, component)
	return render.Versions(os.Stdout, outputFormat, versions)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel, manager, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer cleanup()

	component, ok := findComponent(manager.GetComponents(ctx), args[0])
	if !ok {
		return fmt.Errorf("component %q is not in the cache; run refresh first", args[0])
	}

	if showVersion != "" && showVersion != component.Version {
		resolved, err := manager.FetchSpecificVersion(
			ctx, component.Name, component.SourcePath, component.GitLabInstance, showVersion)
		if err != nil {
			return fmt.Errorf("failed to resolve %s@%s: %w", component.Name, showVersion, err)
		}
		if resolved == nil {
			return fmt.Errorf("version %q not found for component %s", showVersion, component.Name)
		}
		component = *resolved
	}

	return render.Component(os.Stdout, outputFormat, component)
}

// findComponent returns the first cached component with the given name.
func findComponent(components []domain.Component, name string) (domain.Component, bool) {
	for _, c := range components {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Component{}, false
}
