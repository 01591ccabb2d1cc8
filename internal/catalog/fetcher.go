// Package catalog discovers CI components in remote projects and groups.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"ci-component-catalog/internal/domain"
	"ci-component-catalog/internal/gitlab"
	"ci-component-catalog/internal/specparse"

	"go.uber.org/zap"
)

// DefaultBatchSize bounds how many projects or template files are processed
// concurrently inside one batch.
const DefaultBatchSize = 5

// templatesDir is the directory a component project exposes templates in.
const templatesDir = "templates"

// ErrNoComponents reports a group whose member projects were all reachable
// but none exposed a component. Callers can tell it apart from a transport
// failure with errors.Is.
var ErrNoComponents = errors.New("no components found")

// Fetcher discovers components for one configured source.
type Fetcher struct {
	pool      domain.ClientPool
	batchSize int
	logger    *zap.Logger
}

var _ domain.CatalogFetcher = (*Fetcher)(nil)

// NewFetcher creates a catalog fetcher. batchSize <= 0 falls back to
// DefaultBatchSize.
func NewFetcher(pool domain.ClientPool, batchSize int, logger *zap.Logger) *Fetcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Fetcher{
		pool:      pool,
		batchSize: batchSize,
		logger:    logger,
	}
}

// FetchProject enumerates the template files of a single project and parses
// each into a component. Only the initial metadata lookup is fatal; a
// per-file failure degrades that one component to a placeholder description.
func (f *Fetcher) FetchProject(ctx context.Context, source domain.Source) ([]domain.Component, error) {
	source = source.Normalized()

	client, err := f.pool.ClientFor(source.GitLabInstance)
	if err != nil {
		return nil, err
	}

	project, err := client.GetProject(ctx, source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project %s: %w", source.Path, err)
	}

	label := source.Name
	if label == "" {
		label = project.Name
	}

	return f.fetchProjectComponents(ctx, client, source.GitLabInstance, project, label, project.DefaultBranch), nil
}

// FetchProjectAtRef behaves like FetchProject but reads the templates at a
// specific tag or branch instead of the default branch.
func (f *Fetcher) FetchProjectAtRef(ctx context.Context, source domain.Source, ref string) ([]domain.Component, error) {
	source = source.Normalized()

	client, err := f.pool.ClientFor(source.GitLabInstance)
	if err != nil {
		return nil, err
	}

	project, err := client.GetProject(ctx, source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project %s: %w", source.Path, err)
	}

	label := source.Name
	if label == "" {
		label = project.Name
	}

	return f.fetchProjectComponents(ctx, client, source.GitLabInstance, project, label, ref), nil
}

// FetchGroup enumerates the member projects of a group (subgroups included)
// and fetches each one's components in fixed-size batches. One broken
// project never prevents its siblings from contributing.
func (f *Fetcher) FetchGroup(ctx context.Context, source domain.Source) ([]domain.Component, error) {
	source = source.Normalized()

	client, err := f.pool.ClientFor(source.GitLabInstance)
	if err != nil {
		return nil, err
	}

	projects, err := client.ListGroupProjects(ctx, source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects of group %s: %w", source.Path, err)
	}

	f.logger.Info("Fetching components from group",
		zap.String("group", source.Path),
		zap.Int("projects", len(projects)),
		zap.Int("batch_size", f.batchSize))

	results := gitlab.ProcessBatch(ctx, projects, f.batchSize,
		func(ctx context.Context, project *domain.Project) ([]domain.Component, error) {
			label := source.Name + "/" + project.Name
			return f.fetchProjectComponents(ctx, client, source.GitLabInstance, project, label, project.DefaultBranch), nil
		})

	var components []domain.Component
	for _, result := range results {
		components = append(components, result.Value...)
	}

	if len(components) == 0 {
		return nil, fmt.Errorf("%w in %d projects of group %s", ErrNoComponents, len(projects), source.Path)
	}

	return components, nil
}

// fetchProjectComponents lists templates/*.yml at the project default branch
// and parses each file. The project README is fetched in parallel as a
// description fallback.
func (f *Fetcher) fetchProjectComponents(
	ctx context.Context,
	client domain.RemoteClient,
	instance string,
	project *domain.Project,
	label, ref string,
) []domain.Component {
	if ref == "" {
		ref = "main"
	}

	var (
		readme   string
		readmeWg sync.WaitGroup
	)
	readmeWg.Add(1)
	go func() {
		defer readmeWg.Done()
		content, err := client.GetRawFile(ctx, project.Path, "README.md", ref)
		if err != nil {
			f.logger.Debug("No README available",
				zap.String("project_path", project.Path),
				zap.Error(err))
			return
		}
		readme = string(content)
	}()

	entries, err := client.ListTree(ctx, project.Path, templatesDir, ref)
	if err != nil {
		// reachability was already proven by the metadata lookup; a missing
		// templates directory means the project simply has no catalog
		f.logger.Debug("No templates directory",
			zap.String("project_path", project.Path),
			zap.Error(err))
		readmeWg.Wait()
		return nil
	}

	var templates []domain.TreeEntry
	for _, entry := range entries {
		if entry.Type != "blob" {
			continue
		}
		if strings.HasSuffix(entry.Name, ".yml") || strings.HasSuffix(entry.Name, ".yaml") {
			templates = append(templates, entry)
		}
	}

	if len(templates) == 0 {
		f.logger.Info("No component templates in project",
			zap.String("project_path", project.Path))
		readmeWg.Wait()
		return nil
	}

	readmeWg.Wait()

	results := gitlab.ProcessBatch(ctx, templates, f.batchSize,
		func(ctx context.Context, entry domain.TreeEntry) (domain.Component, error) {
			return f.buildComponent(ctx, client, instance, project, label, ref, readme, entry)
		})

	components := make([]domain.Component, 0, len(templates))
	for i, result := range results {
		if result.Err != nil {
			// degrade the one file, keep the rest
			name := componentName(templates[i].Name)
			f.logger.Warn("Failed to process template file",
				zap.String("project_path", project.Path),
				zap.String("file", templates[i].Path),
				zap.Error(result.Err))
			components = append(components, domain.Component{
				Name:           name,
				Description:    name + " component",
				Source:         label,
				SourcePath:     project.Path,
				GitLabInstance: instance,
				Version:        ref,
				URL:            componentURL(instance, project.Path, name, ref),
				Readme:         readme,
			})
			continue
		}
		components = append(components, result.Value)
	}

	f.logger.Info("Fetched project components",
		zap.String("project_path", project.Path),
		zap.Int("components", len(components)))

	return components
}

// buildComponent fetches one template file and parses its header.
func (f *Fetcher) buildComponent(
	ctx context.Context,
	client domain.RemoteClient,
	instance string,
	project *domain.Project,
	label, ref, readme string,
	entry domain.TreeEntry,
) (domain.Component, error) {
	content, err := client.GetRawFile(ctx, project.Path, entry.Path, ref)
	if err != nil {
		return domain.Component{}, err
	}

	name := componentName(entry.Name)
	parsed := specparse.Parse(string(content))

	// description priority: spec-declared > leading comment (both inside the
	// parser) > README first meaningful line > placeholder
	description := parsed.Description
	if description == "" {
		description = readmeDescription(readme)
	}
	if description == "" {
		description = name + " component"
	}

	return domain.Component{
		Name:           name,
		Description:    description,
		Parameters:     parsed.Parameters,
		Source:         label,
		SourcePath:     project.Path,
		GitLabInstance: instance,
		Version:        ref,
		URL:            componentURL(instance, project.Path, name, ref),
		Readme:         readme,
	}, nil
}

func componentName(fileName string) string {
	return strings.TrimSuffix(fileName, path.Ext(fileName))
}

// componentURL builds the include reference for a component at a version.
func componentURL(instance, projectPath, name, version string) string {
	return fmt.Sprintf("%s/%s/%s@%s", instance, projectPath, name, version)
}

// readmeDescription picks the first meaningful README line: not a heading,
// not a badge link, long enough to say something.
func readmeDescription(readme string) string {
	for _, line := range strings.Split(readme, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "[") {
			continue
		}
		if len(trimmed) > 20 {
			return trimmed
		}
	}
	return ""
}
