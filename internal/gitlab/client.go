package gitlab

import (
	"context"
	"fmt"
	"sync"

	"ci-component-catalog/internal/domain"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"
)

const (
	perPage = 100
	// bounded workers for concurrent page fetches of large groups
	maxPageWorkers = 5
)

// Client wraps the GitLab API for one instance host. Retries and backoff are
// handled inside the underlying client.
type Client struct {
	instance string
	client   *gitlab.Client
	logger   *zap.Logger
}

var _ domain.RemoteClient = (*Client)(nil)

// NewClient creates a client for one GitLab instance. The token may be empty
// for anonymous access to public projects.
func NewClient(instance, token string, logger *zap.Logger) (*Client, error) {
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL("https://"+instance))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client for %s: %w", instance, err)
	}

	return &Client{
		instance: instance,
		client:   client,
		logger:   logger,
	}, nil
}

// Instance returns the host this client talks to.
func (c *Client) Instance() string {
	return c.instance
}

// GetProject resolves project metadata by its full path.
func (c *Client) GetProject(ctx context.Context, path string) (*domain.Project, error) {
	c.logger.Debug("Fetching project metadata",
		zap.String("instance", c.instance),
		zap.String("project_path", path))

	project, _, err := c.client.Projects.GetProject(path, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", path, err)
	}

	return &domain.Project{
		ID:            project.ID,
		Name:          project.Name,
		Path:          project.PathWithNamespace,
		DefaultBranch: project.DefaultBranch,
		WebURL:        project.WebURL,
	}, nil
}

// ListTree lists the entries of one directory at a ref. Listing is paged;
// all pages are drained.
func (c *Client) ListTree(ctx context.Context, projectPath, dir, ref string) ([]domain.TreeEntry, error) {
	c.logger.Debug("Listing repository tree",
		zap.String("project_path", projectPath),
		zap.String("dir", dir),
		zap.String("ref", ref))

	var entries []domain.TreeEntry
	page := 1

	for {
		tree, resp, err := c.client.Repositories.ListTree(projectPath, &gitlab.ListTreeOptions{
			Path: gitlab.Ptr(dir),
			Ref:  gitlab.Ptr(ref),
			ListOptions: gitlab.ListOptions{
				Page:    page,
				PerPage: perPage,
			},
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s in %s: %w", dir, projectPath, err)
		}

		for _, item := range tree {
			entries = append(entries, domain.TreeEntry{
				Name: item.Name,
				Path: item.Path,
				Type: item.Type,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	c.logger.Debug("Listed repository tree",
		zap.String("project_path", projectPath),
		zap.Int("entries", len(entries)))

	return entries, nil
}

// GetRawFile returns the raw content of one file at a ref.
func (c *Client) GetRawFile(ctx context.Context, projectPath, filePath, ref string) ([]byte, error) {
	c.logger.Debug("Fetching raw file",
		zap.String("project_path", projectPath),
		zap.String("file_path", filePath),
		zap.String("ref", ref))

	content, _, err := c.client.RepositoryFiles.GetRawFile(projectPath, filePath, &gitlab.GetRawFileOptions{
		Ref: gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s from project %s: %w", filePath, projectPath, err)
	}

	return content, nil
}

// ListTags returns all tag names of a project, draining pagination.
func (c *Client) ListTags(ctx context.Context, projectPath string) ([]string, error) {
	var names []string
	page := 1

	for {
		tags, resp, err := c.client.Tags.ListTags(projectPath, &gitlab.ListTagsOptions{
			ListOptions: gitlab.ListOptions{
				Page:    page,
				PerPage: perPage,
			},
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list tags for %s: %w", projectPath, err)
		}

		for _, tag := range tags {
			names = append(names, tag.Name)
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	c.logger.Debug("Listed project tags",
		zap.String("project_path", projectPath),
		zap.Int("tags", len(names)))

	return names, nil
}

// ListBranches returns all branch names of a project.
func (c *Client) ListBranches(ctx context.Context, projectPath string) ([]string, error) {
	var names []string
	page := 1

	for {
		branches, resp, err := c.client.Branches.ListBranches(projectPath, &gitlab.ListBranchesOptions{
			ListOptions: gitlab.ListOptions{
				Page:    page,
				PerPage: perPage,
			},
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list branches for %s: %w", projectPath, err)
		}

		for _, branch := range branches {
			names = append(names, branch.Name)
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	return names, nil
}

// ListGroupProjects returns every member project of a group, including
// subgroups. The first page establishes the total; remaining pages are
// fetched by a bounded worker pool and reassembled in page order.
func (c *Client) ListGroupProjects(ctx context.Context, groupPath string) ([]*domain.Project, error) {
	c.logger.Debug("Listing group projects",
		zap.String("instance", c.instance),
		zap.String("group_path", groupPath))

	firstPage, resp, err := c.client.Groups.ListGroupProjects(groupPath, &gitlab.ListGroupProjectsOptions{
		ListOptions: gitlab.ListOptions{
			Page:    1,
			PerPage: perPage,
		},
		IncludeSubGroups: gitlab.Ptr(true),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for group %s: %w", groupPath, err)
	}

	totalPages := resp.TotalPages
	if totalPages <= 1 {
		return convertProjects(firstPage), nil
	}

	c.logger.Debug("Multi-page group detected, fetching pages concurrently",
		zap.String("group_path", groupPath),
		zap.Int("total_pages", totalPages))

	pageResults := make([][]*domain.Project, totalPages+1)
	pageResults[1] = convertProjects(firstPage)

	pageChan := make(chan int, totalPages-1)
	for page := 2; page <= totalPages; page++ {
		pageChan <- page
	}
	close(pageChan)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < maxPageWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pageChan {
				select {
				case <-ctx.Done():
					mu.Lock()
					if firstErr == nil {
						firstErr = ctx.Err()
					}
					mu.Unlock()
					return
				default:
				}

				projects, _, err := c.client.Groups.ListGroupProjects(groupPath, &gitlab.ListGroupProjectsOptions{
					ListOptions: gitlab.ListOptions{
						Page:    page,
						PerPage: perPage,
					},
					IncludeSubGroups: gitlab.Ptr(true),
				}, gitlab.WithContext(ctx))

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("failed to get page %d for group %s: %w", page, groupPath, err)
					}
				} else {
					pageResults[page] = convertProjects(projects)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	var all []*domain.Project
	for page := 1; page <= totalPages; page++ {
		all = append(all, pageResults[page]...)
	}

	c.logger.Debug("Listed group projects",
		zap.String("group_path", groupPath),
		zap.Int("projects", len(all)))

	return all, nil
}

func convertProjects(projects []*gitlab.Project) []*domain.Project {
	out := make([]*domain.Project, 0, len(projects))
	for _, project := range projects {
		out = append(out, &domain.Project{
			ID:            project.ID,
			Name:          project.Name,
			Path:          project.PathWithNamespace,
			DefaultBranch: project.DefaultBranch,
			WebURL:        project.WebURL,
		})
	}
	return out
}
