package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ci-component-catalog/internal/catalog"
	"ci-component-catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubClient is a scriptable RemoteClient. Keys are "projectPath|path".
type stubClient struct {
	mu       sync.Mutex
	projects map[string]*domain.Project
	trees    map[string][]domain.TreeEntry
	treeErrs map[string]error
	files    map[string]string
	fileErrs map[string]error
	groups   map[string][]*domain.Project
	tags     map[string][]string
	branches map[string][]string

	rawCalls int
}

func (s *stubClient) GetProject(_ context.Context, path string) (*domain.Project, error) {
	if p, ok := s.projects[path]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project %s: 404 not found", path)
}

func (s *stubClient) ListTree(_ context.Context, projectPath, dir, _ string) ([]domain.TreeEntry, error) {
	key := projectPath + "|" + dir
	if err := s.treeErrs[key]; err != nil {
		return nil, err
	}
	return s.trees[key], nil
}

func (s *stubClient) GetRawFile(_ context.Context, projectPath, filePath, _ string) ([]byte, error) {
	s.mu.Lock()
	s.rawCalls++
	s.mu.Unlock()

	key := projectPath + "|" + filePath
	if err := s.fileErrs[key]; err != nil {
		return nil, err
	}
	if content, ok := s.files[key]; ok {
		return []byte(content), nil
	}
	return nil, fmt.Errorf("file %s: 404 not found", key)
}

func (s *stubClient) ListTags(_ context.Context, projectPath string) ([]string, error) {
	return s.tags[projectPath], nil
}

func (s *stubClient) ListBranches(_ context.Context, projectPath string) ([]string, error) {
	return s.branches[projectPath], nil
}

func (s *stubClient) ListGroupProjects(_ context.Context, groupPath string) ([]*domain.Project, error) {
	if projects, ok := s.groups[groupPath]; ok {
		return projects, nil
	}
	return nil, fmt.Errorf("group %s: 404 not found", groupPath)
}

type stubPool struct {
	client domain.RemoteClient
}

func (p *stubPool) ClientFor(string) (domain.RemoteClient, error) {
	return p.client, nil
}

func newFetcher(client *stubClient) *catalog.Fetcher {
	return catalog.NewFetcher(&stubPool{client: client}, 2, zap.NewNop())
}

const deployTemplate = `spec:
  inputs:
    env:
      description: "Target env"
      default: "prod"
  description: "Deploys the app"
---
deploy:
  script: echo deploy
`

func projectSource(path string) domain.Source {
	return domain.Source{Name: "Demo", Path: path, GitLabInstance: "gitlab.example.com", Type: domain.SourceTypeProject}
}

func TestFetchProject(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		projects: map[string]*domain.Project{
			"grp/proj": {ID: 1, Name: "proj", Path: "grp/proj", DefaultBranch: "main", WebURL: "https://gitlab.example.com/grp/proj"},
		},
		trees: map[string][]domain.TreeEntry{
			"grp/proj|templates": {
				{Name: "deploy.yml", Path: "templates/deploy.yml", Type: "blob"},
				{Name: "partials", Path: "templates/partials", Type: "tree"},
				{Name: "notes.txt", Path: "templates/notes.txt", Type: "blob"},
			},
		},
		files: map[string]string{
			"grp/proj|templates/deploy.yml": deployTemplate,
			"grp/proj|README.md":            "# proj\n\nA project full of reusable pipeline pieces.",
		},
	}

	components, err := newFetcher(client).FetchProject(context.Background(), projectSource("grp/proj"))
	require.NoError(t, err)
	require.Len(t, components, 1)

	component := components[0]
	assert.Equal(t, "deploy", component.Name)
	assert.Equal(t, "Deploys the app", component.Description)
	assert.Equal(t, "Demo", component.Source)
	assert.Equal(t, "grp/proj", component.SourcePath)
	assert.Equal(t, "gitlab.example.com", component.GitLabInstance)
	assert.Equal(t, "main", component.Version)
	assert.Equal(t, "gitlab.example.com/grp/proj/deploy@main", component.URL)
	require.Len(t, component.Parameters, 1)
	assert.Equal(t, "env", component.Parameters[0].Name)
}

func TestFetchProject_ReadmeDescriptionFallback(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		projects: map[string]*domain.Project{
			"grp/proj": {ID: 1, Name: "proj", Path: "grp/proj", DefaultBranch: "main"},
		},
		trees: map[string][]domain.TreeEntry{
			"grp/proj|templates": {{Name: "lint.yml", Path: "templates/lint.yml", Type: "blob"}},
		},
		files: map[string]string{
			"grp/proj|templates/lint.yml": "lint:\n  script: echo lint\n",
			"grp/proj|README.md":          "# heading\n[![badge](x)](y)\nshort\nRuns static analysis over merge requests.",
		},
	}

	components, err := newFetcher(client).FetchProject(context.Background(), projectSource("grp/proj"))
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Equal(t, "Runs static analysis over merge requests.", components[0].Description)
}

func TestFetchProject_PlaceholderDescription(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		projects: map[string]*domain.Project{
			"grp/proj": {ID: 1, Name: "proj", Path: "grp/proj", DefaultBranch: "main"},
		},
		trees: map[string][]domain.TreeEntry{
			"grp/proj|templates": {{Name: "lint.yaml", Path: "templates/lint.yaml", Type: "blob"}},
		},
		files: map[string]string{
			"grp/proj|templates/lint.yaml": "lint:\n  script: echo lint\n",
		},
	}

	components, err := newFetcher(client).FetchProject(context.Background(), projectSource("grp/proj"))
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Equal(t, "lint component", components[0].Description)
}

func TestFetchProject_FileFailureDegradesOneComponent(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		projects: map[string]*domain.Project{
			"grp/proj": {ID: 1, Name: "proj", Path: "grp/proj", DefaultBranch: "main"},
		},
		trees: map[string][]domain.TreeEntry{
			"grp/proj|templates": {
				{Name: "deploy.yml", Path: "templates/deploy.yml", Type: "blob"},
				{Name: "broken.yml", Path: "templates/broken.yml", Type: "blob"},
			},
		},
		files: map[string]string{
			"grp/proj|templates/deploy.yml": deployTemplate,
		},
		fileErrs: map[string]error{
			"grp/proj|templates/broken.yml": errors.New("500 internal error"),
		},
	}

	components, err := newFetcher(client).FetchProject(context.Background(), projectSource("grp/proj"))
	require.NoError(t, err)
	require.Len(t, components, 2)

	assert.Equal(t, "Deploys the app", components[0].Description)
	assert.Equal(t, "broken", components[1].Name)
	assert.Equal(t, "broken component", components[1].Description)
	assert.Empty(t, components[1].Parameters)
}

func TestFetchProject_NoTemplatesIsNotAnError(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		projects: map[string]*domain.Project{
			"grp/empty": {ID: 2, Name: "empty", Path: "grp/empty", DefaultBranch: "main"},
		},
	}

	components, err := newFetcher(client).FetchProject(context.Background(), projectSource("grp/empty"))
	require.NoError(t, err)
	assert.Empty(t, components)
}

func TestFetchProject_MetadataFailureIsAnError(t *testing.T) {
	t.Parallel()

	client := &stubClient{}

	_, err := newFetcher(client).FetchProject(context.Background(), projectSource("grp/missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve project")
}

func TestFetchProjectAtRef(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		projects: map[string]*domain.Project{
			"grp/proj": {ID: 1, Name: "proj", Path: "grp/proj", DefaultBranch: "main"},
		},
		trees: map[string][]domain.TreeEntry{
			"grp/proj|templates": {{Name: "deploy.yml", Path: "templates/deploy.yml", Type: "blob"}},
		},
		files: map[string]string{
			"grp/proj|templates/deploy.yml": deployTemplate,
		},
	}

	components, err := newFetcher(client).FetchProjectAtRef(context.Background(), projectSource("grp/proj"), "v1.2.0")
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.Equal(t, "v1.2.0", components[0].Version)
	assert.Equal(t, "gitlab.example.com/grp/proj/deploy@v1.2.0", components[0].URL)
}

func groupSource(path string) domain.Source {
	return domain.Source{Name: "Team", Path: path, GitLabInstance: "gitlab.example.com", Type: domain.SourceTypeGroup}
}

func TestFetchGroup_PartialFailure(t *testing.T) {
	t.Parallel()

	// project two is broken at the tree-listing level; one and three still
	// contribute
	client := &stubClient{
		projects: map[string]*domain.Project{},
		groups: map[string][]*domain.Project{
			"team": {
				{ID: 1, Name: "one", Path: "team/one", DefaultBranch: "main"},
				{ID: 2, Name: "two", Path: "team/two", DefaultBranch: "main"},
				{ID: 3, Name: "three", Path: "team/three", DefaultBranch: "main"},
			},
		},
		trees: map[string][]domain.TreeEntry{
			"team/one|templates":   {{Name: "build.yml", Path: "templates/build.yml", Type: "blob"}},
			"team/three|templates": {{Name: "test.yml", Path: "templates/test.yml", Type: "blob"}},
		},
		treeErrs: map[string]error{
			"team/two|templates": errors.New("503 service unavailable"),
		},
		files: map[string]string{
			"team/one|templates/build.yml":  "build:\n  script: echo build\n",
			"team/three|templates/test.yml": "test:\n  script: echo test\n",
		},
	}

	components, err := newFetcher(client).FetchGroup(context.Background(), groupSource("team"))
	require.NoError(t, err)
	require.Len(t, components, 2)

	names := []string{components[0].Name, components[1].Name}
	assert.ElementsMatch(t, []string{"build", "test"}, names)
	assert.Equal(t, "Team/one", components[0].Source)
}

func TestFetchGroup_NoComponentsAnywhere(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		groups: map[string][]*domain.Project{
			"team": {
				{ID: 1, Name: "one", Path: "team/one", DefaultBranch: "main"},
				{ID: 2, Name: "two", Path: "team/two", DefaultBranch: "main"},
			},
		},
	}

	_, err := newFetcher(client).FetchGroup(context.Background(), groupSource("team"))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrNoComponents)
	assert.Contains(t, err.Error(), "2 projects")
}

func TestFetchGroup_ListingFailureIsAnError(t *testing.T) {
	t.Parallel()

	client := &stubClient{}

	_, err := newFetcher(client).FetchGroup(context.Background(), groupSource("missing"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNoComponents)
}
