package domain

import "context"

// TreeEntry is one file listed from a repository tree.
type TreeEntry struct {
	Name string
	Path string
	Type string // "blob" or "tree"
}

// RemoteClient is the GitLab API surface the catalog code consumes. Retries
// and backoff live inside the implementation.
type RemoteClient interface {
	// resolves project metadata by full path
	GetProject(ctx context.Context, path string) (*Project, error)

	// lists entries of a directory at a ref
	ListTree(ctx context.Context, projectPath, dir, ref string) ([]TreeEntry, error)

	// returns the raw content of a file at a ref
	GetRawFile(ctx context.Context, projectPath, filePath, ref string) ([]byte, error)

	// returns tag names of a project, newest first as reported by the API
	ListTags(ctx context.Context, projectPath string) ([]string, error)

	// returns branch names of a project
	ListBranches(ctx context.Context, projectPath string) ([]string, error)

	// returns member projects of a group, including subgroups
	ListGroupProjects(ctx context.Context, groupPath string) ([]*Project, error)
}

// ClientPool resolves a RemoteClient per GitLab instance host.
type ClientPool interface {
	ClientFor(instance string) (RemoteClient, error)
}

// CatalogFetcher discovers components in one configured source.
type CatalogFetcher interface {
	// fetches all components exposed by a single project
	FetchProject(ctx context.Context, source Source) ([]Component, error)

	// fetches a single project's components at a specific tag or branch
	FetchProjectAtRef(ctx context.Context, source Source, ref string) ([]Component, error)

	// fetches components from every member project of a group
	FetchGroup(ctx context.Context, source Source) ([]Component, error)
}

// SnapshotStore persists the cache snapshot between runs.
type SnapshotStore interface {
	// returns nil, nil when no valid snapshot exists
	Load(ctx context.Context) (*CacheSnapshot, error)
	Save(ctx context.Context, snapshot *CacheSnapshot) error
	Close() error
}
