package audit

import "context"

// Artifact is a downloaded video on local disk. Close releases it.
type Artifact struct {
	Path    string
	release func() error
}

// NewArtifact wraps a local path with its release function.
func NewArtifact(path string, release func() error) *Artifact {
	return &Artifact{Path: path, release: release}
}

// Close removes the artifact. Safe to call more than once.
func (a *Artifact) Close() error {
	if a == nil || a.release == nil {
		return nil
	}
	release := a.release
	a.release = nil
	return release()
}

// Downloader port (ambil video dari URL publik)
type Downloader interface {
	Download(ctx context.Context, videoURL, sessionID string) (*Artifact, error)
}

// Insights is the raw payload of a processed indexing job.
type Insights interface {
	Extract() Ingested
}

// VideoIndexer port (remote indexing job)
type VideoIndexer interface {
	Upload(ctx context.Context, localPath, name string) (string, error)
	WaitForProcessing(ctx context.Context, remoteID string) (Insights, error)
}

// Retriever returns rule passages relevant to a query, closest first.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// ChatModel runs a single system+user completion.
type ChatModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
