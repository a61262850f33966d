// Package bootstrap builds the runtime components from a loaded config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/bryanwahyu/drishti/internal/application"
	appaudit "github.com/bryanwahyu/drishti/internal/application/audit"
	appknowledge "github.com/bryanwahyu/drishti/internal/application/knowledge"
	"github.com/bryanwahyu/drishti/internal/config"
	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
	"github.com/bryanwahyu/drishti/internal/infra/ai/openai"
	"github.com/bryanwahyu/drishti/internal/infra/downloader/ytdlp"
	"github.com/bryanwahyu/drishti/internal/infra/search/azure"
	"github.com/bryanwahyu/drishti/internal/infra/search/postgres"
	"github.com/bryanwahyu/drishti/internal/infra/search/sqlstore"
	"github.com/bryanwahyu/drishti/internal/infra/storage"
	"github.com/bryanwahyu/drishti/internal/infra/videoindexer"
)

// Store is a vector store that can report its reachability.
type Store interface {
	knowledge.VectorStore
	Ping(ctx context.Context) error
}

// Components holds everything built from config. Close releases them.
type Components struct {
	Model  *openai.Client
	Store  Store
	Bucket *storage.Bucket // nil unless minio is configured

	closers []func() error
}

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires the model client, vector store and optional bucket. When
// ensure is set the store's schema or index is created if missing.
func Build(ctx context.Context, cfg *config.Config, ensure bool) (*Components, error) {
	model := openai.NewClient(openai.Options{
		Endpoint:            cfg.OpenAI.Endpoint,
		APIKey:              cfg.OpenAI.APIKey,
		APIVersion:          cfg.OpenAI.APIVersion,
		Azure:               cfg.OpenAI.Azure,
		ChatDeployment:      cfg.OpenAI.ChatDeployment,
		EmbeddingDeployment: cfg.OpenAI.EmbeddingDeployment,
		JSONMode:            cfg.UseJSONMode(),
		MaxTokens:           cfg.OpenAI.MaxTokens,
		Temperature:         cfg.OpenAI.Temperature,
	})
	c := &Components{Model: model}

	store, closeStore, err := NewStore(ctx, cfg.Search, model, ensure)
	if err != nil {
		return nil, err
	}
	c.Store = store
	c.closers = append(c.closers, closeStore)

	if cfg.Minio.Endpoint != "" {
		bucket, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.Prefix,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("minio init: %w", err)
		}
		c.Bucket = bucket
	}
	return c, nil
}

// NewStore opens the vector store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg config.Search, embedder knowledge.Embedder, ensure bool) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "azure":
		s, err := azure.NewStore(azure.Options{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			IndexName:  cfg.IndexName,
			Dimensions: cfg.Dimensions,
		}, embedder, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return nil, nil, err
		}
		if ensure {
			if err := s.EnsureIndex(ctx); err != nil {
				return nil, nil, fmt.Errorf("ensure search index: %w", err)
			}
		}
		return s, noop, nil

	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		s := postgres.NewStore(db, embedder, cfg.Table, cfg.Dimensions)
		if ensure {
			if err := s.EnsureSchema(ctx); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("ensure pgvector schema: %w", err)
			}
		}
		return s, db.Close, nil

	case "mysql", "sqlite":
		dialect := sqlstore.Dialect(cfg.Backend)
		db, err := sqlstore.Connect(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%s connect: %w", cfg.Backend, err)
		}
		s := sqlstore.NewStore(db, dialect, embedder, cfg.Table)
		if ensure {
			if err := s.EnsureSchema(ctx); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("ensure %s schema: %w", cfg.Backend, err)
			}
		}
		return s, db.Close, nil
	}
	return nil, nil, fmt.Errorf("search: unsupported backend %q", cfg.Backend)
}

// Workflow assembles the two-node audit workflow on top of c.
func Workflow(cfg *config.Config, c *Components) (*appaudit.Workflow, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	vi := cfg.VideoIndexer
	httpClient := &http.Client{Timeout: 60 * time.Second}
	tokens := videoindexer.NewTokenSource(cred, httpClient, vi.ManagementBaseURL, videoindexer.Account{
		SubscriptionID: vi.SubscriptionID,
		ResourceGroup:  vi.ResourceGroup,
		Name:           vi.AccountName,
	}, vi.AccountTokenTTL, application.SystemClock{})

	// upload streams the whole file; the per-call UploadTimeout bounds it
	indexer := videoindexer.NewClient(videoindexer.Options{
		AccountID:       vi.AccountID,
		Location:        vi.Location,
		APIBaseURL:      vi.APIBaseURL,
		Language:        vi.Language,
		Privacy:         vi.Privacy,
		IndexingPreset:  vi.IndexingPreset,
		PollInterval:    vi.PollInterval,
		PollMaxInterval: vi.PollMaxInterval,
		PollTimeout:     vi.PollTimeout,
		PollMaxAttempts: vi.PollMaxAttempts,
		UploadTimeout:   vi.UploadTimeout,
	}, tokens, &http.Client{})

	dl := cfg.Downloader
	downloader := ytdlp.NewRunner(ytdlp.Options{
		Binary:       dl.Binary,
		WorkDir:      dl.WorkDir,
		Format:       dl.Format,
		AllowedHosts: dl.AllowedHosts,
		Timeout:      dl.Timeout,
	})

	slog.Info("audit workflow ready",
		"search_backend", cfg.Search.Backend,
		"chat_deployment", cfg.OpenAI.ChatDeployment,
		"top_k", cfg.Search.TopK,
	)
	return appaudit.NewWorkflow(
		&appaudit.IndexerNode{Downloader: downloader, Indexer: indexer},
		&appaudit.AuditorNode{
			Retriever: appknowledge.NewRetriever(c.Store),
			Model:     c.Model,
			TopK:      cfg.Search.TopK,
		},
	), nil
}

// Ingestor builds the ingestion job reading from the configured source.
func Ingestor(cfg *config.Config, c *Components) (*appknowledge.Ingestor, error) {
	var source knowledge.DocumentSource
	switch cfg.Knowledge.Source {
	case "dir":
		source = storage.NewDir(cfg.Knowledge.DocsDir)
	case "minio":
		if c.Bucket == nil {
			return nil, errors.New("knowledge: minio source needs the minio section")
		}
		source = c.Bucket
	default:
		return nil, fmt.Errorf("knowledge: unsupported source %q", cfg.Knowledge.Source)
	}
	return appknowledge.NewIngestor(source, c.Store, c.Model, appknowledge.IngestOptions{
		ChunkSize:    cfg.Knowledge.ChunkSize,
		ChunkOverlap: cfg.Knowledge.ChunkOverlap,
		BatchSize:    cfg.Knowledge.BatchSize,
		LockPath:     cfg.Knowledge.LockPath,
	}), nil
}
