package cmd

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/psdocs/doc-harvester/internal/clock/system"
	"github.com/psdocs/doc-harvester/internal/config"
	"github.com/psdocs/doc-harvester/internal/dedup"
	"github.com/psdocs/doc-harvester/internal/extract"
	collyfetcher "github.com/psdocs/doc-harvester/internal/fetcher/colly"
	"github.com/psdocs/doc-harvester/internal/harvest"
	"github.com/psdocs/doc-harvester/internal/hash/md5"
	"github.com/psdocs/doc-harvester/internal/id/uuid"
	"github.com/psdocs/doc-harvester/internal/jobs"
	"github.com/psdocs/doc-harvester/internal/logging"
	"github.com/psdocs/doc-harvester/internal/progress"
	"github.com/psdocs/doc-harvester/internal/progress/sinks"
	pubsubpublisher "github.com/psdocs/doc-harvester/internal/publisher/pubsub"
	"github.com/psdocs/doc-harvester/internal/storage/gcs"
	"github.com/psdocs/doc-harvester/internal/storage/memory"
	"github.com/psdocs/doc-harvester/internal/storage/postgres"
	"github.com/psdocs/doc-harvester/internal/summarize"
	"github.com/psdocs/doc-harvester/internal/walker"
)

// components is the fully wired object graph shared by serve and crawl.
type components struct {
	cfg     config.Config
	logger  *zap.Logger
	hub     *progress.Hub
	jobs    *jobs.Service
	closers []func()
}

// close tears components down in reverse wiring order.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func buildComponents(ctx context.Context, cfgPath string) (*components, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	c := &components{cfg: cfg, logger: logger}
	c.closers = append(c.closers, func() { _ = logger.Sync() })

	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLog(logger.Named("progress")),
		sinks.NewPrometheus(),
	)
	c.hub = hub
	c.closers = append(c.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Close(closeCtx)
	})

	clock := system.New()
	idGen := uuid.New()

	scriptStore, documentStore, err := c.buildStores(ctx, idGen)
	if err != nil {
		c.close()
		return nil, err
	}

	snapshots, err := c.buildSnapshots(ctx)
	if err != nil {
		c.close()
		return nil, err
	}

	var client summarize.Client
	if cfg.Summarizer.Endpoint != "" {
		httpClient, err := summarize.NewHTTPClient(summarize.ClientConfig{
			Endpoint: cfg.Summarizer.Endpoint,
			APIKey:   cfg.Summarizer.APIKey,
			Model:    cfg.Summarizer.Model,
			Timeout:  cfg.SummarizeTimeout(),
		})
		if err != nil {
			c.close()
			return nil, fmt.Errorf("init summarizer client: %w", err)
		}
		client = httpClient
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	walk := walker.New(
		fetcher,
		extract.New(),
		summarize.NewAdapter(client, logger.Named("summarize")),
		dedup.New(scriptStore, md5.New(), logger.Named("dedup")),
		documentStore,
		snapshots,
		clock,
		hub,
		logger.Named("walker"),
		walker.Config{
			MaxLinksPerPage:   cfg.Crawler.MaxLinksPerPage,
			MaxScriptsPerPage: cfg.Crawler.MaxScriptsPerPage,
		},
	)

	publisher, err := c.buildPublisher(ctx)
	if err != nil {
		c.close()
		return nil, err
	}

	c.jobs = jobs.New(
		walk,
		publisher,
		clock,
		idGen,
		hub,
		logger.Named("jobs"),
		jobs.Config{
			TTL:             cfg.JobTTL(),
			SweepInterval:   cfg.SweepInterval(),
			CompletionTopic: cfg.PubSub.TopicName,
		},
	)
	return c, nil
}

func (c *components) buildStores(ctx context.Context, idGen harvest.IDGenerator) (harvest.ScriptStore, harvest.DocumentStore, error) {
	switch c.cfg.Storage.Backend {
	case "postgres":
		pgCfg := postgres.Config{
			DSN:             c.cfg.DB.DSN,
			MaxConns:        int32(c.cfg.DB.MaxConns),
			MinConns:        int32(c.cfg.DB.MinConns),
			MaxConnLifetime: time.Duration(c.cfg.DB.ConnLifetimeMinute) * time.Minute,
		}
		scripts, err := postgres.NewScriptStore(ctx, pgCfg, idGen)
		if err != nil {
			return nil, nil, fmt.Errorf("init script store: %w", err)
		}
		c.closers = append(c.closers, scripts.Close)
		documents, err := postgres.NewDocumentStore(ctx, pgCfg, idGen)
		if err != nil {
			return nil, nil, fmt.Errorf("init document store: %w", err)
		}
		c.closers = append(c.closers, documents.Close)
		return scripts, documents, nil
	default:
		return memory.NewScriptStore(), memory.NewDocumentStore(), nil
	}
}

func (c *components) buildSnapshots(ctx context.Context) (harvest.SnapshotStore, error) {
	switch c.cfg.Snapshot.Backend {
	case "memory":
		return memory.NewSnapshotStore(), nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		c.closers = append(c.closers, func() { _ = client.Close() })
		store, err := gcs.New(client, gcs.Config{
			Bucket: c.cfg.Snapshot.GCSBucket,
			Prefix: c.cfg.Snapshot.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init snapshot store: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

func (c *components) buildPublisher(ctx context.Context) (harvest.Publisher, error) {
	if c.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, c.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	c.closers = append(c.closers, func() { _ = client.Close() })
	publisher, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	return publisher, nil
}
