// Package app wires configuration to concrete components and owns their
// lifetimes: everything is constructed at startup, passed down explicitly,
// and torn down when Run returns.
package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/annotate"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/config"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/health"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/infrastructure/blast"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/infrastructure/ensembl"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/infrastructure/ncbi"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/infrastructure/queue"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/infrastructure/storage"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/logging"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/worker"
)

// Application holds the wired components for one worker process.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.PostgresRepository
	queue  *queue.RedisQueue
	worker *worker.Worker
	health *health.Server
}

// New constructs every component up front. Connection pools are pinged here
// so configuration problems surface before the first job, not during it.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	jobQueue, err := queue.NewRedisQueue(ctx, cfg.Queue.URL, cfg.Queue.Name)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpClient := httpx.NewClient(httpx.Options{
		MaxRetries:         cfg.HTTP.MaxRetries,
		BackoffBase:        time.Duration(cfg.HTTP.BackoffBaseSeconds) * time.Second,
		Timeout:            time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		DefaultConcurrency: int64(cfg.HTTP.DefaultConcurrency),
	}, baseLogger.With("component", "httpx"))

	limiters := httpx.NewLimiters(int64(cfg.HTTP.NCBIConcurrency), int64(cfg.HTTP.EnsemblConcurrency))

	aligner := blast.NewClient(httpClient, limiters.NCBI, blast.Options{
		BaseURL:      cfg.Blast.BaseURL,
		Email:        cfg.NCBI.Email,
		APIKey:       cfg.NCBI.APIKey,
		PollInterval: time.Duration(cfg.Blast.PollIntervalSeconds) * time.Second,
		Timeout:      time.Duration(cfg.Blast.TimeoutSeconds) * time.Second,
	}, baseLogger.With("component", "blast"))

	eutils := ncbi.NewEUtilsClient(httpClient, limiters.NCBI, "", cfg.NCBI.Email, cfg.NCBI.APIKey)
	vep := ensembl.NewVEPClient(httpClient, limiters.Ensembl, "")

	annotator := annotate.NewAnnotator(
		annotate.Deps{Functional: vep, Identifier: eutils, Clinical: eutils},
		annotate.Options{
			BatchSize:     cfg.Annotation.BatchSize,
			BatchPause:    cfg.Annotation.BatchPause(),
			MaxConcurrent: int64(cfg.Annotation.MaxConcurrent),
		},
		baseLogger.With("component", "annotate"),
	)

	jobWorker := worker.New(
		worker.Deps{Queue: jobQueue, Store: store, Aligner: aligner, Annotator: annotator},
		worker.Options{PollInterval: cfg.Queue.PollInterval()},
		baseLogger.With("component", "worker"),
	)

	healthServer := health.NewServer(cfg.Health.Port, health.Readiness{
		RedisConfigured:    cfg.Queue.URL != "",
		DatabaseConfigured: cfg.Database.DSN != "",
		NCBIConfigured:     cfg.NCBI.Email != "",
	}, baseLogger.With("component", "health"))

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		store:  store,
		queue:  jobQueue,
		worker: jobWorker,
		health: healthServer,
	}, nil
}

// Run serves the health surface and the worker loop until the context is
// cancelled, then closes the owned resources.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		if err := a.queue.Close(); err != nil {
			a.logger.Error("close queue", "error", err)
		}
		if err := a.store.Close(); err != nil {
			a.logger.Error("close store", "error", err)
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.health.Run(groupCtx) })
	group.Go(func() error { return a.worker.Run(groupCtx) })
	return group.Wait()
}
