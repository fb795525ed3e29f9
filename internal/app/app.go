package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"NewsHarvester/internal/config"
	"NewsHarvester/internal/infrastructure/embedding"
	"NewsHarvester/internal/infrastructure/extract"
	"NewsHarvester/internal/infrastructure/fetch"
	"NewsHarvester/internal/infrastructure/ml"
	"NewsHarvester/internal/infrastructure/push"
	"NewsHarvester/internal/infrastructure/scheduler"
	"NewsHarvester/internal/infrastructure/storage"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/ports"
	"NewsHarvester/internal/usecase"
)

const shutdownGrace = 30 * time.Second

// Application wires configuration into the ingestion pipeline and its
// scheduler.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := storage.NewRepository(db, baseLogger.With("component", "storage"))

	headless := fetch.NewHeadless(fetch.HeadlessOptions{
		NavTimeout:       cfg.Headless.NavTimeout(),
		ConsentSelectors: cfg.Headless.ConsentSelectors,
		BinCandidates:    cfg.Headless.BinCandidates,
	}, baseLogger.With("component", "headless"))

	resolver := fetch.NewResolver(
		&http.Client{Timeout: cfg.Fetch.Timeout()},
		headless,
		cfg.Fetch.UserAgent,
		baseLogger.With("component", "fetch"),
	)

	var provider ports.EmbeddingProvider
	if cfg.Embedding.APIKey != "" {
		provider = embedding.NewClient(cfg.Embedding)
	}

	var reducer ports.DimensionalityReducer
	if cfg.Reducer.InferenceURL != "" {
		reducer = ml.NewClient(cfg.Reducer.InferenceURL, cfg.Reducer.APIKey)
	}

	var gateway ports.NotificationGateway
	if cfg.Push.Endpoint != "" {
		gateway = push.NewGateway(cfg.Push.Endpoint, cfg.Push.APIKey)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:  repo,
		Store:    repo,
		Fetcher:  resolver,
		Lists:    extract.NewListExtractor(baseLogger.With("component", "lists")),
		Articles: extract.NewArticleExtractor(baseLogger.With("component", "articles")),
		Images:   extract.NewImageNormalizer(baseLogger.With("component", "images")),
		Enricher: usecase.NewEmbeddingEnricher(provider, reducer, cfg.Embedding.MaxChars,
			baseLogger.With("component", "enricher")),
		Recipients: repo,
		Notifier:   gateway,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewCronScheduler(frequencySchedules(cfg), cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, pipeline, baseLogger.With("component", "scheduler"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		pipeline:  pipeline,
		scheduler: sched,
	}, nil
}

// Run starts the scheduler and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("ingestion scheduler started")

	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop failed", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}
	return nil
}

// RunOnce executes a single pipeline pass for one frequency tag,
// bypassing the scheduler. Used by the -once flag for manual runs.
func (a *Application) RunOnce(ctx context.Context, frequency string) error {
	defer a.db.Close()
	return a.pipeline.Run(ctx, parseFrequency(frequency))
}
