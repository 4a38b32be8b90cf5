package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dailybrief/internal/config"
	"dailybrief/internal/domain"
	"dailybrief/internal/email"
	"dailybrief/internal/fetch"
	"dailybrief/internal/llm"
	"dailybrief/internal/logging"
	"dailybrief/internal/ports"
	"dailybrief/internal/readability"
	"dailybrief/internal/scheduler"
	"dailybrief/internal/storage"
	"dailybrief/internal/usecase"
	"dailybrief/internal/youtube"
)

// Application wires configuration to the pipeline and its lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	users    ports.UserStore
	pipeline *usecase.Pipeline
	driver   ports.Scheduler
}

// New builds a runnable application instance. Construction fails fast on
// unusable credentials or an unreachable database.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	sources := storage.NewSourceRepository(db)
	articles := storage.NewArticleRepository(db, baseLogger.With("component", "storage.articles"))
	videos := storage.NewVideoRepository(db, baseLogger.With("component", "storage.videos"))
	digests := storage.NewDigestRepository(db)
	users := storage.NewUserRepository(db)

	articleSources := make([]ports.ArticleSource, 0, len(cfg.Sources.Articles))
	for _, sourceCfg := range cfg.Sources.Articles {
		fetcher, err := fetch.NewFeedFetcher(sourceCfg, httpClient, baseLogger.With("component", "fetch.feeds"))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("configure source %s: %w", sourceCfg.Name, err)
		}
		articleSources = append(articleSources, fetcher)
	}

	var videoSource ports.VideoSource
	if len(cfg.Sources.Channels) > 0 {
		resolver := youtube.NewResolver(httpClient)
		videoSource = fetch.NewChannelFetcher(cfg.Sources.Channels, resolver, httpClient,
			baseLogger.With("component", "fetch.channels"))
	}

	aggregator := fetch.NewAggregator(articleSources, videoSource, baseLogger.With("component", "fetch"))

	llmClient, err := llm.NewClient(cfg.OpenAI, nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	mailer, err := email.NewSender(cfg.SMTP)
	if err != nil {
		db.Close()
		return nil, err
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Aggregator:  aggregator,
		Sources:     sources,
		Articles:    articles,
		Videos:      videos,
		Digests:     digests,
		Users:       users,
		Bodies:      readability.NewFetcher(httpClient),
		Transcripts: youtube.NewTranscriptClient(httpClient),
		Summarizer:  llm.NewDigestAgent(llmClient),
		Ranker:      llm.NewRankerAgent(llmClient),
		IntroWriter: llm.NewIntroAgent(llmClient, baseLogger.With("component", "llm.intro")),
		Composer:    email.NewComposer(),
		Mailer:      mailer,
		Logger:      baseLogger.With("component", "pipeline"),

		Lookback:      cfg.Pipeline.Lookback(),
		BackfillLimit: cfg.Pipeline.BackfillLimit,
		HTMLEmail:     cfg.Pipeline.HTMLEmail,
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		users:    users,
		pipeline: pipeline,
		driver:   scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
	}, nil
}

// RunOnce executes a single pipeline pass.
func (a *Application) RunOnce(ctx context.Context) error {
	_, err := a.pipeline.Run(ctx)
	return err
}

// RunDaemon schedules the pipeline on the configured cron expression and
// blocks until the context is cancelled.
func (a *Application) RunDaemon(ctx context.Context) error {
	err := a.driver.Start(ctx, func(trigger time.Time) {
		a.logger.Info("scheduled run triggered", "at", trigger)
		if _, err := a.pipeline.Run(ctx); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.driver.Stop(stopCtx)
}

// UpsertUser registers or updates a briefing recipient.
func (a *Application) UpsertUser(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	return a.users.Upsert(ctx, profile)
}

// Close releases the database handle.
func (a *Application) Close() error {
	return a.db.Close()
}
