package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/patent-pod-intake/internal/config"
	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
	"github.com/kirillkom/patent-pod-intake/internal/core/usecase"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/extractor"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/llm/claude"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/queue/kafkabus"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/storage/s3store"
	"github.com/kirillkom/patent-pod-intake/internal/observability/metrics"
	"github.com/kirillkom/patent-pod-intake/internal/observability/tracing"
)

// EventBus carries ApplicationCommitted events in both directions.
type EventBus interface {
	ports.EventPublisher
	ports.EventSubscriber
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo        ports.ApplicationRepository
	Events      EventBus
	HTTPMetrics *metrics.HTTPServerMetrics
	Pipeline    *metrics.PipelineMetrics

	IntakeUC       ports.IntakeService
	ClassifyUC     ports.ClassificationOrchestrator
	ReviewUC       ports.ReviewService
	ApplicationsUC ports.ApplicationReader

	closeFns []func()
}

// New wires the intake pipeline for service. Everything opened here is
// released by Close, also when New fails halfway.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:    cfg.TracingEnabled,
		Service:    service,
		Endpoint:   cfg.OTLPEndpoint,
		SampleRate: cfg.TraceSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.closeFns = append(app.closeFns, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing_shutdown_failed", "error", err)
		}
	})

	app.HTTPMetrics = metrics.NewHTTPServerMetrics(service)
	app.Pipeline = metrics.NewPipelineMetrics(app.HTTPMetrics.Registry(), service)

	repo, err := app.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	app.Repo = repo

	storage, err := openStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(llmResilienceConfig(cfg),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(app.Pipeline.ObserveBreakerState),
	)
	classifier, err := newClassificationService(cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init classification service: %w", err)
	}

	var publisher ports.EventPublisher
	if cfg.EventsEnabled {
		bus, err := app.openEvents(service)
		if err != nil {
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		app.Events = bus
		publisher = bus
	}

	limits := intakeLimits(cfg)
	app.IntakeUC = usecase.NewIntakeUseCase(repo, storage, extractor.New(cfg.ExtractMaxTextBytes), app.Pipeline, logger, limits)
	app.ClassifyUC = usecase.NewClassifyUseCase(repo, classifier, app.Pipeline, limits)
	app.ReviewUC = usecase.NewReviewUseCase(repo, publisher, app.Pipeline, logger)
	app.ApplicationsUC = usecase.NewApplicationsUseCase(repo)

	logger.Info("bootstrap_ready",
		"db_driver", cfg.DBDriver,
		"storage_backend", cfg.StorageBackend,
		"llm_provider", cfg.LLMProvider,
		"events_enabled", cfg.EventsEnabled,
		"events_backend", cfg.EventsBackend,
		"tracing_enabled", cfg.TracingEnabled,
	)
	return app, nil
}

func (a *App) openRepository(ctx context.Context) (ports.ApplicationRepository, error) {
	switch a.Config.DBDriver {
	case "sqlite":
		if dir := filepath.Dir(a.Config.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		repo, err := sqlite.Open(a.Config.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closeFns = append(a.closeFns, func() { _ = repo.Close() })
		return repo, nil
	default:
		db, err := postgres.OpenDB(a.Config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = db.Close() })
		repo := postgres.NewApplicationRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	}
}

func (a *App) openEvents(service string) (EventBus, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(a.Logger))
	if a.Config.EventsBackend == "kafka" {
		bus, err := kafkabus.New(a.Config.KafkaBrokers, a.Config.KafkaTopic, kafkabus.Options{
			GroupID:            a.Config.KafkaGroupID,
			ResilienceExecutor: executor,
			Logger:             a.Logger,
		})
		if err != nil {
			return nil, err
		}
		a.closeFns = append(a.closeFns, bus.Close)
		return bus, nil
	}
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             a.Logger,
		ClientName:         service,
	})
	if err != nil {
		return nil, err
	}
	a.closeFns = append(a.closeFns, queue.Close)
	return queue, nil
}

func openStorage(cfg config.Config) (ports.ObjectStorage, error) {
	if cfg.StorageBackend == "s3" {
		return s3store.New(s3store.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Prefix:    cfg.S3Prefix,
		})
	}
	return localfs.New(cfg.StoragePath)
}

func newClassificationService(cfg config.Config, executor *resilience.Executor) (ports.ClassificationService, error) {
	if cfg.LLMProvider == "anthropic" {
		model := cfg.AnthropicModel
		if model == "" {
			model = claude.DefaultModel
		}
		return claude.New(cfg.AnthropicAPIKey, model, executor, claude.Options{
			BaseURL:        cfg.AnthropicBaseURL,
			RequestTimeout: classifyTimeout(cfg),
		})
	}
	return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor), nil
}

// llmResilienceConfig keeps the breaker but never retries: a classification
// is attempted once per user action.
func llmResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.DefaultConfig().
		WithBreaker(
			cfg.LLMBreakerEnabled,
			cfg.LLMBreakerMinRequests,
			cfg.LLMBreakerFailureRatio,
			time.Duration(cfg.LLMBreakerOpenTimeoutMS)*time.Millisecond,
		).
		SingleShot()
}

func intakeLimits(cfg config.Config) domain.IntakeLimits {
	return domain.IntakeLimits{
		MinCorpusChars:  cfg.MinCorpusChars,
		PromptMaxChars:  cfg.PromptMaxChars,
		PreviewChars:    cfg.PreviewChars,
		ExtractWorkers:  cfg.ExtractWorkers,
		ClassifyTimeout: classifyTimeout(cfg),
	}
}

func classifyTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.ClassifyTimeoutSeconds) * time.Second
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
