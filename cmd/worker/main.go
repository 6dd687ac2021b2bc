package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadchat_backend/internal/config"
	"leadchat_backend/internal/httpapi"
	"leadchat_backend/internal/intake"
	"leadchat_backend/internal/msgcrypto"
	"leadchat_backend/internal/pipeline"
	"leadchat_backend/internal/store"
	"leadchat_backend/platform/ai/chatcomp"
	"leadchat_backend/platform/ai/gemini"
	"leadchat_backend/platform/ai/textgen"
	"leadchat_backend/platform/db"
	"leadchat_backend/platform/events"
	"leadchat_backend/platform/logger"
	"leadchat_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "addr", cfg.HTTPAddr, "intake", cfg.IntakeMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg.DatabaseURL, store.MigrationsFS, store.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	registerEventLogging(eventBus, log)

	codec, err := msgcrypto.NewCodec(cfg.MessageKey)
	if err != nil {
		log.Error("failed to initialize message codec", "error", err)
		panic("failed to initialize message codec: " + err.Error())
	}

	backend, err := newGenerationBackend(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize generation backend", "error", err)
		panic("failed to initialize generation backend: " + err.Error())
	}
	gen := textgen.NewService(backend, textgen.Options{
		Timeout:           cfg.GenerationTimeout,
		Retries:           cfg.GenerationRetries,
		RequestsPerSecond: cfg.GenerationRPS,
	}, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Layer
	// ========================================================================

	messages := store.NewMessageRepository(pool)
	leads := store.NewLeadRepository(pool)

	proc := pipeline.NewProcessor(pipeline.Deps{
		Messages:   messages,
		Leads:      leads,
		Codec:      codec,
		Classifier: pipeline.NewClassifier(gen, log),
		Qualifier:  pipeline.NewQualifier(gen, log),
		Extractor:  pipeline.NewExtractor(gen, val, log),
		Replier:    pipeline.NewReplier(gen, log),
		Bus:        eventBus,
		Log:        log,
	})

	dispatcher := intake.NewDispatcher(proc, cfg.Concurrency, log)

	var source intake.Source
	var notifier httpapi.Notifier
	switch cfg.IntakeMode {
	case config.IntakeQueue:
		qs, err := intake.NewQueueSource(intake.QueueConfig{
			RedisURL:     cfg.RedisURL,
			SweepEvery:   cfg.SweepEvery,
			SweepBatch:   cfg.PollBatch,
			ReclaimAfter: cfg.ReclaimAfter,
		}, messages, log)
		if err != nil {
			log.Error("failed to initialize queue intake", "error", err)
			panic("failed to initialize queue intake: " + err.Error())
		}
		go func() {
			if err := qs.Start(ctx); err != nil {
				log.Error("queue intake exited", "error", err)
			}
		}()
		source = qs
		notifier = qs
	default:
		source = intake.NewPollSource(messages, cfg.PollInterval, cfg.PollBatch, log)
		go runReclaimLoop(ctx, messages, cfg.ReclaimAfter, log)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	api := httpapi.NewHandler(messages, leads, val, notifier, cfg.SenderRegion, log)
	engine := httpapi.NewRouter(cfg.Env, api, pool, log)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	dispErr := make(chan error, 1)
	go func() {
		dispErr <- dispatcher.Run(ctx, source)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		<-dispErr
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	case err := <-dispErr:
		if err != nil {
			log.Error("dispatcher error", "error", err)
			panic("dispatcher error: " + err.Error())
		}
	}
}

// newGenerationBackend selects the text-generation provider from config.
func newGenerationBackend(ctx context.Context, cfg *config.Config) (textgen.Backend, error) {
	switch cfg.GenerationProvider {
	case "chatcomp":
		return chatcomp.New(chatcomp.Config{
			APIKey:  cfg.GenerationAPIKey,
			BaseURL: cfg.GenerationBaseURL,
			Model:   cfg.GenerationModel,
		}), nil
	case "gemini":
		client, err := gemini.New(ctx, gemini.Config{
			APIKey: cfg.GenerationAPIKey,
			Model:  cfg.GenerationModel,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
}

// registerEventLogging subscribes audit-log handlers for pipeline events.
func registerEventLogging(bus events.Bus, log *logger.Logger) {
	bus.Subscribe(pipeline.EventMessageProcessed, events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(pipeline.MessageProcessed); ok {
			log.Info("message processed",
				"message_id", e.MessageID,
				"sender_key", e.SenderKey,
				"is_lead", e.IsLead,
				"is_qualified", e.IsQualified,
			)
		}
		return nil
	}))
	bus.Subscribe(pipeline.EventLeadQualified, events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(pipeline.LeadQualified); ok {
			log.Info("lead qualified", "sender_key", e.SenderKey, "priority", e.Priority)
		}
		return nil
	}))
}

// runReclaimLoop periodically releases stale claims in poll mode, where no
// queue task does it.
func runReclaimLoop(ctx context.Context, messages *store.MessageRepository, after time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(after)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := messages.ReclaimStale(ctx, after)
			if err != nil {
				log.Error("failed to reclaim stale claims", "error", err)
				continue
			}
			if released > 0 {
				log.Info("reclaimed stale message claims", "count", released)
			}
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
