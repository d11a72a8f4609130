package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptarena/arena/internal/api"
	"github.com/promptarena/arena/internal/auth"
	"github.com/promptarena/arena/internal/cache"
	"github.com/promptarena/arena/internal/config"
	"github.com/promptarena/arena/internal/crypto"
	"github.com/promptarena/arena/internal/dispatch"
	"github.com/promptarena/arena/internal/email"
	"github.com/promptarena/arena/internal/ledger"
	"github.com/promptarena/arena/internal/notifications"
	"github.com/promptarena/arena/internal/pipeline"
	"github.com/promptarena/arena/internal/provider"
	"github.com/promptarena/arena/internal/provider/anthropic"
	"github.com/promptarena/arena/internal/provider/bedrock"
	"github.com/promptarena/arena/internal/provider/google"
	"github.com/promptarena/arena/internal/provider/openai"
	"github.com/promptarena/arena/internal/queue"
	"github.com/promptarena/arena/internal/scoring"
	"github.com/promptarena/arena/internal/secrets"
	"github.com/promptarena/arena/internal/telemetry"
	"github.com/promptarena/arena/internal/usage"
)

func main() {
	// Optional local .env; the file is absent in deployed environments.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting prompt arena", "addr", cfg.Addr, "version", "1.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Init(ctx, "prompt-arena", cfg.OTLPEndpoint)
		if err != nil {
			slog.Warn("failed to initialize tracing", "error", err)
		} else {
			defer shutdown(context.Background())
			slog.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)
		}
	}

	keys := resolveProviderKeys(ctx, cfg)

	registry := provider.NewRegistry()

	registry.Register(
		openai.New(keys.OpenAI, cfg.ProviderBaseURL("openai"), cfg.ProviderModel("openai")),
		cfg.ProviderTimeoutFor("openai"),
	)
	registry.Register(
		anthropic.New(keys.Anthropic, cfg.ProviderBaseURL("anthropic"), cfg.ProviderModel("anthropic")),
		cfg.ProviderTimeoutFor("anthropic"),
	)
	registry.Register(
		google.New(keys.Google, cfg.ProviderBaseURL("google"), cfg.ProviderModel("google")),
		cfg.ProviderTimeoutFor("google"),
	)

	if cfg.BedrockEnabled {
		adapter, err := bedrock.New(ctx, cfg.AWSRegion, cfg.ProviderModel("bedrock"))
		if err != nil {
			slog.Warn("failed to initialize bedrock provider", "error", err)
		} else {
			registry.Register(adapter, cfg.ProviderTimeoutFor("bedrock"))
		}
	}

	for _, id := range registry.Names() {
		entry, _ := registry.Get(id)
		slog.Info("registered provider", "provider", id, "configured", entry.Adapter.Configured())
	}

	var comparisonCache cache.Cache
	if cfg.RedisURL != "" {
		comparisonCache, err = cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			slog.Warn("failed to connect to redis for cache, using in-memory", "error", err)
			comparisonCache = cache.NewInMemoryCache()
		} else {
			slog.Info("using redis cache")
		}
	} else {
		comparisonCache = cache.NewInMemoryCache()
		slog.Info("using in-memory cache")
	}

	var tracker usage.Tracker
	if cfg.DatabaseURL != "" {
		tracker, err = usage.NewPostgresTracker(cfg.DatabaseURL)
		if err != nil {
			slog.Warn("failed to connect to postgres, using in-memory usage tracker", "error", err)
			tracker = usage.NewInMemoryTracker()
		} else {
			slog.Info("using postgres usage tracker")
		}
	} else {
		tracker = usage.NewInMemoryTracker()
	}

	var sender email.Sender
	if cfg.EmailServiceID != "" {
		sender = email.NewRESTSender(email.Config{
			BaseURL:     cfg.EmailBaseURL,
			ServiceID:   cfg.EmailServiceID,
			TemplateID:  cfg.EmailTemplateID,
			UserID:      cfg.EmailUserID,
			AccessToken: cfg.EmailAccessToken,
		})
		slog.Info("email delivery enabled", "service_id", cfg.EmailServiceID)
	}

	var creditLedger ledger.Ledger
	if cfg.LedgerURL != "" {
		creditLedger = ledger.NewHTTPClient(cfg.LedgerURL, cfg.LedgerSecret)
		slog.Info("credit ledger enabled", "url", cfg.LedgerURL)
	}

	var notifier notifications.Notifier
	if cfg.SNSTopicARN != "" {
		notifier, err = notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			slog.Warn("failed to initialize sns notifier", "error", err)
			notifier = nil
		} else {
			slog.Info("sns notifications enabled", "topic", cfg.SNSTopicARN)
		}
	}

	var jobQueue queue.Queue
	if cfg.SQSQueueURL != "" {
		jobQueue, err = queue.NewSQSQueue(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			slog.Warn("failed to initialize sqs queue, running webhook jobs inline", "error", err)
			jobQueue = nil
		} else {
			slog.Info("sqs job queue enabled", "queue", cfg.SQSQueueURL)
		}
	}

	pipe := pipeline.New(pipeline.Config{
		Dispatcher: dispatch.New(registry),
		Scorer:     scoring.New(cfg.Weights),
		Emails:     sender,
		Ledger:     creditLedger,
		Notifier:   notifier,
		Cache:      comparisonCache,
		Tracker:    tracker,
		CacheTTL:   cfg.CacheTTL,
	})

	if jobQueue != nil {
		go runWorker(ctx, jobQueue, pipe)
	}

	handler := api.NewHandler(api.HandlerConfig{
		Pipeline: pipe,
		Registry: registry,
		Queue:    jobQueue,
		Tracker:  tracker,
		Admin:    auth.NewAdminAuth(cfg.AdminTokenHash),
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// resolveProviderKeys merges environment credentials, encrypted-value
// decryption, and Secrets Manager lookups. Environment values win when
// both are present.
func resolveProviderKeys(ctx context.Context, cfg *config.Config) secrets.ProviderKeys {
	var encryptor *crypto.Encryptor
	if cfg.EncryptionKey != "" {
		encryptor = crypto.NewEncryptor(cfg.EncryptionKey)
	}

	decrypt := func(name, value string) string {
		plain, err := crypto.Resolve(encryptor, value)
		if err != nil {
			slog.Error("failed to decrypt credential", "name", name, "error", err)
			return ""
		}
		return plain
	}

	keys := secrets.ProviderKeys{
		OpenAI:    decrypt("openai", cfg.OpenAIAPIKey),
		Anthropic: decrypt("anthropic", cfg.AnthropicAPIKey),
		Google:    decrypt("google", cfg.GoogleAPIKey),
	}

	if cfg.SecretsPrefix != "" {
		store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
		if err != nil {
			slog.Warn("failed to initialize secrets manager", "error", err)
			return keys
		}
		resolved := secrets.ResolveProviderKeys(ctx, store, cfg.SecretsPrefix)
		if keys.OpenAI == "" {
			keys.OpenAI = resolved.OpenAI
		}
		if keys.Anthropic == "" {
			keys.Anthropic = resolved.Anthropic
		}
		if keys.Google == "" {
			keys.Google = resolved.Google
		}
	}

	return keys
}

// runWorker drains the job queue until shutdown. Each job is a full
// comparison run; failures are logged and the loop keeps going.
func runWorker(ctx context.Context, q queue.Queue, pipe *pipeline.Pipeline) {
	slog.Info("job worker started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("job worker stopped")
			return
		default:
		}

		jobs, err := q.Receive(ctx, 5)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("failed to receive jobs", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, job := range jobs {
			pipe.RunJob(ctx, job)
		}
	}
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
