package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budget-tracker-backend/internal/config"
	"budget-tracker-backend/internal/database"
	"budget-tracker-backend/internal/extract"
	"budget-tracker-backend/internal/handler"
	"budget-tracker-backend/internal/kv"
	"budget-tracker-backend/internal/logging"
	"budget-tracker-backend/internal/router"
)

const (
	dbMaxRetries = 60
	dbRetryDelay = 2 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	migrateCmd := flag.Bool("migrate", false, "Create the Postgres schema and exit")
	seedDemoCmd := flag.Bool("seed-demo", false, "Seed a demo project when no projects exist, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, os.Stdout)
	slog.SetDefault(logger)
	logger = logger.With(logging.FieldComponent, logging.ComponentApp)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateCmd {
		if err := migrate(ctx, cfg); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migration completed successfully")
		return
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize storage", logging.FieldBackend, cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	if *seedDemoCmd {
		if err := seedDemo(ctx, repo); err != nil {
			logger.Error("seeding demo data failed", "error", err)
			os.Exit(1)
		}
		return
	}

	var completer extract.Completer
	if cfg.OpenAIConfigured() {
		completer = extract.NewOpenAI(extract.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			TextModel:   cfg.OpenAITextModel,
			VisionModel: cfg.OpenAIVisionModel,
			Temperature: cfg.OpenAITemperature,
			MaxTokens:   cfg.OpenAIMaxTokens,
		})
	} else {
		logger.Warn("OPENAI_API_KEY not set, file extraction limited to JSON uploads")
	}

	h := handler.New(repo, extract.NewExtractor(completer, cfg.ExtractChunkRows), handler.Options{
		StoreBackend:   cfg.StoreBackend,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Setup(cfg, h, slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, logging.FieldBackend, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// openRepository builds the repository for the configured backend. The
// redis store is dialed lazily on first use.
func openRepository(ctx context.Context, cfg *config.Config) (database.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, dbMaxRetries, dbRetryDelay)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return database.NewPostgresRepository(db), func() { db.Close() }, nil

	case config.BackendMemory:
		return database.NewKVRepository(kv.NewMemory(), cfg.KeyPrefix), func() {}, nil

	default:
		store := kv.NewLazy(func(ctx context.Context) (kv.Store, error) {
			r, err := kv.DialRedis(ctx, cfg.RedisURL)
			if err != nil {
				return nil, err
			}
			return r, nil
		}, cfg.StoreRetryCooldown)
		return database.NewKVRepository(store, cfg.KeyPrefix), func() {}, nil
	}
}

func migrate(ctx context.Context, cfg *config.Config) error {
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, dbMaxRetries, dbRetryDelay)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.EnsureSchema(ctx, db)
}

// seedDemo creates the demo project unless projects already exist.
func seedDemo(ctx context.Context, repo database.Repository) error {
	projects, err := repo.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) > 0 {
		slog.Info("projects already exist, skipping demo seed", "projects", len(projects))
		return nil
	}
	_, err = database.SeedDemo(ctx, repo)
	return err
}
