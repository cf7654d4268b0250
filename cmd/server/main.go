package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"companion-backend/internal/cache"
	"companion-backend/internal/chatbot"
	"companion-backend/internal/config"
	"companion-backend/internal/database"
	h "companion-backend/internal/http"
	"companion-backend/internal/handlers"
	"companion-backend/internal/health"
	"companion-backend/internal/logging"
	"companion-backend/internal/repositories"
	"companion-backend/internal/services"
	"companion-backend/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var port int

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}
	serve.Flags().IntVar(&port, "port", 0, "server port (overrides config)")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}

	root := &cobra.Command{
		Use:          "companion-server",
		Short:        "Caregiver and dependent companion backend",
		Version:      version,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, migrate)
	return root
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "companion-backend")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func connectAndMigrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	migrator := database.NewMigrator(pool, migrations.FS, ".", logger)
	if err := migrator.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return pool, nil
}

func runMigrate(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.Driver != "postgres" {
		return errors.New("migrate needs database.driver=postgres")
	}
	pool, err := connectAndMigrate(ctx, cfg, logger)
	if err != nil {
		logger.Error("migration failed", zap.Error(err))
		return err
	}
	pool.Close()
	return nil
}

func runServe(ctx context.Context, port int) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if port != 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store repositories.Store
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		store = repositories.NewMemoryStore()
	default:
		pool, err := connectAndMigrate(ctx, cfg, logger)
		if err != nil {
			logger.Error("database unavailable", zap.Error(err))
			return err
		}
		defer pool.Close()
		store = repositories.NewPostgresStore(pool)
	}

	var backend cache.Cache = cache.NoopCache{}
	var cachePinger health.Pinger
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis)
		defer client.Close()
		rc := cache.NewRedisCache(client, cfg.Redis.TTL)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, profile cache will miss until it recovers", zap.Error(err))
		}
		backend, cachePinger = rc, rc
	}
	views := cache.NewViews(backend)

	completer, err := chatbot.New(ctx, cfg.Chatbot, logger)
	if err != nil {
		logger.Error("chatbot client", zap.Error(err))
		return err
	}

	accounts := services.NewAccountService(store, services.NewBcryptHasher(cfg.Security.BcryptCost), views, logger)
	profiles := services.NewProfileService(store, views, logger)
	activity := services.NewActivityService(store, logger)
	conversations := services.NewConversationService(store, profiles, completer, cfg.Chatbot.HistoryLimit, logger)

	hs := h.Handlers{
		Auth:     handlers.NewAuthHandler(accounts, logger),
		Profile:  handlers.NewProfileHandler(accounts, profiles, logger),
		Activity: handlers.NewActivityHandler(activity, logger),
		Chatbot:  handlers.NewChatbotHandler(conversations, logger),
		Health:   handlers.NewHealthHandler(health.NewHealthChecker(store, cachePinger)),
	}
	hs.Auth.MaxBodyBytes = cfg.Server.MaxBodyBytes
	hs.Profile.MaxBodyBytes = cfg.Server.MaxBodyBytes
	hs.Activity.MaxBodyBytes = cfg.Server.MaxBodyBytes
	hs.Chatbot.MaxBodyBytes = cfg.Server.MaxBodyBytes

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           h.NewRouter(hs, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Database.Driver),
			zap.String("chatbot", cfg.Chatbot.Provider),
			zap.Bool("cache", cfg.Redis.Addr != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
