package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-inbox/internal/auth"
	"call-inbox/internal/cache"
	"call-inbox/internal/config"
	"call-inbox/internal/httpapi"
	"call-inbox/internal/inbox"
	"call-inbox/internal/journal"
	"call-inbox/internal/metrics"
	"call-inbox/internal/push"
	"call-inbox/internal/store"
	"call-inbox/internal/upstream"
	"call-inbox/pkg/logger"
	"call-inbox/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Journal: Postgres when configured, memory otherwise.
	var (
		db          *sql.DB
		journalRepo journal.Repository = journal.NewMemoryRepo()
	)
	if cfg.HasDB() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := journal.NewPostgresRepo(db)
		if err := pg.Migrate(rootCtx); err != nil {
			log.Error("journal migrate failed", "err", err)
			os.Exit(1)
		}
		journalRepo = pg
	}
	journalSvc := journal.NewService(journalRepo)

	// Snapshot cache and pub/sub push: only with Redis.
	var (
		rdb       *redis.Client
		snapshots inbox.Cache
	)
	if cfg.HasRedis() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		snapshots = cache.NewRedisSnapshots(rdb, "", cfg.Redis.SnapshotTTL)
	}

	st := store.New(
		store.WithRecorder(journalSvc),
		store.WithMetrics(metrics.NewEngineMetrics(nil)),
		store.WithLogger(log),
	)
	intake := store.NewIntake(st, 64)
	intakeDone := make(chan struct{})
	go func() {
		defer close(intakeDone)
		_ = intake.Run(rootCtx)
	}()

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.Upstream.Timeout)
	svc := inbox.NewService(client, intake, inbox.Options{
		FetchLimit: cfg.Upstream.FetchLimit,
		PageSize:   cfg.View.PageSize,
		Cache:      snapshots,
		History:    journalSvc,
		Logger:     log,
	})

	if ok, err := svc.Warm(rootCtx); err != nil && !errors.Is(err, cache.ErrMiss) {
		log.Warn("snapshot restore failed", "err", err)
	} else if ok {
		log.Info("serving cached snapshot until first refresh")
	}
	go svc.PersistOnChange(rootCtx)

	if _, err := svc.Refresh(rootCtx); err != nil {
		// Keep serving whatever we have; the next refresh may succeed.
		log.Error("initial refresh failed", "err", err)
	}
	if cfg.Upstream.RefreshInterval > 0 {
		go refreshLoop(rootCtx, svc, cfg.Upstream.RefreshInterval, log)
	}

	if rdb != nil {
		sub := push.NewRedisSubscriber(rdb, cfg.Push.Channel, svc, log)
		go runSubscriber(rootCtx, "redis", sub.Run, log)
	}
	if cfg.Push.WebSocketURL != "" {
		sub := push.NewWebSocketSubscriber(cfg.Push.WebSocketURL, "", svc, log)
		go runSubscriber(rootCtx, "websocket", sub.Run, log)
	}

	h := httpapi.Handlers{
		Inbox: svc,
		Ping: func(ctx context.Context) error {
			if db != nil {
				if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
					return err
				}
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	select {
	case <-intakeDone:
	case <-shutdownCtx.Done():
		log.Warn("intake did not drain before shutdown deadline")
	}
}

// refreshLoop re-runs the bulk load on a fixed interval.
func refreshLoop(ctx context.Context, svc *inbox.Service, every time.Duration, log *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := svc.Refresh(ctx); err != nil {
				log.Warn("periodic refresh failed", "err", err)
			}
		}
	}
}

// runSubscriber restarts a push subscriber after a failure until ctx ends.
func runSubscriber(ctx context.Context, name string, run func(context.Context) error, log *slog.Logger) {
	const backoff = 5 * time.Second
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Warn("push subscriber stopped", "transport", name, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
