package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildboard/buildboard/internal/app/migrate"
	httpx "github.com/buildboard/buildboard/internal/http"
	"github.com/buildboard/buildboard/internal/metrics"
	"github.com/buildboard/buildboard/internal/repository/postgres"
	"github.com/buildboard/buildboard/internal/service/jenkins"
	"github.com/buildboard/buildboard/internal/service/legacy"
	"github.com/buildboard/buildboard/internal/service/nas"
	"github.com/buildboard/buildboard/internal/service/resolve"
	"github.com/buildboard/buildboard/internal/ws"
	"github.com/buildboard/buildboard/pkg/config"
	"github.com/buildboard/buildboard/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()

	jenkinsClient := jenkins.NewClient(cfg.JenkinsURL, cfg.JenkinsUser, cfg.JenkinsToken, cfg.JenkinsTimeout, log)
	verifier := nas.NewVerifier(osfs.New("/"), log, cfg.NASRetryDelay)
	legacyExtractor := legacy.NewExtractor(jenkinsClient, log)
	sink := metrics.NewRecorder(nil)

	resolveSvc := resolve.New(repo, jenkinsClient, verifier, legacyExtractor, sink, hub, log, cfg.NASRoot)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, resolveSvc, jenkinsClient, repo, hub, limiter, cfg.ServiceToken, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "nas_root", cfg.NASRoot)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
