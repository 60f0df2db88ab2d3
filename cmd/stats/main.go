package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/cityteam/stats-sub000/internal/auth"
	"github.com/cityteam/stats-sub000/internal/cache"
	"github.com/cityteam/stats-sub000/internal/cli"
	apphttp "github.com/cityteam/stats-sub000/internal/http"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/internal/report"
	"github.com/cityteam/stats-sub000/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	b := cli.InitBackend(context.Background(), logger, cfg)

	// Report memoization; a zero size disables it.
	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	var (
		reportCache *cache.LRUCache[report.Result]
		reports     *services.ReportService
	)
	if cfg.ReportCacheSize > 0 {
		reportCache = cache.NewLRUCache[report.Result](cfg.ReportCacheSize, cfg.ReportCacheTTL)
		cacheManager.Register(reportCache)
		cacheManager.StartCleanup(cfg.ReportCacheTTL)
		reports = services.NewReportService(b.Repository, reportCache)
	} else {
		reports = services.NewReportService(b.Repository, nil)
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	stats := services.NewStatisticsService(b.Repository, b.Events, reports)
	users := services.NewUserService(b.Repository, issuer)

	deps := apphttp.Deps{
		Statistics: stats,
		Reports:    reports,
		Users:      users,
		Tokens:     issuer,
		Storage:    b.Repository,
	}
	if reportCache != nil {
		deps.ReportCache = reportCache
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err.Error())
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		cacheManager.Stop()
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err.Error())
		}
	})

	logger.Info("Starting stats server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", b.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
