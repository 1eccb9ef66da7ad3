package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sstirlin/leapsec"
	"github.com/sstirlin/leapsec/internal/api"
	"github.com/sstirlin/leapsec/internal/auth"
	"github.com/sstirlin/leapsec/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("LEAPSEC_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	convCfg := loadConverterConfig(logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Loads the cached table, or fetches the published one when the cache is
	// missing or stale.
	conv, err := leapsec.NewConverter(ctx, convCfg, logger)
	if err != nil {
		logger.Error("failed to load leap-second table", "error", err)
		os.Exit(1)
	}

	table := conv.Table()
	metrics.SetTableEntries(table.Len())
	metrics.SetLastRefresh(conv.LastRefresh())
	logger.Info("leap-second table ready",
		"entries", table.Len(),
		"fetched_at", table.FetchedAt.UTC().Format(time.RFC3339),
	)

	srv := api.NewServer(addr, logger, authCfg, conv)

	// Background goroutine to keep the table gauges current.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if t := conv.Table(); t != nil {
					metrics.SetTableEntries(t.Len())
					metrics.SetTableAge(time.Since(t.FetchedAt).Seconds())
				}
				metrics.SetLastRefresh(conv.LastRefresh())
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("LEAPSEC_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("LEAPSEC_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("LEAPSEC_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("LEAPSEC_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadConverterConfig(logger *slog.Logger) leapsec.Config {
	cfg := leapsec.Config{
		CacheDir:        "/var/lib/leapsec",
		RefreshInterval: leapsec.DefaultRefreshInterval,
		MaxCacheFiles:   5,
	}

	if v := os.Getenv("LEAPSEC_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("LEAPSEC_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("LEAPSEC_REFRESH_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LEAPSEC_REFRESH_SECONDS value, using default", "value", v, "default", int(leapsec.DefaultRefreshInterval.Seconds()))
		} else {
			cfg.RefreshInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("LEAPSEC_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid LEAPSEC_CACHE_MAX_FILES value, using default", "value", v, "default", 5)
		} else {
			cfg.MaxCacheFiles = n
		}
	}

	logger.Info("converter config",
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"refresh_seconds", cfg.RefreshInterval.Seconds(),
		"cache_max_files", cfg.MaxCacheFiles,
	)

	return cfg
}
