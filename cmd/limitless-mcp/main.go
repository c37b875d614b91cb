package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/lifelog-labs/limitless-mcp-remote/internal/httpapi"
)

func main() {
	_ = godotenv.Load()

	var (
		addr = flag.String("addr", env("ADDR", ":8080"), "listen address")
	)
	flag.Parse()

	log := newLogger(env("LOG_LEVEL", "info"), env("LOG_FORMAT", "text"))

	upstreamTimeout := atoi(env("UPSTREAM_TIMEOUT_SEC", "30"), 30)
	router := httpapi.New(httpapi.Config{
		UpstreamBaseURL: env("LIMITLESS_API_URL", ""),
		HTTPClient:      &http.Client{Timeout: time.Duration(upstreamTimeout) * time.Second},
		IdleTimeout:     time.Duration(atoi(env("SSE_IDLE_TIMEOUT_SEC", "15"), 15)) * time.Second,
		SessionTTL:      time.Duration(atoi(env("SESSION_TTL_SEC", "300"), 300)) * time.Second,
		Logger:          log,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: SSE streams are long-lived by design.
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown did not finish cleanly", "error", err)
		}
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.Kitchen})
	}
	return slog.New(handler)
}

// --- helpers ---
func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
