// Package main provides the delivery server: the rate-limited intake the
// client runtime ships queued chat messages to.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omnii/assistant-core/internal/config"
	"github.com/omnii/assistant-core/internal/logging"
	"github.com/omnii/assistant-core/internal/server"
	"github.com/omnii/assistant-core/internal/server/ratelimit"
)

func main() {
	cfg, err := config.ParseServer()
	if err != nil {
		logging.Error("Invalid configuration", err, nil)
		os.Exit(1)
	}
	logging.Init(os.Stdout, logging.LogLevel(cfg.LogLevel))

	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax, nil)
	s := server.New(limiter, nil)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Stale limiter windows accumulate one entry per idle client; sweep them
	// in the background.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(cfg.RateLimitWindow)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()

	go func() {
		logging.Info("Delivery server listening", map[string]interface{}{
			"addr":   cfg.Addr,
			"window": cfg.RateLimitWindow.String(),
			"max":    cfg.RateLimitMax,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server failed", err, nil)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Info("Shutting down", nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}
