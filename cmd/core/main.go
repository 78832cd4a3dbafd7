// Package main provides the client-side chat sync runtime. It owns the
// durable outbound queue, the connectivity monitor, and the delivery worker,
// and serves the local UI over REST and WebSocket on localhost.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omnii/assistant-core/cmd/core/handlers"
	"github.com/omnii/assistant-core/internal/chat/connectivity"
	"github.com/omnii/assistant-core/internal/chat/delivery"
	"github.com/omnii/assistant-core/internal/chat/outbox"
	"github.com/omnii/assistant-core/internal/chat/syncstate"
	"github.com/omnii/assistant-core/internal/config"
	"github.com/omnii/assistant-core/internal/logging"
	"github.com/omnii/assistant-core/internal/server/ws"
	"github.com/omnii/assistant-core/internal/store"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	cfg, err := config.ParseCore()
	if err != nil {
		logging.Error("Invalid configuration", err, nil)
		os.Exit(1)
	}
	logging.Init(os.Stdout, logging.LogLevel(cfg.LogLevel))

	st, err := store.OpenSQLite(cfg.DataDir)
	if err != nil {
		logging.Error("Failed to open store", err,
			map[string]interface{}{"data_dir": cfg.DataDir})
		os.Exit(1)
	}
	defer st.Close()

	ob := outbox.New(st, nil)
	machine := syncstate.NewMachine()
	hub := ws.NewHub()
	machine.Observe(hub.StatusChanged)

	// A queue that cannot persist is effectively failing delivery.
	ob.OnWriteError(func(err error) {
		machine.DeliveryError()
	})

	monitor := connectivity.NewMonitor(
		connectivity.NewHTTPProber(cfg.ProbeURL), cfg.ProbeInterval)

	transport := delivery.NewHTTPTransport(cfg.ServerURL, cfg.AuthToken)
	attempter := delivery.New(ob, transport, machine, monitor, delivery.Config{
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	}, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)
	attempter.Start(ctx)

	mux := http.NewServeMux()
	handlers.NewChatHandler(ob, machine, attempter).Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"assistant-core","version":"` + Version + `"}`))
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
	}

	go func() {
		logging.Info("Core runtime listening",
			map[string]interface{}{"addr": cfg.Addr, "version": Version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server failed", err, nil)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	logging.Info("Shutting down", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	attempter.Stop()
	monitor.Stop()
	hub.Close()
}
