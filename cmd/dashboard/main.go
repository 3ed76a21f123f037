// Command dashboard serves the C10 data endpoints of SPEC_FULL.md:
// a polled JSON snapshot and a Server-Sent-Events stream of queue
// depths, replacing the teacher's static web-asset server (no browser
// UI ships with this repository; spec.md §1 keeps that out of scope).
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"subtitle-pipeline/internal/bootstrap"
	"subtitle-pipeline/internal/config"
	"subtitle-pipeline/internal/dashboard"
)

func main() {
	port := flag.String("port", "3000", "HTTP server port")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	s, redisClient, err := bootstrap.NewStore(cfg)
	if err != nil {
		logger.Error("failed to construct store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	handler := dashboard.NewHandler(s, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard/snapshot", handler.ServeSnapshot)
	mux.HandleFunc("/dashboard/stream", handler.ServeStream)

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: mux,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("dashboard server starting", slog.String("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-sigChan
	logger.Info("shutting down dashboard server")
	if err := server.Close(); err != nil {
		logger.Error("error closing server", slog.String("error", err.Error()))
	}
	logger.Info("dashboard server stopped")
}
