package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"subtitle-pipeline/internal/api"
	"subtitle-pipeline/internal/bootstrap"
	"subtitle-pipeline/internal/config"
	"subtitle-pipeline/internal/job"
	"subtitle-pipeline/internal/metrics"
	"subtitle-pipeline/internal/ratelimit"
)

func main() {
	port := flag.String("port", "8080", "HTTP server port")
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

	ctx := context.Background()
	blobStore, err := bootstrap.NewBlobStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to construct blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	jobs := job.NewWriter(s)
	m := metrics.NewMetrics()
	limiter := ratelimit.New(cfg.MaxConcurrentProcessing, cfg.MaxSubmissionsPerMinute)
	handler := api.NewHandler(s, jobs, blobStore, cfg.PresignExpiry, logger, m, limiter)

	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			handler.CreateJob(w, r)
		} else if r.Method == http.MethodGet {
			handler.ListJobs(w, r)
		} else {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.HandleFunc("/jobs/", corsMiddleware(handler.GetJob))
	mux.HandleFunc("/dlq", corsMiddleware(handler.GetDeadLetterQueue))
	mux.HandleFunc("/uploads", corsMiddleware(handler.CreateUploadURL))
	mux.HandleFunc("/metrics", corsMiddleware(handler.GetMetrics))

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: mux,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("api server starting", slog.String("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-sigChan
	logger.Info("shutting down api server")
	if err := server.Close(); err != nil {
		logger.Error("error closing server", slog.String("error", err.Error()))
	}
	logger.Info("api server stopped")
}
