package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"subtitle-pipeline/internal/blob"
	"subtitle-pipeline/internal/bootstrap"
	"subtitle-pipeline/internal/config"
	"subtitle-pipeline/internal/extract"
	"subtitle-pipeline/internal/job"
	"subtitle-pipeline/internal/metrics"
	"subtitle-pipeline/internal/pipeline"
	"subtitle-pipeline/internal/retry"
	"subtitle-pipeline/internal/semaphore"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/transcribe"
	"subtitle-pipeline/internal/worker"
)

func main() {
	bootstrapSemaphores := flag.Bool("bootstrap-semaphores", false, "initialize the global and AI semaphores before processing (run from exactly one worker per deployment)")
	ffmpegBinary := flag.String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	workerName := flag.String("name", "", "worker identity for logs (defaults to hostname)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	name := *workerName
	if name == "" {
		if host, err := os.Hostname(); err == nil {
			name = host
		} else {
			name = "worker"
		}
	}

	s, redisClient, err := bootstrap.NewStore(cfg)
	if err != nil {
		logger.Error("failed to construct store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var blobStore blob.Store
	blobStore, err = bootstrap.NewBlobStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to construct blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if _, err := exec.LookPath(*ffmpegBinary); err != nil {
		logger.Warn("ffmpeg binary not found on PATH; jobs will fail at the extract stage until it is installed",
			slog.String("ffmpeg", *ffmpegBinary), slog.String("error", err.Error()))
	}
	extractor := extract.NewFFmpegExtractor(*ffmpegBinary)

	var transcriber transcribe.Client
	if cfg.TranscriptionProvider == config.ProviderMock {
		transcriber = transcribe.NewMockClient()
	} else {
		transcriber = transcribe.NewAssemblyAIClient(http.DefaultClient, blobStore, cfg.AssemblyAIAPIKey, cfg.PresignExpiry, cfg.TranscribePollEvery, cfg.TranscribeMaxPoll)
	}

	globalSem := semaphore.New(s, store.SemaphoreGlobal, cfg.MaxGlobalConcurrency)
	aiSem := semaphore.New(s, store.SemaphoreAI, cfg.MaxAIConcurrency)
	if *bootstrapSemaphores {
		logger.Info("bootstrapping semaphores",
			slog.Int("global_capacity", cfg.MaxGlobalConcurrency), slog.Int("ai_capacity", cfg.MaxAIConcurrency))
		if err := globalSem.Init(ctx); err != nil {
			logger.Error("failed to init global semaphore", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := aiSem.Init(ctx); err != nil {
			logger.Error("failed to init ai semaphore", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	jobs := job.NewWriter(s)
	m := metrics.NewMetrics()
	retryCtl := retry.New(s, jobs, cfg.MaxRetries, cfg.InitialBackoff, logger, m)
	executor := pipeline.New(s, jobs, blobStore, extractor, transcriber, aiSem, retryCtl, cfg.TmpRoot, logger, m)
	loop := worker.New(s, globalSem, executor, name, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down worker", slog.String("worker", name))
		cancel()
	}()

	logger.Info("worker started, polling for jobs", slog.String("worker", name))
	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped with error", slog.String("worker", name), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("worker stopped", slog.String("worker", name))
}
