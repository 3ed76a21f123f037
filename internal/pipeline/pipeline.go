// Package pipeline implements the C8 Pipeline Executor of spec.md
// §4.8: drives one job through download, audio extraction, upload,
// transcription, and subtitle formatting, owning its temp files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"subtitle-pipeline/internal/blob"
	"subtitle-pipeline/internal/extract"
	"subtitle-pipeline/internal/job"
	"subtitle-pipeline/internal/metrics"
	"subtitle-pipeline/internal/retry"
	"subtitle-pipeline/internal/semaphore"
	"subtitle-pipeline/internal/srt"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/transcribe"
)

// Executor drives one job through its stages. It owns no state across
// calls to Run beyond its collaborators' own lifetimes.
type Executor struct {
	store       store.Store
	jobs        *job.Writer
	blobStore   blob.Store
	extractor   extract.Extractor
	transcriber transcribe.Client
	aiSem       *semaphore.Limiter
	retryCtl    *retry.Controller
	tmpRoot     string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New constructs a pipeline Executor from its collaborators. m may be
// nil, in which case completed-job counts simply aren't recorded.
func New(s store.Store, jobs *job.Writer, blobStore blob.Store, extractor extract.Extractor, transcriber transcribe.Client, aiSem *semaphore.Limiter, retryCtl *retry.Controller, tmpRoot string, logger *slog.Logger, m *metrics.Metrics) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:       s,
		jobs:        jobs,
		blobStore:   blobStore,
		extractor:   extractor,
		transcriber: transcriber,
		aiSem:       aiSem,
		retryCtl:    retryCtl,
		tmpRoot:     tmpRoot,
		logger:      logger,
		metrics:     m,
	}
}

// Run drives jobID through the ten steps of spec.md §4.8. It never
// returns an error the caller must itself turn into a retry/DLQ
// decision — that happens internally via the retry controller, so the
// job never sits in a processing:* state when Run returns.
func (e *Executor) Run(ctx context.Context, jobID string) error {
	if err := e.store.SAdd(ctx, store.SetProcessing, jobID); err != nil {
		return fmt.Errorf("pipeline: mark %s processing: %w", jobID, err)
	}

	scratchDir := filepath.Join(e.tmpRoot, jobID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return e.fail(ctx, jobID, fmt.Errorf("pipeline: create scratch dir: %w", err))
	}

	defer func() {
		cleanupCtx := context.Background()
		if err := e.store.SRem(cleanupCtx, store.SetProcessing, jobID); err != nil {
			e.logger.Error("cleanup: failed to remove job from jobs:processing",
				slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
		if err := os.RemoveAll(scratchDir); err != nil {
			e.logger.Error("cleanup: failed to remove scratch directory",
				slog.String("job_id", jobID), slog.String("dir", scratchDir), slog.String("error", err.Error()))
		}
	}()

	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return e.fail(ctx, jobID, fmt.Errorf("pipeline: create scratch dir: %w", err))
	}

	if err := e.run(ctx, jobID, scratchDir); err != nil {
		return e.fail(ctx, jobID, err)
	}
	return nil
}

// fail delegates the outer-scope failure to the retry controller, so
// every failure path lands in queued:retry or failed:dlq before Run
// returns, per spec.md §4.8's failure-handling contract.
func (e *Executor) fail(ctx context.Context, jobID string, cause error) error {
	if err := e.retryCtl.Handle(ctx, jobID, cause); err != nil {
		return fmt.Errorf("pipeline: job %s failed (%v) and retry handling also failed: %w", jobID, cause, err)
	}
	return nil
}

func (e *Executor) run(ctx context.Context, jobID, scratchDir string) error {
	videoURL, ok, err := e.jobs.GetVideoURL(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok || videoURL == "" {
		return fmt.Errorf("pipeline: job %s has no videoUrl", jobID)
	}

	if err := e.jobs.SetStatus(ctx, jobID, job.StatusDownloadingVideo); err != nil {
		return err
	}
	videoPath := filepath.Join(scratchDir, filepath.Base(videoURL))
	if err := blob.DownloadToFile(ctx, e.blobStore, videoURL, videoPath); err != nil {
		return fmt.Errorf("pipeline: download video: %w", err)
	}

	if err := e.jobs.SetStatus(ctx, jobID, job.StatusExtractingAudio); err != nil {
		return err
	}
	stem := stemOf(videoURL)
	audioPath := filepath.Join(scratchDir, stem+".mp3")
	if err := e.extractor.Extract(ctx, videoPath, audioPath); err != nil {
		return fmt.Errorf("pipeline: extract audio: %w", err)
	}

	audioKey := stem + ".mp3"
	if err := blob.UploadFile(ctx, e.blobStore, audioKey, audioPath, "audio/mpeg"); err != nil {
		return fmt.Errorf("pipeline: upload audio: %w", err)
	}
	if err := e.jobs.SetField(ctx, jobID, job.FieldAudioURL, audioKey); err != nil {
		return err
	}

	segments, err := e.transcribeStage(ctx, jobID, audioKey)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return errors.New("Transcription service returned no segments.")
	}

	subtitleKey := stem + ".srt"
	doc := srt.Format(segments)
	subtitlePath := filepath.Join(scratchDir, subtitleKey)
	if err := os.WriteFile(subtitlePath, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("pipeline: write subtitle scratch file: %w", err)
	}
	if err := blob.UploadFile(ctx, e.blobStore, subtitleKey, subtitlePath, "application/x-subrip"); err != nil {
		return fmt.Errorf("pipeline: upload subtitle: %w", err)
	}
	if err := e.jobs.SetField(ctx, jobID, job.FieldSubtitleURL, subtitleKey); err != nil {
		return err
	}
	if err := e.jobs.SetStatus(ctx, jobID, job.StatusCompleted); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.IncrementCompletedJobs()
	}
	return nil
}

// transcribeStage acquires the AI semaphore only around the
// transcription call itself (spec.md §4.8 step 6-7), releasing it on
// every exit path including a ctx-cancellation or panic recovery
// boundary.
func (e *Executor) transcribeStage(ctx context.Context, jobID, audioKey string) ([]transcribe.Segment, error) {
	if err := e.aiSem.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: acquire ai semaphore: %w", err)
	}
	defer func() {
		releaseCtx := context.Background()
		if err := e.aiSem.Release(releaseCtx); err != nil {
			e.logger.Error("failed to release ai semaphore",
				slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
	}()

	if err := e.jobs.SetStatus(ctx, jobID, job.StatusTranscribingAudio); err != nil {
		return nil, err
	}

	segments, err := e.transcriber.Transcribe(ctx, audioKey)
	if err != nil {
		return nil, fmt.Errorf("pipeline: transcribe: %w", err)
	}
	return segments, nil
}

func stemOf(videoURL string) string {
	base := filepath.Base(videoURL)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}
