package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"subtitle-pipeline/internal/blob"
	"subtitle-pipeline/internal/extract"
	"subtitle-pipeline/internal/job"
	"subtitle-pipeline/internal/retry"
	"subtitle-pipeline/internal/semaphore"
	"subtitle-pipeline/internal/store"
	"subtitle-pipeline/internal/transcribe"
)

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _, audioPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(audioPath, []byte("fake-mp3-bytes"), 0o644)
}

func setup(t *testing.T, extractor extract.Extractor, transcriber transcribe.Client) (*Executor, store.Store, *job.Writer, *blob.FileStore) {
	t.Helper()
	s := store.NewMemStore()
	jobs := job.NewWriter(s)
	blobStore := blob.NewFileStore()

	aiSem := semaphore.New(s, store.SemaphoreAI, 1)
	if err := aiSem.Init(context.Background()); err != nil {
		t.Fatalf("aiSem.Init: %v", err)
	}

	retryCtl := retry.New(s, jobs, 3, time.Millisecond, slog.Default(), nil)
	exec := New(s, jobs, blobStore, extractor, transcriber, aiSem, retryCtl, t.TempDir(), slog.Default(), nil)
	return exec, s, jobs, blobStore
}

func TestRunHappyPath(t *testing.T) {
	mock := transcribe.NewMockClient()
	mock.SetResponse("v.mp3", []transcribe.Segment{{Text: "hi", StartMS: 0, EndMS: 1000}})

	exec, s, jobs, blobStore := setup(t, &fakeExtractor{}, mock)
	ctx := context.Background()

	blobStore.Seed("v.mp4", []byte("fake-video"))
	if err := jobs.Create(ctx, "J1", "v.mp4", job.PriorityHigh); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := exec.Run(ctx, "J1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := jobs.Get(ctx, "J1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != job.StatusCompleted {
		t.Fatalf("status = %s; want completed", rec.Status)
	}
	if rec.AudioURL != "v.mp3" {
		t.Fatalf("audioUrl = %q; want v.mp3", rec.AudioURL)
	}
	if rec.SubtitleURL != "v.srt" {
		t.Fatalf("subtitleUrl = %q; want v.srt", rec.SubtitleURL)
	}

	body, ok := blobStore.Contents("v.srt")
	if !ok {
		t.Fatal("v.srt not uploaded")
	}
	want := "1\n00:00:00.000 --> 00:00:01.000\nhi\n\n"
	if string(body) != want {
		t.Fatalf("srt body = %q; want %q", body, want)
	}
	if blobStore.ContentType("v.srt") != "application/x-subrip" {
		t.Fatalf("content type = %q; want application/x-subrip", blobStore.ContentType("v.srt"))
	}

	_, _, _, processing, _ := s.Snapshot(ctx)
	if processing != 0 {
		t.Fatalf("jobs:processing size = %d; want 0 after completion", processing)
	}

	if _, err := os.Stat(filepath.Join(exec.tmpRoot, "J1")); !os.IsNotExist(err) {
		t.Fatalf("scratch directory still exists after run")
	}
}

func TestRunMissingVideoURLRetries(t *testing.T) {
	mock := transcribe.NewMockClient()
	exec, s, jobs, _ := setup(t, &fakeExtractor{}, mock)
	ctx := context.Background()

	// HSetFields directly with no videoUrl field, simulating a
	// malformed job record.
	s.HSetFields(ctx, store.JobKey("J2"), map[string]string{job.FieldID: "J2", job.FieldStatus: string(job.StatusQueued)})

	if err := exec.Run(ctx, "J2"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := jobs.Get(ctx, "J2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != job.StatusQueuedRetry {
		t.Fatalf("status = %s; want queued:retry", rec.Status)
	}
	if rec.RetryCount != 1 {
		t.Fatalf("retryCount = %d; want 1", rec.RetryCount)
	}
}

func TestRunEmptyTranscriptFailsAndRetries(t *testing.T) {
	mock := transcribe.NewMockClient()
	mock.SetResponse("v.mp3", nil)

	exec, _, jobs, blobStore := setup(t, &fakeExtractor{}, mock)
	ctx := context.Background()
	blobStore.Seed("v.mp4", []byte("fake-video"))
	jobs.Create(ctx, "J3", "v.mp4", job.PriorityLow)

	if err := exec.Run(ctx, "J3"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, _ := jobs.Get(ctx, "J3")
	if rec.Status != job.StatusQueuedRetry {
		t.Fatalf("status = %s; want queued:retry", rec.Status)
	}
	if rec.Error != "Transcription service returned no segments." {
		t.Fatalf("error = %q; want exact spec message", rec.Error)
	}
}

func TestRunCleansUpOnScratchDirFailure(t *testing.T) {
	mock := transcribe.NewMockClient()
	mock.SetResponse("v.mp3", []transcribe.Segment{{Text: "hi", StartMS: 0, EndMS: 1000}})

	exec, s, jobs, blobStore := setup(t, &fakeExtractor{}, mock)
	ctx := context.Background()
	blobStore.Seed("v.mp4", []byte("fake-video"))
	jobs.Create(ctx, "J4", "v.mp4", job.PriorityHigh)

	// Point tmpRoot at a file instead of a directory so creating the
	// job's scratch directory fails outright, exercising the cleanup
	// path even when nothing ever got far enough to upload.
	badRoot := filepath.Join(t.TempDir(), "not-a-dir")
	os.WriteFile(badRoot, []byte("x"), 0o644)
	exec.tmpRoot = badRoot

	if err := exec.Run(ctx, "J4"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, _ := jobs.Get(ctx, "J4")
	if rec.Status != job.StatusQueuedRetry {
		t.Fatalf("status = %s; want queued:retry", rec.Status)
	}

	_, _, _, processing, _ := s.Snapshot(ctx)
	if processing != 0 {
		t.Fatalf("jobs:processing size = %d; want 0 after cleanup", processing)
	}
}

func TestRunIsIdempotentAcrossRetries(t *testing.T) {
	mock := transcribe.NewMockClient()
	mock.SetFailures("v.mp3", 1)
	mock.SetResponse("v.mp3", []transcribe.Segment{{Text: "second try", StartMS: 0, EndMS: 500}})

	exec, _, jobs, blobStore := setup(t, &fakeExtractor{}, mock)
	ctx := context.Background()
	blobStore.Seed("v.mp4", []byte("fake-video"))
	jobs.Create(ctx, "J5", "v.mp4", job.PriorityHigh)

	if err := exec.Run(ctx, "J5"); err != nil {
		t.Fatalf("Run #1: %v", err)
	}
	rec, _ := jobs.Get(ctx, "J5")
	if rec.Status != job.StatusQueuedRetry {
		t.Fatalf("status after #1 = %s; want queued:retry", rec.Status)
	}

	if err := exec.Run(ctx, "J5"); err != nil {
		t.Fatalf("Run #2: %v", err)
	}
	rec, _ = jobs.Get(ctx, "J5")
	if rec.Status != job.StatusCompleted {
		t.Fatalf("status after #2 = %s; want completed", rec.Status)
	}
	if rec.AudioURL != "v.mp3" || rec.SubtitleURL != "v.srt" {
		t.Fatalf("artifact keys changed across retries: audio=%q subtitle=%q", rec.AudioURL, rec.SubtitleURL)
	}
}
