package job

import (
	"context"
	"testing"

	"subtitle-pipeline/internal/store"
)

func TestWriterCreateAndGet(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	w := NewWriter(s)

	if err := w.Create(ctx, "j1", "v.mp4", PriorityHigh); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := w.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.VideoURL != "v.mp4" || rec.Status != StatusQueued || rec.Priority != PriorityHigh || rec.RetryCount != 0 {
		t.Fatalf("rec = %+v; unexpected values", rec)
	}
}

func TestWriterSetStatusAndFields(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	w := NewWriter(s)
	w.Create(ctx, "j1", "v.mp4", PriorityLow)

	if err := w.SetStatus(ctx, "j1", StatusDownloadingVideo); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := w.SetField(ctx, "j1", FieldAudioURL, "v.mp3"); err != nil {
		t.Fatalf("SetField: %v", err)
	}

	rec, err := w.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != StatusDownloadingVideo || rec.AudioURL != "v.mp3" {
		t.Fatalf("rec = %+v; unexpected values", rec)
	}
}

func TestWriterIncrRetryCountMonotonic(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	w := NewWriter(s)
	w.Create(ctx, "j1", "v.mp4", PriorityLow)

	for want := 1; want <= 3; want++ {
		got, err := w.IncrRetryCount(ctx, "j1")
		if err != nil {
			t.Fatalf("IncrRetryCount: %v", err)
		}
		if got != want {
			t.Fatalf("IncrRetryCount = %d; want %d", got, want)
		}
	}
}

func TestWriterGetVideoURLMissing(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	w := NewWriter(s)

	_, ok, err := w.GetVideoURL(ctx, "missing-job")
	if err != nil {
		t.Fatalf("GetVideoURL: %v", err)
	}
	if ok {
		t.Fatal("GetVideoURL ok = true; want false for a job with no videoUrl field")
	}
}
