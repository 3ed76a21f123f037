// Package job defines the Job record of spec.md §3 and the thin
// Job State Writer (C6, spec.md §4.6) through which every state
// transition must go.
package job

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"subtitle-pipeline/internal/store"
)

// Status is one value of the state machine in spec.md §4.8.
type Status string

const (
	StatusQueued                      Status = "queued"
	StatusQueuedRetry                 Status = "queued:retry"
	StatusDownloadingVideo            Status = "processing:downloading_video"
	StatusExtractingAudio             Status = "processing:extracting_audio"
	StatusTranscribingAudio           Status = "processing:transcribing_audio"
	StatusCompleted                   Status = "completed"
	StatusFailedDLQ                   Status = "failed:dlq"
)

// Priority is one of the two values a job is submitted with.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// Field names of the job hash, spec.md §3.
const (
	FieldID          = "id"
	FieldVideoURL    = "videoUrl"
	FieldStatus      = "status"
	FieldCreatedAt   = "createdAt"
	FieldPriority    = "priority"
	FieldAudioURL    = "audioUrl"
	FieldSubtitleURL = "subtitleUrl"
	FieldRetryCount  = "retryCount"
	FieldError       = "error"
)

// Record is the Job of spec.md §3, materialized from the job:{id}
// hash.
type Record struct {
	ID          string
	VideoURL    string
	Status      Status
	CreatedAt   time.Time
	Priority    Priority
	AudioURL    string
	SubtitleURL string
	RetryCount  int
	Error       string
}

// Writer wraps a store.Store with the field-level operations every
// other component uses to read and mutate job records. Updates are
// non-transactional per field (spec.md §4.6); readers must tolerate
// intermediate states.
type Writer struct {
	s store.Store
}

// NewWriter wraps s.
func NewWriter(s store.Store) *Writer {
	return &Writer{s: s}
}

// Create writes a brand-new job record with status queued, as the
// external submission collaborator does (spec.md §3 Lifecycle).
func (w *Writer) Create(ctx context.Context, id, videoURL string, priority Priority) error {
	fields := map[string]string{
		FieldID:         id,
		FieldVideoURL:   videoURL,
		FieldStatus:     string(StatusQueued),
		FieldCreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		FieldPriority:   string(priority),
		FieldRetryCount: "0",
	}
	return w.s.HSetFields(ctx, store.JobKey(id), fields)
}

// SetStatus transitions a job's status field.
func (w *Writer) SetStatus(ctx context.Context, id string, status Status) error {
	return w.s.HSetFields(ctx, store.JobKey(id), map[string]string{FieldStatus: string(status)})
}

// SetField sets a single field, used for audioUrl/subtitleUrl writes.
func (w *Writer) SetField(ctx context.Context, id, field, value string) error {
	return w.s.HSetFields(ctx, store.JobKey(id), map[string]string{field: value})
}

// SetError records the last failure message, overwriting any prior
// one (spec.md §3).
func (w *Writer) SetError(ctx context.Context, id, message string) error {
	return w.s.HSetFields(ctx, store.JobKey(id), map[string]string{FieldError: message})
}

// IncrRetryCount atomically increments retryCount and returns its new
// value. retryCount never decreases (spec.md §3 invariant 1).
func (w *Writer) IncrRetryCount(ctx context.Context, id string) (int, error) {
	n, err := w.s.HIncrBy(ctx, store.JobKey(id), FieldRetryCount, 1)
	if err != nil {
		return 0, fmt.Errorf("job: incr retry count %s: %w", id, err)
	}
	return int(n), nil
}

// GetVideoURL reads videoUrl, returning ok=false if it is absent — a
// fatal condition for the current attempt per spec.md §4.8 step 2.
func (w *Writer) GetVideoURL(ctx context.Context, id string) (string, bool, error) {
	v, ok, err := w.s.HGetField(ctx, store.JobKey(id), FieldVideoURL)
	if err != nil {
		return "", false, fmt.Errorf("job: get videoUrl %s: %w", id, err)
	}
	return v, ok, nil
}

// Get assembles a full Record from the job hash.
func (w *Writer) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := w.s.HGetAll(ctx, store.JobKey(id))
	if err != nil {
		return nil, fmt.Errorf("job: get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("job: %s not found", id)
	}
	rec := &Record{
		ID:          fields[FieldID],
		VideoURL:    fields[FieldVideoURL],
		Status:      Status(fields[FieldStatus]),
		Priority:    Priority(fields[FieldPriority]),
		AudioURL:    fields[FieldAudioURL],
		SubtitleURL: fields[FieldSubtitleURL],
		Error:       fields[FieldError],
	}
	if rc, err := strconv.Atoi(fields[FieldRetryCount]); err == nil {
		rec.RetryCount = rc
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[FieldCreatedAt]); err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}
