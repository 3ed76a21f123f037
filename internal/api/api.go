// Package api implements the C11 Job Submission API: a minimal
// realization of the submission/query contract spec.md fixes but
// leaves as an external collaborator, grounded directly on the
// teacher's internal/handler/job_handler.go plain net/http style.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"subtitle-pipeline/internal/blob"
	"subtitle-pipeline/internal/job"
	"subtitle-pipeline/internal/metrics"
	"subtitle-pipeline/internal/ratelimit"
	"subtitle-pipeline/internal/store"
)

// CreateJobRequest is the POST /jobs request body.
type CreateJobRequest struct {
	VideoURL string `json:"videoUrl"`
	Priority string `json:"priority"`
}

// UploadURLRequest is the POST /uploads request body.
type UploadURLRequest struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}

// UploadURLResponse returns the presigned PUT URL minted for an
// upload, mirroring C4's presigned-GetObject helper on the write side.
type UploadURLResponse struct {
	URL string `json:"url"`
}

// Handler serves the job submission and query endpoints.
type Handler struct {
	store         store.Store
	jobs          *job.Writer
	blobStore     blob.Store
	presignExpiry time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	limiter       *ratelimit.Limiter
}

// NewHandler constructs an api Handler. m and limiter may be nil, in
// which case submission counts simply aren't recorded and submissions
// are never rejected for rate, respectively.
func NewHandler(s store.Store, jobs *job.Writer, blobStore blob.Store, presignExpiry time.Duration, logger *slog.Logger, m *metrics.Metrics, limiter *ratelimit.Limiter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, jobs: jobs, blobStore: blobStore, presignExpiry: presignExpiry, logger: logger, metrics: m, limiter: limiter}
}

// CreateJob handles POST /jobs: creates a queued job record and
// enqueues it onto the priority queue matching its requested priority,
// satisfying spec.md §1's submission contract (a Job record appears in
// queue:high|low with status queued).
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.VideoURL == "" {
		http.Error(w, "videoUrl is required", http.StatusBadRequest)
		return
	}

	priority := job.Priority(req.Priority)
	if priority == "" {
		priority = job.PriorityLow
	}
	if priority != job.PriorityHigh && priority != job.PriorityLow {
		http.Error(w, "priority must be \"high\" or \"low\"", http.StatusBadRequest)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.CheckSubmissionRate(r.Context(), r.RemoteAddr); err != nil {
			http.Error(w, "submission rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		_, _, _, processing, err := h.store.Snapshot(r.Context())
		if err != nil {
			h.logger.Error("api: snapshot failed", slog.String("error", err.Error()))
			http.Error(w, "failed to create job", http.StatusInternalServerError)
			return
		}
		if err := h.limiter.CheckConcurrentLimit(r.Context(), processing); err != nil {
			http.Error(w, "concurrent processing limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	id := uuid.New().String()
	if err := h.jobs.Create(r.Context(), id, req.VideoURL, priority); err != nil {
		h.logger.Error("api: create job failed", slog.String("job_id", id), slog.String("error", err.Error()))
		http.Error(w, "failed to create job", http.StatusInternalServerError)
		return
	}

	list := store.QueueLow
	if priority == job.PriorityHigh {
		list = store.QueueHigh
	}
	if err := h.store.LPushValue(r.Context(), list, id); err != nil {
		h.logger.Error("api: enqueue job failed", slog.String("job_id", id), slog.String("error", err.Error()))
		http.Error(w, "failed to enqueue job", http.StatusInternalServerError)
		return
	}

	rec, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("api: read back created job failed", slog.String("job_id", id), slog.String("error", err.Error()))
		http.Error(w, "job created but could not be read back", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IncrementTotalJobs()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		h.logger.Error("api: encode response failed", slog.String("error", err.Error()))
	}
}

// GetJob handles GET /jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || id == r.URL.Path {
		http.Error(w, "job id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		h.logger.Error("api: encode response failed", slog.String("error", err.Error()))
	}
}

// ListJobs handles GET /jobs?status=queued|queued:retry, listing job
// IDs currently sitting in the priority queues without dequeuing them.
// Non-queue statuses (processing:*, completed, failed:dlq) have no
// durable index in the coordination store and are not listable this
// way — callers needing those look a job up individually via GetJob.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := r.URL.Query().Get("status")
	var lists []string
	switch job.Status(status) {
	case job.StatusQueued:
		// Newly-submitted jobs land in status queued regardless of
		// priority (job.Writer.Create), so both queues must be
		// consulted, not just queue:high.
		lists = []string{store.QueueHigh, store.QueueLow}
	case job.StatusQueuedRetry:
		lists = []string{store.QueueLow}
	default:
		http.Error(w, "status must be \"queued\" or \"queued:retry\"", http.StatusBadRequest)
		return
	}

	ids := make([]string, 0)
	for _, list := range lists {
		listIDs, err := h.store.ListRange(r.Context(), list)
		if err != nil {
			h.logger.Error("api: list jobs failed", slog.String("error", err.Error()))
			http.Error(w, "failed to list jobs", http.StatusInternalServerError)
			return
		}
		ids = append(ids, listIDs...)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ids); err != nil {
		h.logger.Error("api: encode response failed", slog.String("error", err.Error()))
	}
}

// GetDeadLetterQueue handles GET /dlq.
func (h *Handler) GetDeadLetterQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ids, err := h.store.ListRange(r.Context(), store.QueueDLQ)
	if err != nil {
		h.logger.Error("api: list dlq failed", slog.String("error", err.Error()))
		http.Error(w, "failed to list dead letter queue", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ids); err != nil {
		h.logger.Error("api: encode response failed", slog.String("error", err.Error()))
	}
}

// CreateUploadURL handles POST /uploads: mints a presigned PUT URL so
// clients can upload a source video directly to blob storage before
// submitting a job referencing it, satisfying spec.md §1's
// out-of-scope-but-contract-fixed upload-URL minting boundary.
func (h *Handler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := h.blobStore.PresignPut(r.Context(), req.Key, contentType, h.presignExpiry)
	if err != nil {
		h.logger.Error("api: presign put failed", slog.String("key", req.Key), slog.String("error", err.Error()))
		http.Error(w, "failed to mint upload url", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(UploadURLResponse{URL: url}); err != nil {
		h.logger.Error("api: encode response failed", slog.String("error", err.Error()))
	}
}

// GetMetrics handles GET /metrics, reporting the job-lifecycle counters
// tracked across the API and worker processes. Returns an empty
// snapshot if the Handler was constructed without a *metrics.Metrics.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := map[string]int64{}
	if h.metrics != nil {
		snapshot = h.metrics.GetSnapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("api: encode response failed", slog.String("error", err.Error()))
	}
}
