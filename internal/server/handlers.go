package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/bootanimation-api/internal/animation"
	"github.com/maauso/bootanimation-api/internal/bootanim"
	"github.com/maauso/bootanimation-api/internal/job"
	"github.com/maauso/bootanimation-api/internal/source"
	"github.com/maauso/bootanimation-api/internal/storage"
)

// Multipart file fields.
const (
	fieldIntro = "intro"
	fieldLoop  = "loop"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to disk.
const multipartMemory = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *job.Service
	storage        storage.Storage
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
	s3Enabled      bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes caps the multipart body size.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithS3 allows push_to_s3 requests.
func WithS3(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.s3Enabled = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		storage:        store,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: 512 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Generating: h.service.Busy()})
}

// CreateAnimation handles multipart POST /animations requests.
func (h *Handlers) CreateAnimation(w http.ResponseWriter, r *http.Request) {
	if h.service.Busy() {
		writeError(w, http.StatusConflict, job.ErrGenerationInProgress.Error(), "GENERATION_IN_PROGRESS")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", "UPLOAD_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := parseCreateRequest(r.MultipartForm.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if req.PushToS3 && !h.s3Enabled {
		writeError(w, http.StatusBadRequest, "push_to_s3 requires S3 configuration", "S3_NOT_CONFIGURED")
		return
	}

	mode, err := animation.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	cfg := animation.Config{
		Width:   req.Width,
		Height:  req.Height,
		FPS:     req.FPS,
		Mode:    mode,
		Quality: req.Quality,
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	var saved []string
	keep := false
	defer func() {
		if !keep {
			_ = h.storage.CleanupTemp(context.WithoutCancel(r.Context()), saved)
		}
	}()

	intro, err := h.saveUploads(r, r.MultipartForm.File[fieldIntro], &saved)
	if err != nil {
		h.uploadFailed(w, err)
		return
	}
	loop, err := h.saveUploads(r, r.MultipartForm.File[fieldLoop], &saved)
	if err != nil {
		h.uploadFailed(w, err)
		return
	}

	sources, err := animation.NewSources(mode, intro, loop)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "MISSING_SOURCE")
		return
	}
	for _, role := range sources.Roles() {
		if _, err := source.Classify(role.Files); err != nil {
			writeError(w, http.StatusBadRequest, bootanim.Describe(err), "UNSUPPORTED_SOURCE")
			return
		}
	}

	// The service owns the uploads from here on, including on rejection.
	keep = true
	created, err := h.service.Start(r.Context(), job.Request{
		Config:   cfg,
		Sources:  sources,
		Inputs:   saved,
		PushToS3: req.PushToS3,
	})
	if err != nil {
		if errors.Is(err, job.ErrGenerationInProgress) {
			writeError(w, http.StatusConflict, err.Error(), "GENERATION_IN_PROGRESS")
			return
		}
		h.logger.Error("failed to start generation",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start generation", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("generation accepted",
		slog.String("job_id", created.ID),
		slog.String("mode", string(mode)),
		slog.Int("intro_files", len(intro)),
		slog.Int("loop_files", len(loop)),
	)

	writeJSON(w, http.StatusAccepted, CreateAnimationResponse{
		ID:     created.ID,
		Status: string(created.Status),
	})
}

// parseCreateRequest reads the form fields, substituting defaults for
// missing ones.
func parseCreateRequest(values map[string][]string) (CreateAnimationRequest, error) {
	def := animation.DefaultConfig()
	req := CreateAnimationRequest{
		Width:   def.Width,
		Height:  def.Height,
		FPS:     def.FPS,
		Quality: def.Quality,
		Mode:    string(def.Mode),
	}

	get := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"width", &req.Width},
		{"height", &req.Height},
		{"fps", &req.FPS},
	}
	for _, f := range ints {
		if s := get(f.key); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return req, fmt.Errorf("%s must be an integer", f.key)
			}
			*f.dst = n
		}
	}

	if s := get("quality"); s != "" {
		q, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return req, errors.New("quality must be a number")
		}
		req.Quality = q
	}
	if s := get("mode"); s != "" {
		req.Mode = strings.ToLower(s)
	}
	if s := get("push_to_s3"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return req, errors.New("push_to_s3 must be a boolean")
		}
		req.PushToS3 = b
	}
	return req, nil
}

// saveUploads stores each uploaded file and sniffs its content. Every stored
// path is appended to saved, even when a later step fails.
func (h *Handlers) saveUploads(r *http.Request, headers []*multipart.FileHeader, saved *[]string) ([]source.File, error) {
	files := make([]source.File, 0, len(headers))
	for _, fh := range headers {
		path, err := h.saveUpload(r, fh)
		if err != nil {
			return nil, err
		}
		*saved = append(*saved, path)

		f, err := source.Detect(path, fh.Filename)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (h *Handlers) saveUpload(r *http.Request, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = src.Close() }()

	return h.storage.SaveTemp(r.Context(), fh.Filename, src)
}

func (h *Handlers) uploadFailed(w http.ResponseWriter, err error) {
	h.logger.Error("failed to store upload",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_FAILED")
}

// ListAnimations handles GET /animations requests.
func (h *Handlers) ListAnimations(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListAnimationsResponse{Animations: make([]AnimationResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Animations = append(resp.Animations, toAnimationResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAnimation handles GET /animations/{id} requests.
func (h *Handlers) GetAnimation(w http.ResponseWriter, r *http.Request) {
	found, ok := h.findJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAnimationResponse(found))
}

// DownloadArchive handles GET /animations/{id}/archive requests.
func (h *Handlers) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	rc, found, err := h.service.OpenArchive(r.Context(), jobID)
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	case errors.Is(err, job.ErrArchiveUnavailable) && found != nil && found.Status != job.StatusCompleted:
		writeError(w, http.StatusConflict, "archive is not ready", "ARCHIVE_NOT_READY")
		return
	case err != nil:
		h.logger.Error("failed to open archive",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to open archive", "ARCHIVE_UNAVAILABLE")
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", storage.ArchiveContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", animation.ArchiveName))
	w.Header().Set("Content-Length", strconv.FormatInt(found.ArchiveSize, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("archive download interrupted",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// CancelAnimation handles POST /animations/{id}/cancel requests.
func (h *Handlers) CancelAnimation(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	switch err := h.service.Cancel(r.Context(), jobID); {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrNotRunning):
		writeError(w, http.StatusConflict, err.Error(), "JOB_NOT_RUNNING")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to cancel job", "JOB_CANCEL_FAILED")
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// DeleteAnimation handles DELETE /animations/{id} requests.
func (h *Handlers) DeleteAnimation(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	switch err := h.service.Delete(r.Context(), jobID); {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrJobActive):
		writeError(w, http.StatusConflict, err.Error(), "JOB_ACTIVE")
	case err != nil:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return found, true
}

func toAnimationResponse(j *job.Job) AnimationResponse {
	resp := AnimationResponse{
		ID:         j.ID,
		Status:     string(j.Status),
		Progress:   j.Progress,
		Message:    j.Message,
		Error:      j.Error,
		Mode:       string(j.Config.Mode),
		Width:      j.Config.Width,
		Height:     j.Config.Height,
		FPS:        j.Config.FPS,
		Quality:    j.Config.Quality,
		PartFrames: j.PartFrames,
		ArchiveURL: j.ArchiveURL,
		CreatedAt:  j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	if j.Status == job.StatusCompleted && j.ArchivePath != "" {
		resp.ArchiveSize = j.ArchiveSize
		resp.DownloadURL = "/animations/" + j.ID + "/archive"
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
