// Package server provides the HTTP API for boot animation generation.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateAnimationRequest holds the non-file fields of a multipart
// POST /animations request. Zero values are replaced by defaults before
// validation.
type CreateAnimationRequest struct {
	// Width is the frame width in pixels.
	Width int `validate:"min=1,max=8192"`
	// Height is the frame height in pixels.
	Height int `validate:"min=1,max=8192"`
	// FPS is the playback rate written to desc.txt.
	FPS int `validate:"min=1,max=120"`
	// Quality is the JPEG quality in (0,1].
	Quality float64 `validate:"gt=0,lte=1"`
	// Mode is "standard" or "intro_loop".
	Mode string `validate:"oneof=standard intro_loop intro-loop"`
	// PushToS3 indicates whether to upload the archive to S3.
	PushToS3 bool
}

// CreateAnimationResponse is the HTTP response after accepting a generation.
type CreateAnimationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// AnimationResponse is the HTTP response for a generation job.
type AnimationResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`

	Mode    string  `json:"mode"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	FPS     int     `json:"fps"`
	Quality float64 `json:"quality"`

	// PartFrames is the number of frames in each part once completed.
	PartFrames []int `json:"part_frames,omitempty"`
	// ArchiveSize is the archive size in bytes.
	ArchiveSize int64 `json:"archive_size,omitempty"`
	// ArchiveURL is the S3 URL (push_to_s3=true).
	ArchiveURL string `json:"archive_url,omitempty"`
	// DownloadURL is the API path serving the archive.
	DownloadURL string `json:"download_url,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListAnimationsResponse is the HTTP response for GET /animations.
type ListAnimationsResponse struct {
	Animations []AnimationResponse `json:"animations"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Generating bool   `json:"generating"`
}
