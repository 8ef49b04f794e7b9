// Package job provides the Job aggregate for boot animation generation runs,
// its repository port and the service that executes runs.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/bootanimation-api/internal/animation"
	"github.com/maauso/bootanimation-api/internal/job/id"
	"github.com/maauso/bootanimation-api/internal/progress"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was accepted and has not started.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates frames are being extracted or packaged.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the archive is available.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the run stopped on an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was cancelled by the caller.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Compile-time check that Job can receive pipeline progress.
var _ progress.Reporter = (*Job)(nil)

// Job is one generation run and its observable state.
type Job struct {
	mu sync.RWMutex

	ID     string
	Status Status
	Config animation.Config

	// Progress is the percentage of completion (0-100).
	Progress float64
	// Message is the latest progress message.
	Message string
	// Error is the user-facing description of a failure.
	Error string

	// Inputs are the uploaded source files owned by this job.
	Inputs []string
	// PartFrames holds the frame count of each part once packaged.
	PartFrames []int

	// ArchivePath is the local path of the generated archive.
	ArchivePath string
	// ArchiveSize is the archive length in bytes.
	ArchiveSize int64
	// PushToS3 indicates whether to publish the archive to S3.
	PushToS3 bool
	// ArchiveURL is the S3 URL when PushToS3 was honoured.
	ArchiveURL string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a Job with a generated ID in IN_QUEUE status.
func New(cfg animation.Config) *Job {
	return NewWithID(id.Generate(), cfg)
}

// NewWithID creates a Job with the given ID in IN_QUEUE status.
func NewWithID(jobID string, cfg animation.Config) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo changes the status, or returns ErrInvalidTransition.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED at 100%.
func (j *Job) Complete() error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.mu.Lock()
	j.Progress = 100
	j.mu.Unlock()
	return nil
}

// Fail transitions the job to FAILED with a user-facing message.
func (j *Job) Fail(errMsg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Report implements progress.Reporter. Reports are ignored unless the job is running.
func (j *Job) Report(percent float64, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusRunning {
		return
	}
	j.Progress = progress.Clamp(percent)
	j.Message = message
	j.UpdatedAt = time.Now()
}

// SetInputs records the uploaded files owned by the job.
func (j *Job) SetInputs(paths []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Inputs = slices.Clone(paths)
	j.UpdatedAt = time.Now()
}

// SetArchive records the generated archive.
func (j *Job) SetArchive(path string, size int64, partFrames []int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ArchivePath = path
	j.ArchiveSize = size
	j.PartFrames = slices.Clone(partFrames)
	j.UpdatedAt = time.Now()
}

// SetArchiveURL records where the archive was published.
func (j *Job) SetArchiveURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ArchiveURL = url
	j.UpdatedAt = time.Now()
}

// ClearArchive forgets the archive after its file was removed.
func (j *Job) ClearArchive() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ArchivePath = ""
	j.ArchiveSize = 0
	j.ArchiveURL = ""
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Config:      j.Config,
		Progress:    j.Progress,
		Message:     j.Message,
		Error:       j.Error,
		Inputs:      slices.Clone(j.Inputs),
		PartFrames:  slices.Clone(j.PartFrames),
		ArchivePath: j.ArchivePath,
		ArchiveSize: j.ArchiveSize,
		PushToS3:    j.PushToS3,
		ArchiveURL:  j.ArchiveURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
