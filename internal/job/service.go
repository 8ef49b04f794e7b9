package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/maauso/bootanimation-api/internal/animation"
	"github.com/maauso/bootanimation-api/internal/bootanim"
	"github.com/maauso/bootanimation-api/internal/progress"
	"github.com/maauso/bootanimation-api/internal/storage"
)

var (
	// ErrGenerationInProgress is returned when a run is requested while another is active.
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	// ErrJobActive is returned when deleting a job that has not finished.
	ErrJobActive = errors.New("job is still active")
	// ErrNotRunning is returned when cancelling a job that has already finished.
	ErrNotRunning = errors.New("job is not running")
	// ErrArchiveUnavailable is returned when a job has no downloadable archive.
	ErrArchiveUnavailable = errors.New("archive is not available")
)

// ArchiveWriter produces a boot animation archive. *bootanim.Generator implements it.
type ArchiveWriter interface {
	WriteArchive(ctx context.Context, cfg animation.Config, sources animation.Sources, w io.Writer, r progress.Reporter) (*bootanim.Result, error)
}

var _ ArchiveWriter = (*bootanim.Generator)(nil)

// Request describes one generation run.
type Request struct {
	Config  animation.Config
	Sources animation.Sources
	// Inputs are uploaded files owned by the run. They are removed when the
	// run ends, whatever the outcome.
	Inputs   []string
	PushToS3 bool
}

// Service executes generation runs one at a time and tracks them as jobs.
type Service struct {
	repo      Repository
	generator ArchiveWriter
	storage   storage.Storage
	logger    *slog.Logger

	// gate is held for the whole duration of a run.
	gate sync.Mutex

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a Service.
func NewService(repo Repository, generator ArchiveWriter, store storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		generator: generator,
		storage:   store,
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start registers a job for req and runs it in the background. The run
// outlives ctx; use Cancel to stop it.
func (s *Service) Start(ctx context.Context, req Request) (*Job, error) {
	if !s.gate.TryLock() {
		s.cleanup(ctx, req.Inputs)
		return nil, ErrGenerationInProgress
	}

	job, err := s.create(ctx, req)
	if err != nil {
		s.gate.Unlock()
		s.cleanup(ctx, req.Inputs)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.track(job.ID, cancel)
	queued := job.Clone()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.gate.Unlock()
		_ = s.execute(runCtx, job, req)
	}()

	return queued, nil
}

// Run executes req synchronously and returns the finished job. The error is
// the pipeline error, if any; the job carries its user-facing description.
func (s *Service) Run(ctx context.Context, req Request) (*Job, error) {
	if !s.gate.TryLock() {
		s.cleanup(ctx, req.Inputs)
		return nil, ErrGenerationInProgress
	}
	defer s.gate.Unlock()

	job, err := s.create(ctx, req)
	if err != nil {
		s.cleanup(ctx, req.Inputs)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.track(job.ID, cancel)

	err = s.execute(runCtx, job, req)
	return job.Clone(), err
}

// Busy reports whether a run is active.
func (s *Service) Busy() bool {
	if s.gate.TryLock() {
		s.gate.Unlock()
		return false
	}
	return true
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all known jobs, newest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Cancel stops a queued or running job.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	s.logger.Info("Cancelling job", slog.String("job_id", id))
	cancel()
	return nil
}

// OpenArchive opens the archive of a completed job.
func (s *Service) OpenArchive(ctx context.Context, id string) (io.ReadCloser, *Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != StatusCompleted || job.ArchivePath == "" {
		return nil, job, ErrArchiveUnavailable
	}

	rc, err := s.storage.LoadTemp(ctx, job.ArchivePath)
	if err != nil {
		return nil, job, fmt.Errorf("%w: %w", ErrArchiveUnavailable, err)
	}
	return rc, job, nil
}

// Delete removes a finished job and its archive.
func (s *Service) Delete(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobActive
	}

	if job.ArchivePath != "" {
		if err := s.storage.CleanupTemp(ctx, []string{job.ArchivePath}); err != nil {
			return fmt.Errorf("remove archive: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

// Shutdown cancels every active run and waits for them to finish or for ctx
// to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) create(ctx context.Context, req Request) (*Job, error) {
	job := New(req.Config)
	job.PushToS3 = req.PushToS3
	job.SetInputs(req.Inputs)

	s.logger.Info("Creating job",
		slog.String("job_id", job.ID),
		slog.String("mode", string(req.Config.Mode)),
		slog.Int("width", req.Config.Width),
		slog.Int("height", req.Config.Height),
		slog.Int("fps", req.Config.FPS),
		slog.Bool("push_to_s3", req.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

func (s *Service) track(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
}

func (s *Service) untrack(id string) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// execute drives job from IN_QUEUE to a terminal state.
func (s *Service) execute(ctx context.Context, job *Job, req Request) error {
	defer s.untrack(job.ID)
	defer s.cleanup(context.WithoutCancel(ctx), req.Inputs)

	logger := s.logger.With(slog.String("job_id", job.ID))

	if err := job.Start(); err != nil {
		return err
	}
	s.save(ctx, job)

	reporter := progress.Multi(
		progress.Func(func(percent float64, message string) {
			job.Report(percent, message)
			s.save(ctx, job)
		}),
		progress.Logger(logger),
	)

	path, res, err := s.generate(ctx, req, reporter)
	if err == nil && job.PushToS3 {
		var url string
		url, err = s.publish(ctx, job.ID, path)
		if err != nil {
			s.cleanup(context.WithoutCancel(ctx), []string{path})
		} else {
			job.SetArchiveURL(url)
		}
	}

	if err != nil {
		s.finishWithError(ctx, logger, job, err)
		return err
	}

	job.SetArchive(path, res.Bytes, partFrames(res.Package))
	if err := job.Complete(); err != nil {
		return err
	}
	s.save(ctx, job)

	logger.Info("Job completed",
		slog.String("archive", path),
		slog.Int64("bytes", res.Bytes),
		slog.Duration("duration", res.Duration),
	)
	return nil
}

// generate streams the archive straight into a temp file. The file only
// survives a successful run.
func (s *Service) generate(ctx context.Context, req Request, r progress.Reporter) (string, *bootanim.Result, error) {
	pr, pw := io.Pipe()

	type outcome struct {
		res *bootanim.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := s.generator.WriteArchive(ctx, req.Config, req.Sources, pw, r)
		_ = pw.CloseWithError(err)
		done <- outcome{res: res, err: err}
	}()

	path, saveErr := s.storage.SaveTemp(ctx, animation.ArchiveName, pr)
	_ = pr.CloseWithError(saveErr)
	out := <-done

	switch {
	case out.err != nil:
		if saveErr == nil {
			s.cleanup(context.WithoutCancel(ctx), []string{path})
		}
		return "", nil, out.err
	case saveErr != nil:
		return "", nil, fmt.Errorf("%w: %w", animation.ErrPackaging, saveErr)
	}
	return path, out.res, nil
}

func (s *Service) publish(ctx context.Context, jobID, path string) (string, error) {
	rc, err := s.storage.LoadTemp(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	return s.storage.UploadToS3(ctx, storage.ArchiveKey(jobID, animation.ArchiveName), storage.ArchiveContentType, rc)
}

func (s *Service) finishWithError(ctx context.Context, logger *slog.Logger, job *Job, err error) {
	if errors.Is(err, context.Canceled) {
		logger.Info("Job cancelled")
		_ = job.Cancel()
	} else {
		logger.Error("Job failed", slog.String("error", err.Error()))
		_ = job.Fail(describe(err))
	}
	s.save(ctx, job)
}

func describe(err error) string {
	if errors.Is(err, storage.ErrS3NotConfigured) {
		return "Failed to upload archive: S3 storage is not configured."
	}
	return bootanim.Describe(err)
}

// save persists job. The repository outlives the run, so a cancelled run
// still records its final state.
func (s *Service) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("Failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) cleanup(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := s.storage.CleanupTemp(ctx, paths); err != nil {
		s.logger.Warn("Failed to remove temporary files", slog.String("error", err.Error()))
	}
}

func partFrames(pkg *animation.Package) []int {
	if pkg == nil {
		return nil
	}
	counts := make([]int, len(pkg.Parts))
	for i, p := range pkg.Parts {
		counts[i] = len(p.Frames)
	}
	return counts
}
