package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/metrics"
	"github.com/maauso/bootanimation-api/internal/progress"
	"github.com/maauso/bootanimation-api/internal/source"
)

// Default wait bounds for the decoder's signals.
const (
	DefaultSeekTimeout     = 5 * time.Second
	DefaultMetadataTimeout = 30 * time.Second
)

// VideoExtractor captures frames from a single timed source (video or
// animated image) at a fixed rate.
type VideoExtractor struct {
	decoder         media.VideoDecoder
	resizer         *media.Resizer
	seekTimeout     time.Duration
	metadataTimeout time.Duration
	logger          *slog.Logger
}

// VideoOption configures a VideoExtractor.
type VideoOption func(*VideoExtractor)

// WithSeekTimeout bounds the wait for each seek confirmation.
func WithSeekTimeout(d time.Duration) VideoOption {
	return func(e *VideoExtractor) {
		if d > 0 {
			e.seekTimeout = d
		}
	}
}

// WithMetadataTimeout bounds the wait for the source's duration.
func WithMetadataTimeout(d time.Duration) VideoOption {
	return func(e *VideoExtractor) {
		if d > 0 {
			e.metadataTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) VideoOption {
	return func(e *VideoExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewVideoExtractor creates a VideoExtractor with the default timeouts.
func NewVideoExtractor(decoder media.VideoDecoder, resizer *media.Resizer, opts ...VideoOption) *VideoExtractor {
	e := &VideoExtractor{
		decoder:         decoder,
		resizer:         resizer,
		seekTimeout:     DefaultSeekTimeout,
		metadataTimeout: DefaultMetadataTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// videoState is a step of the capture state machine:
//
//	loading -> metadataReady | failed
//	metadataReady -> seeking(0) | done
//	seeking(i) -> captured(i) | failed
//	captured(i) -> seeking(i+1) | done | failed
type videoState int

const (
	stateLoading videoState = iota
	stateMetadataReady
	stateSeeking
	stateCaptured
	stateDone
	stateFailed
)

func (s videoState) String() string {
	switch s {
	case stateLoading:
		return "loading"
	case stateMetadataReady:
		return "metadata_ready"
	case stateSeeking:
		return "seeking"
	case stateCaptured:
		return "captured"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// videoRun holds the mutable state of one Extract call.
type videoRun struct {
	e        *VideoExtractor
	player   media.Player
	file     source.File
	target   Target
	reporter progress.Reporter

	state    videoState
	failedIn videoState
	duration float64
	total    int
	index    int
	frames   []media.Frame
	err      error
}

// Extract plays file through the decoder and captures floor(duration*fps)
// frames, each at i/fps seconds. A zero-length source yields no frames and
// no error. The decoder handle is released on every return path.
func (e *VideoExtractor) Extract(ctx context.Context, file source.File, t Target, r progress.Reporter) ([]media.Frame, error) {
	if t.FPS <= 0 {
		return nil, fmt.Errorf("extract %s: fps must be positive, got %d", file.Name, t.FPS)
	}

	player, err := e.decoder.Open(ctx, file.Path, file.ContentType)
	if err != nil {
		return nil, &MediaLoadError{Name: file.Name, Err: err}
	}
	defer func() {
		if cerr := player.Close(); cerr != nil {
			e.logger.Warn("Failed to release decoder", slog.String("name", file.Name), slog.String("error", cerr.Error()))
		}
	}()

	run := &videoRun{
		e:        e,
		player:   player,
		file:     file,
		target:   t,
		reporter: progress.OrNop(r),
		state:    stateLoading,
	}
	for run.state != stateDone && run.state != stateFailed {
		run.step(ctx)
	}

	if run.state == stateFailed {
		e.logger.Warn("Video extraction failed",
			slog.String("name", file.Name),
			slog.String("state", run.failedIn.String()),
			slog.Int("frame", run.index),
			slog.String("error", run.err.Error()),
		)
		return nil, run.err
	}

	e.logger.Debug("Video extracted",
		slog.String("name", file.Name),
		slog.Float64("duration", run.duration),
		slog.Int("frames", len(run.frames)),
	)
	return run.frames, nil
}

func (r *videoRun) step(ctx context.Context) {
	switch r.state {
	case stateLoading:
		duration, err := r.awaitMetadata(ctx)
		if err != nil {
			r.fail(err)
			return
		}
		if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
			r.fail(&UnknownDurationError{Name: r.file.Name, Duration: duration})
			return
		}
		r.duration = duration
		r.total = int(math.Floor(duration * float64(r.target.FPS)))
		r.state = stateMetadataReady

	case stateMetadataReady:
		if r.total <= 0 {
			r.state = stateDone
			return
		}
		r.frames = make([]media.Frame, 0, r.total)
		r.index = 0
		r.state = stateSeeking

	case stateSeeking:
		if err := ctx.Err(); err != nil {
			r.fail(fmt.Errorf("video extraction cancelled: %w", err))
			return
		}
		position := float64(r.index) / float64(r.target.FPS)
		r.player.Seek(position)
		if err := r.awaitSeek(ctx, position); err != nil {
			r.fail(err)
			return
		}
		if err := r.capture(); err != nil {
			r.fail(err)
			return
		}
		r.state = stateCaptured

	case stateCaptured:
		r.reporter.Report(float64(r.index+1)/float64(r.total)*100,
			fmt.Sprintf("Extracting frame %d/%d", r.index+1, r.total))
		r.index++
		if r.index == r.total {
			r.state = stateDone
			return
		}
		r.state = stateSeeking
	}
}

func (r *videoRun) fail(err error) {
	r.failedIn = r.state
	r.err = err
	r.frames = nil
	r.state = stateFailed
}

// awaitMetadata suspends until the decoder reports the source duration.
func (r *videoRun) awaitMetadata(ctx context.Context) (float64, error) {
	timer := time.NewTimer(r.e.metadataTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-r.player.Events():
			if !ok {
				return 0, &MediaLoadError{Name: r.file.Name, Err: media.ErrPlayerClosed}
			}
			switch ev.Kind {
			case media.EventMetadata:
				return ev.Duration, nil
			case media.EventError:
				return 0, &MediaLoadError{Name: r.file.Name, Err: ev.Err}
			}
		case <-timer.C:
			return 0, &MediaLoadError{Name: r.file.Name, Err: ErrMetadataTimeout}
		case <-ctx.Done():
			return 0, fmt.Errorf("waiting for metadata: %w", ctx.Err())
		}
	}
}

// awaitSeek suspends until the decoder confirms the seek for the current frame.
func (r *videoRun) awaitSeek(ctx context.Context, position float64) error {
	timer := time.NewTimer(r.e.seekTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-r.player.Events():
			if !ok {
				return &FrameCaptureError{FrameIndex: r.index, Err: media.ErrPlayerClosed}
			}
			switch ev.Kind {
			case media.EventSeeked:
				return nil
			case media.EventError:
				return &FrameCaptureError{FrameIndex: r.index, Err: ev.Err}
			}
		case <-timer.C:
			metrics.SeekTimeoutsTotal.Inc()
			return &SeekTimeoutError{FrameIndex: r.index, Position: position, Timeout: r.e.seekTimeout}
		case <-ctx.Done():
			return fmt.Errorf("waiting for seek to frame %d: %w", r.index, ctx.Err())
		}
	}
}

func (r *videoRun) capture() error {
	img, err := r.player.Frame()
	if err != nil {
		return &FrameCaptureError{FrameIndex: r.index, Err: err}
	}
	frame, err := r.e.resizer.Resize(img, r.target.Width, r.target.Height, r.target.Quality)
	if err != nil {
		return fmt.Errorf("resize frame %d: %w", r.index, err)
	}
	r.frames = append(r.frames, frame)
	metrics.FramesTotal.WithLabelValues(source.StrategyVideo.String()).Inc()
	return nil
}
