package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Compile-time check that FFmpegProcessor implements VideoDecoder.
var _ VideoDecoder = (*FFmpegProcessor)(nil)

// FFmpegProcessor decodes media using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// DecodeImage converts any still image ffmpeg understands into a bitmap.
func (p *FFmpegProcessor) DecodeImage(ctx context.Context, path string) (image.Image, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path, // Input file
		"-frames:v", "1", // Single frame
		"-f", "image2pipe", // Write to stdout
		"-vcodec", "png", // Lossless intermediate
		"-",
	}
	return p.capturePNG(ctx, args)
}

// CaptureFrame decodes the frame displayed at position seconds.
func (p *FFmpegProcessor) CaptureFrame(ctx context.Context, path string, position float64) (image.Image, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(position, 'f', 6, 64), // Input seeking
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	return p.capturePNG(ctx, args)
}

func (p *FFmpegProcessor) capturePNG(ctx context.Context, args []string) (image.Image, error) {
	var stdout bytes.Buffer
	if err := p.runFFmpeg(ctx, args, &stdout); err != nil {
		return nil, err
	}
	if stdout.Len() == 0 {
		return nil, ErrNoFrameCaptured
	}
	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode captured frame: %w", err)
	}
	return img, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string, stdout io.Writer) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// GetMediaDuration returns the duration in seconds of a media file.
// Sources without a known length (live streams) report NaN.
func (p *FFmpegProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseDuration(stdout.String())
}

func parseDuration(out string) (float64, error) {
	out = strings.TrimSpace(out)
	if out == "" || out == "N/A" {
		return math.NaN(), nil
	}
	duration, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// Open implements VideoDecoder. Metadata is probed in the background and
// every Seek runs one ffmpeg capture.
func (p *FFmpegProcessor) Open(ctx context.Context, path, _ string) (Player, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}

	pctx, cancel := context.WithCancel(ctx)
	pl := &ffmpegPlayer{
		proc:   p,
		path:   path,
		ctx:    pctx,
		cancel: cancel,
		events: make(chan Event, 1),
	}

	pl.wg.Add(1)
	go func() {
		defer pl.wg.Done()
		duration, err := p.GetMediaDuration(pctx, path)
		if err != nil {
			pl.emit(Event{Kind: EventError, Err: err})
			return
		}
		pl.emit(Event{Kind: EventMetadata, Duration: duration})
	}()

	return pl, nil
}

// ffmpegPlayer adapts one-shot ffmpeg captures to the Player signalling model.
type ffmpegPlayer struct {
	proc   *FFmpegProcessor
	path   string
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	wg     sync.WaitGroup

	mu      sync.Mutex
	current image.Image
	seq     int
	closed  bool
}

func (pl *ffmpegPlayer) Events() <-chan Event {
	return pl.events
}

func (pl *ffmpegPlayer) Seek(position float64) {
	pl.mu.Lock()
	if pl.closed {
		pl.mu.Unlock()
		return
	}
	pl.seq++
	seq := pl.seq
	pl.wg.Add(1)
	pl.mu.Unlock()

	go func() {
		defer pl.wg.Done()
		img, err := pl.proc.CaptureFrame(pl.ctx, pl.path, position)

		pl.mu.Lock()
		stale := seq != pl.seq
		if err == nil && !stale {
			pl.current = img
		}
		pl.mu.Unlock()

		// A newer seek supersedes this one; only its completion is signalled.
		if stale {
			return
		}
		if err != nil {
			pl.emit(Event{Kind: EventError, Err: err})
			return
		}
		pl.emit(Event{Kind: EventSeeked, Position: position})
	}()
}

func (pl *ffmpegPlayer) Frame() (image.Image, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.closed {
		return nil, ErrPlayerClosed
	}
	if pl.current == nil {
		return nil, ErrNoFrame
	}
	return pl.current, nil
}

func (pl *ffmpegPlayer) Close() error {
	pl.mu.Lock()
	if pl.closed {
		pl.mu.Unlock()
		return nil
	}
	pl.closed = true
	pl.current = nil
	pl.mu.Unlock()

	pl.cancel()
	pl.wg.Wait()
	close(pl.events)
	return nil
}

// emit delivers ev unless the player is being torn down.
func (pl *ffmpegPlayer) emit(ev Event) {
	select {
	case pl.events <- ev:
	case <-pl.ctx.Done():
	}
}
