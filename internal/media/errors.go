package media

import (
	"errors"
	"fmt"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidQuality is returned when the quality factor is outside (0,1].
	ErrInvalidQuality = errors.New("invalid quality: must be in (0,1]")
	// ErrEncoding is matched by every EncodingError.
	ErrEncoding = errors.New("frame encoding failed")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoFrameCaptured is returned when ffmpeg produced no image data.
	ErrNoFrameCaptured = errors.New("no frame data captured")
	// ErrNoFrame is returned by Player.Frame before any seek has completed.
	ErrNoFrame = errors.New("no frame available at current position")
	// ErrPlayerClosed is returned when a closed Player is used.
	ErrPlayerClosed = errors.New("player closed")
	// ErrUnknownKernel is returned for an unrecognised resize kernel name.
	ErrUnknownKernel = errors.New("unknown resize kernel")
)

// EncodingError is returned when a composited canvas could not be encoded.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	if e.Err == nil {
		return ErrEncoding.Error()
	}
	return fmt.Sprintf("%s: %v", ErrEncoding.Error(), e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEncoding.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
