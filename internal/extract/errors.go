package extract

import (
	"errors"
	"fmt"
	"time"
)

// Static errors for frame extraction. Each typed error below matches one of
// these with errors.Is.
var (
	ErrFrameDecode     = errors.New("frame decode failed")
	ErrMediaLoad       = errors.New("media load failed")
	ErrMetadataTimeout = errors.New("timed out waiting for media metadata")
	ErrUnknownDuration = errors.New("media duration is not available")
	ErrSeekTimeout     = errors.New("seek timed out")
	ErrFrameCapture    = errors.New("frame capture failed")
)

// FrameDecodeError is returned when a still image in a sequence cannot be decoded.
type FrameDecodeError struct {
	Name string
	Err  error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFrameDecode.Error(), e.Name, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFrameDecode.
func (e *FrameDecodeError) Is(target error) bool { return target == ErrFrameDecode }

// MediaLoadError is returned when a timed source fails to load or never
// reports its metadata.
type MediaLoadError struct {
	Name string
	Err  error
}

func (e *MediaLoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrMediaLoad.Error(), e.Name, e.Err)
}

func (e *MediaLoadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMediaLoad.
func (e *MediaLoadError) Is(target error) bool { return target == ErrMediaLoad }

// UnknownDurationError is returned when a source reports a non-finite or
// negative duration.
type UnknownDurationError struct {
	Name     string
	Duration float64
}

func (e *UnknownDurationError) Error() string {
	return fmt.Sprintf("%s: %s (reported %v)", ErrUnknownDuration.Error(), e.Name, e.Duration)
}

func (e *UnknownDurationError) Unwrap() error { return ErrUnknownDuration }

// SeekTimeoutError is returned when the decoder does not confirm a seek in time.
type SeekTimeoutError struct {
	FrameIndex int
	Position   float64
	Timeout    time.Duration
}

func (e *SeekTimeoutError) Error() string {
	return fmt.Sprintf("%s at frame %d (t=%.3fs, waited %s)", ErrSeekTimeout.Error(), e.FrameIndex, e.Position, e.Timeout)
}

func (e *SeekTimeoutError) Unwrap() error { return ErrSeekTimeout }

// FrameCaptureError is returned when the decoder fails while seeking to, or
// presenting, a specific frame.
type FrameCaptureError struct {
	FrameIndex int
	Err        error
}

func (e *FrameCaptureError) Error() string {
	return fmt.Sprintf("%s at frame %d: %v", ErrFrameCapture.Error(), e.FrameIndex, e.Err)
}

func (e *FrameCaptureError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFrameCapture.
func (e *FrameCaptureError) Is(target error) bool { return target == ErrFrameCapture }
