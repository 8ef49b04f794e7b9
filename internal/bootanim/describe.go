package bootanim

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/bootanimation-api/internal/animation"
	"github.com/maauso/bootanimation-api/internal/extract"
	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/source"
)

// Describe converts a pipeline error into the message shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var (
		fdErr *extract.FrameDecodeError
		stErr *extract.SeekTimeoutError
		fcErr *extract.FrameCaptureError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "Generation was cancelled."
	case errors.Is(err, source.ErrUnsupportedSource):
		return "Unsupported file combination. Please provide a single video/GIF or an image sequence."
	case errors.As(err, &fdErr):
		return fmt.Sprintf("Failed to process image %s", fdErr.Name)
	case errors.Is(err, extract.ErrMetadataTimeout):
		return "Failed to load video file. Timed out waiting for its metadata."
	case errors.Is(err, extract.ErrMediaLoad):
		return "Failed to load video file. It might be corrupt or in an unsupported format."
	case errors.Is(err, extract.ErrUnknownDuration):
		return "Failed to process video frames: Video duration is not available."
	case errors.As(err, &stErr):
		return fmt.Sprintf("Failed to process video frames: Video seek timed out at frame %d", stErr.FrameIndex)
	case errors.As(err, &fcErr):
		return fmt.Sprintf("Failed to process video frames: could not capture frame %d", fcErr.FrameIndex)
	case errors.Is(err, media.ErrEncoding):
		return "Failed to encode frame as JPEG."
	case errors.Is(err, animation.ErrPackaging):
		return "Failed to build the archive."
	case errors.Is(err, animation.ErrInvalidConfig), errors.Is(err, animation.ErrMissingSource):
		return err.Error()
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return "An unknown error occurred."
}

// statusLabel maps a run's error to the generations_total status label.
func statusLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "failed"
	}
}
