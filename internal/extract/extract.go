// Package extract turns classified sources into ordered sequences of
// letterboxed JPEG frames.
package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/metrics"
	"github.com/maauso/bootanimation-api/internal/progress"
	"github.com/maauso/bootanimation-api/internal/source"
)

// Target describes the frames an extractor must produce.
type Target struct {
	Width   int
	Height  int
	FPS     int
	Quality float64
}

// ImageSequenceExtractor resizes an ordered set of still images, one frame per file.
type ImageSequenceExtractor struct {
	decoder media.ImageDecoder
	resizer *media.Resizer
	logger  *slog.Logger
}

// NewImageSequenceExtractor creates an ImageSequenceExtractor.
func NewImageSequenceExtractor(decoder media.ImageDecoder, resizer *media.Resizer, logger *slog.Logger) *ImageSequenceExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageSequenceExtractor{decoder: decoder, resizer: resizer, logger: logger}
}

// Extract orders files numerically by name and returns one frame per file.
// Any failure discards the frames produced so far.
func (e *ImageSequenceExtractor) Extract(ctx context.Context, files []source.File, t Target, r progress.Reporter) ([]media.Frame, error) {
	r = progress.OrNop(r)
	sorted := source.SortNumeric(files)
	total := len(sorted)
	frames := make([]media.Frame, 0, total)

	for i, f := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("image sequence cancelled: %w", err)
		}

		r.Report(float64(i)/float64(total)*100, fmt.Sprintf("Processing image %d/%d", i+1, total))

		img, err := e.decoder.DecodeImage(ctx, f.Path)
		if err != nil {
			e.logger.Warn("Failed to decode image",
				slog.String("name", f.Name),
				slog.String("error", err.Error()),
			)
			return nil, &FrameDecodeError{Name: f.Name, Err: err}
		}

		frame, err := e.resizer.Resize(img, t.Width, t.Height, t.Quality)
		if err != nil {
			return nil, fmt.Errorf("resize %s: %w", f.Name, err)
		}
		frames = append(frames, frame)
		metrics.FramesTotal.WithLabelValues(source.StrategyImageSequence.String()).Inc()
	}

	e.logger.Debug("Image sequence extracted", slog.Int("frames", len(frames)))
	return frames, nil
}
