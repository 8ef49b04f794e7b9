// Package bootanim orchestrates a complete boot animation run: it classifies
// each source role, extracts its frames and packages the result.
package bootanim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/maauso/bootanimation-api/internal/animation"
	"github.com/maauso/bootanimation-api/internal/extract"
	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/metrics"
	"github.com/maauso/bootanimation-api/internal/progress"
	"github.com/maauso/bootanimation-api/internal/source"
)

// Progress milestones. Extraction occupies 0..extractionCeiling.
const (
	extractionCeiling = 90
	zipStart          = 95
	zipFinal          = 99
)

// SequenceExtractor produces frames from an ordered set of still images.
type SequenceExtractor interface {
	Extract(ctx context.Context, files []source.File, t extract.Target, r progress.Reporter) ([]media.Frame, error)
}

// TimedExtractor produces frames from a single video or animated image.
type TimedExtractor interface {
	Extract(ctx context.Context, file source.File, t extract.Target, r progress.Reporter) ([]media.Frame, error)
}

// Compile-time checks that the extract package satisfies the ports.
var (
	_ SequenceExtractor = (*extract.ImageSequenceExtractor)(nil)
	_ TimedExtractor    = (*extract.VideoExtractor)(nil)
)

// Generator runs the media-to-archive pipeline.
type Generator struct {
	images SequenceExtractor
	video  TimedExtractor
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(images SequenceExtractor, video TimedExtractor, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{images: images, video: video, logger: logger}
}

// Result summarises a written archive.
type Result struct {
	Package  *animation.Package
	Bytes    int64
	Duration time.Duration
}

// Generate extracts every part for sources and returns the assembled package.
// It does not write anything; see WriteArchive.
func (g *Generator) Generate(ctx context.Context, cfg animation.Config, sources animation.Sources, r progress.Reporter) (*animation.Package, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sources == nil {
		return nil, fmt.Errorf("%w: no sources", animation.ErrMissingSource)
	}
	if sources.Mode() != cfg.Mode {
		return nil, fmt.Errorf("%w: sources built for %s, config is %s", animation.ErrInvalidConfig, sources.Mode(), cfg.Mode)
	}

	r = progress.OrNop(r)
	target := extract.Target{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS, Quality: cfg.Quality}

	roles := sources.Roles()
	parts := make([][]media.Frame, len(roles))
	share := float64(extractionCeiling) / float64(len(roles))

	for i, role := range roles {
		lo := share * float64(i)
		r.Report(lo, fmt.Sprintf("Processing %s sequence...", role.Name))

		frames, err := g.extractRole(ctx, role, target, progress.Span(r, lo, lo+share))
		if err != nil {
			return nil, err
		}
		parts[i] = frames
	}

	return animation.Assemble(cfg, parts...), nil
}

// extractRole classifies one role and runs the matching extractor. An empty
// role yields an empty part.
func (g *Generator) extractRole(ctx context.Context, role animation.Role, t extract.Target, r progress.Reporter) ([]media.Frame, error) {
	if len(role.Files) == 0 {
		return nil, nil
	}

	strategy, err := source.Classify(role.Files)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Extracting frames",
		slog.String("role", role.Name),
		slog.String("strategy", strategy.String()),
		slog.Int("files", len(role.Files)),
	)

	switch strategy {
	case source.StrategyVideo:
		return g.video.Extract(ctx, role.Files[0], t, r)
	default:
		return g.images.Extract(ctx, role.Files, t, r)
	}
}

// WriteArchive runs Generate and writes the package to w as a store-only zip.
// Nothing is written to w unless every frame was produced.
func (g *Generator) WriteArchive(ctx context.Context, cfg animation.Config, sources animation.Sources, w io.Writer, r progress.Reporter) (*Result, error) {
	start := time.Now()
	metrics.ActiveGenerations.Inc()
	defer metrics.ActiveGenerations.Dec()

	res, err := g.writeArchive(ctx, cfg, sources, w, r)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(statusLabel(err)).Inc()
		return nil, err
	}
	metrics.GenerationsTotal.WithLabelValues("completed").Inc()
	res.Duration = time.Since(start)
	return res, nil
}

func (g *Generator) writeArchive(ctx context.Context, cfg animation.Config, sources animation.Sources, w io.Writer, r progress.Reporter) (*Result, error) {
	r = progress.OrNop(r)

	pkg, err := g.Generate(ctx, cfg, sources, r)
	if err != nil {
		return nil, err
	}

	cw := &countingWriter{w: w}
	if err := pkg.WriteZip(ctx, cw, progress.Span(r, zipStart, zipFinal)); err != nil {
		return nil, err
	}
	r.Report(100, "Done")

	g.logger.Info("Boot animation generated",
		slog.Int("frames", pkg.FrameCount()),
		slog.Int64("bytes", cw.n),
	)
	return &Result{Package: pkg, Bytes: cw.n}, nil
}

// Run drives state through one WriteArchive call: the state is reset when the
// run starts, follows every report, and ends idle with either the final
// message or the described error. sink, when set, receives the same reports.
func (g *Generator) Run(ctx context.Context, cfg animation.Config, sources animation.Sources, w io.Writer, state *progress.State, sink progress.Reporter) (*Result, error) {
	state.Begin("Starting...")

	res, err := g.WriteArchive(ctx, cfg, sources, w, progress.Multi(state, sink))
	if err != nil {
		state.Fail(Describe(err))
		return nil, err
	}
	state.Finish("Done")
	return res, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
