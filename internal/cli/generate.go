package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/bootanimation-api/internal/animation"
	"github.com/maauso/bootanimation-api/internal/bootanim"
	"github.com/maauso/bootanimation-api/internal/bootstrap"
	"github.com/maauso/bootanimation-api/internal/progress"
	"github.com/maauso/bootanimation-api/internal/source"
)

type generateOptions struct {
	config  animation.Config
	mode    string
	intro   []string
	loop    []string
	output  string
	quiet   bool
	verbose bool

	pipeline   bootstrap.PipelineOptions
	gifDecoder string
}

// generateError carries the user-facing description of a failed run.
type generateError struct {
	msg string
	err error
}

func (e *generateError) Error() string { return e.msg }
func (e *generateError) Unwrap() error { return e.err }

func newGenerateCommand() *cobra.Command {
	opts := &generateOptions{config: animation.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "generate [loop files...]",
		Short: "Build a bootanimation.zip from a video, GIF or image sequence",
		Example: `  bootanim generate clip.mp4
  bootanim generate --width 720 --height 1280 --fps 24 frames/
  bootanim generate --mode intro_loop --intro intro.gif --loop loop.mp4 -o anim.zip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.loop = append(opts.loop, args...)
			return runGenerate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.config.Width, "width", opts.config.Width, "frame width in pixels")
	f.IntVar(&opts.config.Height, "height", opts.config.Height, "frame height in pixels")
	f.IntVar(&opts.config.FPS, "fps", opts.config.FPS, "frames per second")
	f.Float64Var(&opts.config.Quality, "quality", opts.config.Quality, "JPEG quality in (0,1]")
	f.StringVar(&opts.mode, "mode", string(opts.config.Mode), "standard or intro_loop")
	f.StringSliceVar(&opts.intro, "intro", nil, "intro files or directories (intro_loop mode)")
	f.StringSliceVar(&opts.loop, "loop", nil, "loop files or directories")
	f.StringVarP(&opts.output, "output", "o", animation.ArchiveName, "archive path")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not render the progress bar")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline details to stderr")

	f.StringVar(&opts.pipeline.ResizeKernel, "kernel", "catmullrom", "resize kernel: nearest, approxbilinear, bilinear, catmullrom")
	f.StringVar(&opts.gifDecoder, "gif-decoder", "native", "animated GIF decoder: native or ffmpeg")
	f.StringVar(&opts.pipeline.FFmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary")
	f.StringVar(&opts.pipeline.FFprobePath, "ffprobe", "ffprobe", "ffprobe binary")
	f.DurationVar(&opts.pipeline.SeekTimeout, "seek-timeout", 5*time.Second, "per-frame seek bound")
	f.DurationVar(&opts.pipeline.MetadataTimeout, "metadata-timeout", 30*time.Second, "media load bound")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	mode, err := animation.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	cfg := opts.config
	cfg.Mode = mode
	if err := cfg.Validate(); err != nil {
		return err
	}

	intro, err := collectFiles(opts.intro)
	if err != nil {
		return err
	}
	loop, err := collectFiles(opts.loop)
	if err != nil {
		return err
	}
	sources, err := animation.NewSources(mode, intro, loop)
	if err != nil {
		return err
	}

	pipeline := opts.pipeline
	pipeline.NativeGIF = strings.EqualFold(opts.gifDecoder, "native")
	gen, err := bootstrap.NewGenerator(pipeline, newLogger(cmd.ErrOrStderr(), opts.verbose))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var (
		bar  *barReporter
		sink progress.Reporter
	)
	if !opts.quiet {
		bar = newBarReporter(cmd.ErrOrStderr())
		sink = bar
	}

	res, err := writeOutput(ctx, opts.output, func(w io.Writer) (*bootanim.Result, error) {
		return gen.Run(ctx, cfg, sources, w, &progress.State{}, sink)
	})
	if bar != nil {
		bar.Close()
	}
	if err != nil {
		return &generateError{msg: bootanim.Describe(err), err: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("Boot animation ready"))
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(generateRows(opts.output, cfg, res)))
	return nil
}

// writeOutput runs write against a temporary file next to path and renames
// it into place on success. Nothing is left behind on failure.
func writeOutput(ctx context.Context, path string, write func(io.Writer) (*bootanim.Result, error)) (*bootanim.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".bootanim-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	tmp := f.Name()

	res, err := write(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return res, nil
}

// collectFiles expands directories into their visible regular files and
// sniffs every file.
func collectFiles(paths []string) ([]source.File, error) {
	var files []source.File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			f, err := source.Detect(p, filepath.Base(p))
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			f, err := source.Detect(filepath.Join(p, e.Name()), e.Name())
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
	return files, nil
}

func generateRows(output string, cfg animation.Config, res *bootanim.Result) []summaryRow {
	rows := []summaryRow{
		{"Output", output},
		{"Mode", string(cfg.Mode)},
		{"Resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)},
		{"FPS", fmt.Sprint(cfg.FPS)},
	}
	for _, p := range res.Package.Parts {
		play := "loops"
		if p.PlayOnce {
			play = "plays once"
		}
		rows = append(rows, summaryRow{p.Name, fmt.Sprintf("%d frames, %s", len(p.Frames), play)})
	}
	return slices.Concat(rows, []summaryRow{
		{"Size", humanBytes(res.Bytes)},
		{"Took", res.Duration.Round(time.Millisecond).String()},
	})
}
