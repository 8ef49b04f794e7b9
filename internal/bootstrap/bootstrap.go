// Package bootstrap provides dependency initialization for the boot animation
// server and CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/bootanimation-api/internal/bootanim"
	"github.com/maauso/bootanimation-api/internal/config"
	"github.com/maauso/bootanimation-api/internal/extract"
	"github.com/maauso/bootanimation-api/internal/job"
	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/storage"
)

// PipelineOptions selects the decoders and bounds of the frame pipeline.
type PipelineOptions struct {
	FFmpegPath      string
	FFprobePath     string
	SeekTimeout     time.Duration
	MetadataTimeout time.Duration
	// NativeGIF decodes animated GIFs in-process instead of through ffmpeg.
	NativeGIF    bool
	ResizeKernel string
}

// PipelineOptionsFrom maps the environment configuration onto PipelineOptions.
func PipelineOptionsFrom(cfg *config.Config) PipelineOptions {
	return PipelineOptions{
		FFmpegPath:      cfg.FFmpegPath,
		FFprobePath:     cfg.FFprobePath,
		SeekTimeout:     cfg.SeekTimeout,
		MetadataTimeout: cfg.MetadataTimeout,
		NativeGIF:       cfg.NativeGIF(),
		ResizeKernel:    cfg.ResizeKernel,
	}
}

// NewGenerator wires decoders, resizer and extractors into a Generator.
func NewGenerator(opts PipelineOptions, logger *slog.Logger) (*bootanim.Generator, error) {
	kernel, err := media.ParseKernel(opts.ResizeKernel)
	if err != nil {
		return nil, err
	}
	resizer, err := media.NewResizer(kernel)
	if err != nil {
		return nil, err
	}

	ffmpeg := media.NewFFmpegProcessor(opts.FFmpegPath, opts.FFprobePath)

	images := &media.FallbackImageDecoder{
		Primary:  media.NativeImageDecoder{},
		Fallback: ffmpeg,
	}
	video := &media.Router{Default: ffmpeg, WebP: media.WebPDecoder{}}
	if opts.NativeGIF {
		video.GIF = media.GIFDecoder{}
	}

	videoOpts := []extract.VideoOption{extract.WithLogger(logger)}
	if opts.SeekTimeout > 0 {
		videoOpts = append(videoOpts, extract.WithSeekTimeout(opts.SeekTimeout))
	}
	if opts.MetadataTimeout > 0 {
		videoOpts = append(videoOpts, extract.WithMetadataTimeout(opts.MetadataTimeout))
	}

	return bootanim.NewGenerator(
		extract.NewImageSequenceExtractor(images, resizer, logger),
		extract.NewVideoExtractor(video, resizer, videoOpts...),
		logger,
	), nil
}

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Storage    storage.Storage
	JobService *job.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	generator, err := NewGenerator(PipelineOptionsFrom(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	return &Dependencies{
		Storage:    store,
		JobService: job.NewService(job.NewMemoryRepository(), generator, store, logger),
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
