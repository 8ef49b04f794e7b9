package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	// Still-image formats accepted in image sequences.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Compile-time checks for the image decoders.
var (
	_ ImageDecoder = NativeImageDecoder{}
	_ ImageDecoder = (*FallbackImageDecoder)(nil)
	_ ImageDecoder = (*FFmpegProcessor)(nil)
)

// NativeImageDecoder decodes JPEG, PNG, GIF, BMP, TIFF and WebP with the Go
// image decoders. Animated containers yield their first frame.
type NativeImageDecoder struct{}

// DecodeImage implements ImageDecoder.
func (NativeImageDecoder) DecodeImage(ctx context.Context, path string) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path comes from our own temp storage
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// FallbackImageDecoder tries Primary and, when the format is not recognised,
// hands the file to Fallback (typically ffmpeg, which reads HEIC, AVIF, ...).
type FallbackImageDecoder struct {
	Primary  ImageDecoder
	Fallback ImageDecoder
}

// DecodeImage implements ImageDecoder.
func (d *FallbackImageDecoder) DecodeImage(ctx context.Context, path string) (image.Image, error) {
	img, err := d.Primary.DecodeImage(ctx, path)
	if err == nil {
		return img, nil
	}
	if d.Fallback == nil || !errors.Is(err, image.ErrFormat) {
		return nil, err
	}
	img, ferr := d.Fallback.DecodeImage(ctx, path)
	if ferr != nil {
		return nil, fmt.Errorf("%w; fallback: %w", err, ferr)
	}
	return img, nil
}
