package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, solidImage(w, h, color.RGBA{10, 20, 30, 255})); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestNativeImageDecoder(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	t.Run("decodes png", func(t *testing.T) {
		path := filepath.Join(tmpDir, "0001.png")
		writePNG(t, path, 40, 30)

		img, err := NativeImageDecoder{}.DecodeImage(ctx, path)
		if err != nil {
			t.Fatalf("DecodeImage failed: %v", err)
		}
		if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
			t.Errorf("expected 40x30, got %v", img.Bounds())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		path := filepath.Join(tmpDir, "notes.heic")
		if err := os.WriteFile(path, []byte("definitely not an image"), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := NativeImageDecoder{}.DecodeImage(ctx, path)
		if !errors.Is(err, image.ErrFormat) {
			t.Errorf("expected image.ErrFormat, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NativeImageDecoder{}.DecodeImage(cctx, filepath.Join(tmpDir, "0001.png"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

type stubImageDecoder struct {
	img   image.Image
	err   error
	calls int
}

func (s *stubImageDecoder) DecodeImage(context.Context, string) (image.Image, error) {
	s.calls++
	return s.img, s.err
}

func TestFallbackImageDecoder(t *testing.T) {
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubImageDecoder{img: img}
		fallback := &stubImageDecoder{}
		d := &FallbackImageDecoder{Primary: primary, Fallback: fallback}

		if _, err := d.DecodeImage(ctx, "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fallback.calls != 0 {
			t.Error("fallback should not be consulted")
		}
	})

	t.Run("unknown format uses fallback", func(t *testing.T) {
		primary := &stubImageDecoder{err: image.ErrFormat}
		fallback := &stubImageDecoder{img: img}
		d := &FallbackImageDecoder{Primary: primary, Fallback: fallback}

		got, err := d.DecodeImage(ctx, "x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != img {
			t.Error("expected fallback image")
		}
	})

	t.Run("corrupt data does not fall back", func(t *testing.T) {
		corrupt := errors.New("unexpected EOF")
		primary := &stubImageDecoder{err: corrupt}
		fallback := &stubImageDecoder{img: img}
		d := &FallbackImageDecoder{Primary: primary, Fallback: fallback}

		if _, err := d.DecodeImage(ctx, "x"); !errors.Is(err, corrupt) {
			t.Errorf("expected primary error, got %v", err)
		}
		if fallback.calls != 0 {
			t.Error("fallback should not be consulted")
		}
	})

	t.Run("both fail", func(t *testing.T) {
		ffErr := &FFmpegError{Err: errors.New("exit status 1")}
		d := &FallbackImageDecoder{
			Primary:  &stubImageDecoder{err: image.ErrFormat},
			Fallback: &stubImageDecoder{err: ffErr},
		}
		_, err := d.DecodeImage(ctx, "x")
		if !errors.Is(err, image.ErrFormat) {
			t.Errorf("expected joined error to match image.ErrFormat, got %v", err)
		}
		var target *FFmpegError
		if !errors.As(err, &target) {
			t.Errorf("expected joined error to carry FFmpegError, got %v", err)
		}
	})
}
