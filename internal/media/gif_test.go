package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var testPalette = color.Palette{
	color.RGBA{0, 0, 0, 0},
	color.RGBA{255, 0, 0, 255},
	color.RGBA{0, 255, 0, 255},
	color.RGBA{0, 0, 255, 255},
}

func palettedFill(r image.Rectangle, idx uint8) *image.Paletted {
	p := image.NewPaletted(r, testPalette)
	for i := range p.Pix {
		p.Pix[i] = idx
	}
	return p
}

// writeTestGIF encodes g into a temp file and returns its path.
func writeTestGIF(t *testing.T, g *gif.GIF) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anim.gif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create gif: %v", err)
	}
	defer func() { _ = f.Close() }()
	if err := gif.EncodeAll(f, g); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return path
}

func threeColorGIF() *gif.GIF {
	r := image.Rect(0, 0, 8, 8)
	return &gif.GIF{
		Image:    []*image.Paletted{palettedFill(r, 1), palettedFill(r, 2), palettedFill(r, 3)},
		Delay:    []int{50, 50, 0}, // 0 plays as 100ms
		Disposal: []byte{gif.DisposalNone, gif.DisposalNone, gif.DisposalNone},
		Config:   image.Config{Width: 8, Height: 8, ColorModel: testPalette},
	}
}

func colorAt(t *testing.T, pl Player, x, y int) color.RGBA {
	t.Helper()
	img, err := pl.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestGIFDecoder_Timeline(t *testing.T) {
	path := writeTestGIF(t, threeColorGIF())

	pl, err := GIFDecoder{}.Open(context.Background(), path, "image/gif")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = pl.Close() }()

	ev := waitEvent(t, pl.Events())
	if ev.Kind != EventMetadata {
		t.Fatalf("expected metadata, got %v (%v)", ev.Kind, ev.Err)
	}
	if math.Abs(ev.Duration-1.1) > 1e-9 {
		t.Errorf("expected duration 1.1s, got %v", ev.Duration)
	}

	tests := []struct {
		position float64
		want     color.RGBA
	}{
		{0, color.RGBA{255, 0, 0, 255}},
		{0.49, color.RGBA{255, 0, 0, 255}},
		{0.5, color.RGBA{0, 255, 0, 255}},
		{1.05, color.RGBA{0, 0, 255, 255}},
		{5, color.RGBA{0, 0, 255, 255}}, // past the end holds the last frame
	}

	for _, tt := range tests {
		pl.Seek(tt.position)
		ev := waitEvent(t, pl.Events())
		if ev.Kind != EventSeeked {
			t.Fatalf("seek %v: expected seeked, got %v", tt.position, ev.Kind)
		}
		if got := colorAt(t, pl, 4, 4); got != tt.want {
			t.Errorf("seek %v: got %v, want %v", tt.position, got, tt.want)
		}
	}
}

func TestGIFDecoder_Disposal(t *testing.T) {
	full := image.Rect(0, 0, 8, 8)
	corner := image.Rect(0, 0, 4, 4)

	g := &gif.GIF{
		Image: []*image.Paletted{
			palettedFill(full, 1),   // red background
			palettedFill(corner, 2), // green corner, restored to background afterwards
			palettedFill(image.Rect(4, 4, 8, 8), 3),
		},
		Delay:    []int{10, 10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalBackground, gif.DisposalNone},
		Config:   image.Config{Width: 8, Height: 8, ColorModel: testPalette},
	}
	path := writeTestGIF(t, g)

	pl, err := GIFDecoder{}.Open(context.Background(), path, "image/gif")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = pl.Close() }()
	waitEvent(t, pl.Events())

	pl.Seek(0.1)
	waitEvent(t, pl.Events())
	if got := colorAt(t, pl, 1, 1); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("frame 1 corner: got %v, want green", got)
	}
	if got := colorAt(t, pl, 6, 6); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("frame 1 keeps accumulated red, got %v", got)
	}

	pl.Seek(0.2)
	waitEvent(t, pl.Events())
	if got := colorAt(t, pl, 1, 1); got.A != 0 {
		t.Errorf("frame 2 corner should be cleared to transparent, got %v", got)
	}
	if got := colorAt(t, pl, 6, 6); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("frame 2 patch: got %v, want blue", got)
	}
}

func TestGIFDecoder_BackwardSeekReplays(t *testing.T) {
	path := writeTestGIF(t, threeColorGIF())
	pl, err := GIFDecoder{}.Open(context.Background(), path, "image/gif")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = pl.Close() }()
	waitEvent(t, pl.Events())

	for _, tt := range []struct {
		position float64
		want     color.RGBA
	}{
		{1.05, color.RGBA{0, 0, 255, 255}},
		{0, color.RGBA{255, 0, 0, 255}},
		{0.5, color.RGBA{0, 255, 0, 255}},
	} {
		pl.Seek(tt.position)
		if ev := waitEvent(t, pl.Events()); ev.Kind != EventSeeked {
			t.Fatalf("seek %v: expected seeked, got %v", tt.position, ev.Kind)
		}
		if got := colorAt(t, pl, 4, 4); got != tt.want {
			t.Errorf("seek %v: got %v, want %v", tt.position, got, tt.want)
		}
	}
}

func TestGIFDecoder_MemoryStaysBounded(t *testing.T) {
	const (
		frames = 120
		width  = 400
		height = 400
	)
	r := image.Rect(0, 0, width, height)
	g := &gif.GIF{Config: image.Config{Width: width, Height: height, ColorModel: testPalette}}
	for i := 0; i < frames; i++ {
		g.Image = append(g.Image, palettedFill(r, uint8(i%3+1)))
		g.Delay = append(g.Delay, 4)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	path := writeTestGIF(t, g)
	g = nil

	runtime.GC()
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	pl, err := GIFDecoder{}.Open(context.Background(), path, "image/gif")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = pl.Close() }()
	if ev := waitEvent(t, pl.Events()); ev.Kind != EventMetadata {
		t.Fatalf("expected metadata, got %v (%v)", ev.Kind, ev.Err)
	}
	for _, pos := range []float64{0, 2, 4.7} {
		pl.Seek(pos)
		if ev := waitEvent(t, pl.Events()); ev.Kind != EventSeeked {
			t.Fatalf("seek %v: expected seeked, got %v", pos, ev.Kind)
		}
	}

	runtime.GC()
	runtime.ReadMemStats(&after)
	runtime.KeepAlive(pl)

	// One RGBA canvas per frame would hold 120 x 400 x 400 x 4 bytes (~77MB).
	// Paletted frames plus a few canvases stay near a quarter of that.
	var delta uint64
	if after.HeapAlloc > before.HeapAlloc {
		delta = after.HeapAlloc - before.HeapAlloc
	}
	if delta > 40<<20 {
		t.Errorf("heap grew by %d MB after opening a %d-frame GIF", delta>>20, frames)
	}
}

func TestGIFDecoder_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := GIFDecoder{}.Open(context.Background(), "/nonexistent.gif", "image/gif")
		if err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("corrupt file signals error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.gif")
		if err := os.WriteFile(path, []byte("GIF89a-not-really"), 0600); err != nil {
			t.Fatal(err)
		}
		pl, err := GIFDecoder{}.Open(context.Background(), path, "image/gif")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer func() { _ = pl.Close() }()

		ev := waitEvent(t, pl.Events())
		if ev.Kind != EventError || ev.Err == nil {
			t.Errorf("expected error event, got %v", ev.Kind)
		}
	})

	t.Run("frame after close", func(t *testing.T) {
		path := writeTestGIF(t, threeColorGIF())
		pl, err := GIFDecoder{}.Open(context.Background(), path, "image/gif")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := pl.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if _, err := pl.Frame(); !errors.Is(err, ErrPlayerClosed) {
			t.Errorf("expected ErrPlayerClosed, got %v", err)
		}
		pl.Seek(0) // no-op after close
	})
}

type recordingDecoder struct {
	opened []string
}

func (d *recordingDecoder) Open(_ context.Context, path, _ string) (Player, error) {
	d.opened = append(d.opened, path)
	return nil, errors.New("recorded")
}

func TestRouter(t *testing.T) {
	gifDec := &recordingDecoder{}
	def := &recordingDecoder{}
	r := &Router{GIF: gifDec, Default: def}

	_, _ = r.Open(context.Background(), "a.gif", "image/gif")
	_, _ = r.Open(context.Background(), "b.mp4", "video/mp4")
	_, _ = r.Open(context.Background(), "c.webp", "image/webp")

	if len(gifDec.opened) != 1 || gifDec.opened[0] != "a.gif" {
		t.Errorf("gif decoder opened %v", gifDec.opened)
	}
	if len(def.opened) != 2 {
		t.Errorf("default decoder opened %v", def.opened)
	}

	t.Run("webp decoder takes image/webp", func(t *testing.T) {
		webpDec := &recordingDecoder{}
		def := &recordingDecoder{}
		r := &Router{WebP: webpDec, Default: def}
		_, _ = r.Open(context.Background(), "c.webp", "image/webp")
		_, _ = r.Open(context.Background(), "a.gif", "image/gif")
		if len(webpDec.opened) != 1 || webpDec.opened[0] != "c.webp" {
			t.Errorf("webp decoder opened %v", webpDec.opened)
		}
		if len(def.opened) != 1 || def.opened[0] != "a.gif" {
			t.Errorf("default decoder opened %v", def.opened)
		}
	})

	t.Run("without gif decoder everything goes to default", func(t *testing.T) {
		def := &recordingDecoder{}
		r := &Router{Default: def}
		_, _ = r.Open(context.Background(), "a.gif", "image/gif")
		if len(def.opened) != 1 {
			t.Errorf("default decoder opened %v", def.opened)
		}
	})
}
