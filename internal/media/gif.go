package media

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"os"

	"golang.org/x/image/draw"
)

// Compile-time check that GIFDecoder implements VideoDecoder.
var _ VideoDecoder = GIFDecoder{}

// minGIFDelay is the delay, in 1/100 s, applied to frames declaring 0 or 1.
// Browsers play such frames at 100ms rather than as fast as possible.
const minGIFDelay = 10

// GIFDecoder plays animated GIFs in-process, without ffmpeg.
type GIFDecoder struct{}

// Open implements VideoDecoder. The GIF is decoded in the background and
// EventMetadata follows once its timeline is known. Frames stay paletted;
// only the canvas at the current position is kept in RGBA.
func (GIFDecoder) Open(ctx context.Context, path, _ string) (Player, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from our own temp storage
	if err != nil {
		return nil, fmt.Errorf("open gif: %w", err)
	}

	return startTimeline(ctx, func(context.Context) (*timeline, error) {
		g, err := gif.DecodeAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		starts, duration := gifTimeline(g)
		return &timeline{comp: newGIFCanvas(g), starts: starts, duration: duration}, nil
	}), nil
}

// gifTimeline returns each frame's start time and the total length in seconds.
func gifTimeline(g *gif.GIF) ([]float64, float64) {
	starts := make([]float64, len(g.Image))
	elapsed := 0.0
	for i := range g.Image {
		starts[i] = elapsed
		delay := minGIFDelay
		if i < len(g.Delay) && g.Delay[i] > 1 {
			delay = g.Delay[i]
		}
		elapsed += float64(delay) / 100
	}
	return starts, elapsed
}

// gifCanvas composites GIF frames one at a time, honouring disposal.
type gifCanvas struct {
	g      *gif.GIF
	canvas *image.RGBA
	// saved holds the canvas before a DisposalPrevious frame was drawn.
	saved *image.RGBA
	shown int
	last  *image.RGBA
}

func newGIFCanvas(g *gif.GIF) *gifCanvas {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}
	return &gifCanvas{g: g, canvas: image.NewRGBA(bounds), shown: -1}
}

func (c *gifCanvas) disposal(i int) byte {
	if i < len(c.g.Disposal) {
		return c.g.Disposal[i]
	}
	return gif.DisposalNone
}

func (c *gifCanvas) Render(i int) (image.Image, error) {
	if i < 0 || i >= len(c.g.Image) {
		return nil, ErrNoFrame
	}
	if i == c.shown {
		return c.last, nil
	}
	if i < c.shown {
		clear(c.canvas.Pix)
		c.shown = -1
	}

	for c.shown < i {
		if c.shown >= 0 {
			prev := c.g.Image[c.shown]
			switch c.disposal(c.shown) {
			case gif.DisposalBackground:
				draw.Draw(c.canvas, prev.Bounds(), image.Transparent, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				copy(c.canvas.Pix, c.saved.Pix)
			}
		}

		next := c.shown + 1
		if c.disposal(next) == gif.DisposalPrevious {
			if c.saved == nil {
				c.saved = image.NewRGBA(c.canvas.Bounds())
			}
			copy(c.saved.Pix, c.canvas.Pix)
		}
		fr := c.g.Image[next]
		draw.Draw(c.canvas, fr.Bounds(), fr, fr.Bounds().Min, draw.Over)
		c.shown = next
	}

	c.last = image.NewRGBA(c.canvas.Bounds())
	copy(c.last.Pix, c.canvas.Pix)
	return c.last, nil
}
