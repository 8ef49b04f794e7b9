package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Kernel names a scaling interpolator.
type Kernel string

// Supported resize kernels, fastest first.
const (
	KernelNearest        Kernel = "nearest"
	KernelApproxBiLinear Kernel = "approxbilinear"
	KernelBiLinear       Kernel = "bilinear"
	KernelCatmullRom     Kernel = "catmullrom"
)

// ParseKernel converts a configuration string into a Kernel.
func ParseKernel(s string) (Kernel, error) {
	k := Kernel(strings.ToLower(strings.TrimSpace(s)))
	if _, err := k.interpolator(); err != nil {
		return "", err
	}
	return k, nil
}

func (k Kernel) interpolator() (draw.Interpolator, error) {
	switch k {
	case KernelNearest:
		return draw.NearestNeighbor, nil
	case KernelApproxBiLinear:
		return draw.ApproxBiLinear, nil
	case KernelBiLinear:
		return draw.BiLinear, nil
	case KernelCatmullRom, "":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, string(k))
	}
}

// Layout is the rectangle a source image is drawn into on the target canvas.
type Layout struct {
	DX         float64
	DY         float64
	DrawWidth  float64
	DrawHeight float64
}

// Rect rounds the layout to whole pixels. Each side is at least one pixel,
// so an extreme aspect ratio still draws a sliver of the source.
func (l Layout) Rect() image.Rectangle {
	x0 := int(math.Round(l.DX))
	y0 := int(math.Round(l.DY))
	x1 := max(int(math.Round(l.DX+l.DrawWidth)), x0+1)
	y1 := max(int(math.Round(l.DY+l.DrawHeight)), y0+1)
	return image.Rect(x0, y0, x1, y1)
}

// Letterbox fits a srcW x srcH image into a dstW x dstH canvas preserving
// aspect ratio. A relatively wider source fills the width and is centred
// vertically; otherwise it fills the height and is centred horizontally.
func Letterbox(srcW, srcH, dstW, dstH int) Layout {
	sourceRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(dstW) / float64(dstH)

	l := Layout{DrawWidth: float64(dstW), DrawHeight: float64(dstH)}
	if sourceRatio > targetRatio {
		l.DrawHeight = float64(dstW) / sourceRatio
		l.DY = (float64(dstH) - l.DrawHeight) / 2
	} else {
		l.DrawWidth = float64(dstH) * sourceRatio
		l.DX = (float64(dstW) - l.DrawWidth) / 2
	}
	return l
}

// MaxCanvasPixels caps width*height of a single output frame.
const MaxCanvasPixels = 8192 * 8192

// Resizer letterboxes bitmaps onto a black canvas and encodes them as JPEG.
type Resizer struct {
	kernel Kernel
	interp draw.Interpolator
}

// NewResizer creates a Resizer using the given kernel. An empty kernel
// selects CatmullRom.
func NewResizer(kernel Kernel) (*Resizer, error) {
	interp, err := kernel.interpolator()
	if err != nil {
		return nil, err
	}
	if kernel == "" {
		kernel = KernelCatmullRom
	}
	return &Resizer{kernel: kernel, interp: interp}, nil
}

// Kernel returns the interpolator name in use.
func (r *Resizer) Kernel() Kernel {
	return r.kernel
}

// Resize produces one width x height JPEG frame from img. The canvas is
// filled opaque black before the scaled source is composited onto it, so the
// output never has undefined border pixels.
func (r *Resizer) Resize(img image.Image, width, height int, quality float64) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}
	if int64(width)*int64(height) > MaxCanvasPixels {
		return Frame{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimensions, width, height, MaxCanvasPixels)
	}
	if quality <= 0 || quality > 1 || math.IsNaN(quality) {
		return Frame{}, fmt.Errorf("%w: got %v", ErrInvalidQuality, quality)
	}
	src := img.Bounds()
	if src.Dx() <= 0 || src.Dy() <= 0 {
		return Frame{}, fmt.Errorf("%w: source is %dx%d", ErrInvalidDimensions, src.Dx(), src.Dy())
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	target := Letterbox(src.Dx(), src.Dy(), width, height).Rect().Intersect(canvas.Bounds())
	if !target.Empty() {
		r.interp.Scale(canvas, target, img, src, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return Frame{}, &EncodingError{Err: err}
	}
	if buf.Len() == 0 {
		return Frame{}, &EncodingError{}
	}

	return Frame{
		Data:   buf.Bytes(),
		Format: FormatJPEG,
		Width:  width,
		Height: height,
	}, nil
}

// jpegQuality maps a (0,1] factor onto image/jpeg's 1..100 scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
