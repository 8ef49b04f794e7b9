package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"os"

	webpanim "github.com/deepteams/webp/animation"
	"golang.org/x/image/webp"
)

// Compile-time check that WebPDecoder implements VideoDecoder.
var _ VideoDecoder = WebPDecoder{}

// ErrWebPFrame is returned when an animation frame carries no VP8 or VP8L data.
var ErrWebPFrame = errors.New("unrecognised webp frame bitstream")

// minWebPDelay matches the GIF rule: frames declaring 10ms or less play at 100ms.
const minWebPDelay = 0.1

// WebPDecoder plays animated WebP files in-process. The container is parsed
// up front; each frame's bitstream is decoded only when a seek reaches it.
type WebPDecoder struct{}

// Open implements VideoDecoder.
func (WebPDecoder) Open(ctx context.Context, path, _ string) (Player, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from our own temp storage
	if err != nil {
		return nil, fmt.Errorf("open webp: %w", err)
	}

	return startTimeline(ctx, func(context.Context) (*timeline, error) {
		anim, err := webpanim.Decode(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		if len(anim.Frames) == 0 {
			return nil, fmt.Errorf("decode webp: %w", webpanim.ErrNoFrames)
		}

		starts := make([]float64, len(anim.Frames))
		elapsed := 0.0
		for i, fr := range anim.Frames {
			starts[i] = elapsed
			delay := fr.Duration.Seconds()
			if delay <= 0.01 {
				delay = minWebPDelay
			}
			elapsed += delay
		}
		return &timeline{comp: newWebPCanvas(anim), starts: starts, duration: elapsed}, nil
	}), nil
}

// webpCanvas drives the library's AnimDecoder, decoding one frame bitstream
// at a time and dropping it once composited.
type webpCanvas struct {
	anim  *webpanim.Animation
	dec   *webpanim.AnimDecoder
	shown int
	last  image.Image
}

func newWebPCanvas(anim *webpanim.Animation) *webpCanvas {
	return &webpCanvas{anim: anim, dec: webpanim.NewAnimDecoder(anim), shown: -1}
}

func (c *webpCanvas) Render(i int) (image.Image, error) {
	if i < 0 || i >= len(c.anim.Frames) {
		return nil, ErrNoFrame
	}
	if i == c.shown {
		return c.last, nil
	}
	if i < c.shown {
		c.dec.Reset()
		c.shown = -1
	}

	for c.shown < i {
		next := c.shown + 1
		fr := &c.anim.Frames[next]

		img, err := decodeWebPFrame(fr.BitstreamData, fr.AlphaData)
		if err != nil {
			return nil, fmt.Errorf("webp frame %d: %w", next, err)
		}
		fr.Image = img
		snap, _, err := c.dec.NextFrame()
		fr.Image = nil
		if err != nil {
			return nil, fmt.Errorf("webp frame %d: %w", next, err)
		}
		c.last = snap
		c.shown = next
	}
	return c.last, nil
}

// decodeWebPFrame wraps a raw frame bitstream in a minimal RIFF container and
// decodes it with x/image/webp. Lossy frames with a separate alpha plane use
// the extended layout so the ALPH chunk is honoured.
func decodeWebPFrame(bitstream, alpha []byte) (image.Image, error) {
	bitstream = stripChunkHeader(bitstream)
	if len(bitstream) == 0 {
		return nil, ErrWebPFrame
	}

	var chunks bytes.Buffer
	switch {
	case bitstream[0] == 0x2f:
		writeChunk(&chunks, "VP8L", bitstream)
	case len(alpha) == 0:
		writeChunk(&chunks, "VP8 ", bitstream)
	default:
		w, h, ok := vp8Size(bitstream)
		if !ok {
			return nil, ErrWebPFrame
		}
		vp8x := make([]byte, 10)
		vp8x[0] = 0x10 // alpha
		putUint24(vp8x[4:], w-1)
		putUint24(vp8x[7:], h-1)
		writeChunk(&chunks, "VP8X", vp8x)
		writeChunk(&chunks, "ALPH", alpha)
		writeChunk(&chunks, "VP8 ", bitstream)
	}

	var file bytes.Buffer
	file.WriteString("RIFF")
	_ = binary.Write(&file, binary.LittleEndian, uint32(4+chunks.Len()))
	file.WriteString("WEBP")
	file.Write(chunks.Bytes())

	return webp.Decode(&file)
}

// stripChunkHeader removes a leading "VP8 "/"VP8L" chunk header if present.
func stripChunkHeader(b []byte) []byte {
	if len(b) < 8 {
		return b
	}
	switch string(b[:4]) {
	case "VP8 ", "VP8L":
		size := int(binary.LittleEndian.Uint32(b[4:8]))
		if size <= len(b)-8 {
			return b[8 : 8+size]
		}
	}
	return b
}

func writeChunk(buf *bytes.Buffer, fourCC string, payload []byte) {
	buf.WriteString(fourCC)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

// vp8Size reads the frame size from a VP8 key frame header.
func vp8Size(b []byte) (int, int, bool) {
	if len(b) < 10 || b[3] != 0x9d || b[4] != 0x01 || b[5] != 0x2a {
		return 0, 0, false
	}
	w := int(binary.LittleEndian.Uint16(b[6:8]) & 0x3fff)
	h := int(binary.LittleEndian.Uint16(b[8:10]) & 0x3fff)
	return w, h, w > 0 && h > 0
}

func putUint24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
