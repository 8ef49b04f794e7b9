// Package webptest builds small WebP files for tests. Every frame is a solid
// colour encoded as a lossless VP8L bitstream whose prefix codes each hold a
// single symbol, so the pixel data itself takes no bits.
package webptest

import (
	"bytes"
	"encoding/binary"
	"image/color"
)

// Frame is one solid-colour animation frame.
type Frame struct {
	Color      color.NRGBA
	DurationMS int
}

// Still returns a simple (non-animated) lossless WebP file.
func Still(width, height int, c color.NRGBA) []byte {
	var chunks bytes.Buffer
	writeChunk(&chunks, "VP8L", SolidVP8L(width, height, c))
	return riff(chunks.Bytes())
}

// Animated returns an extended WebP file with one ANMF chunk per frame. Each
// frame covers the whole canvas and replaces it without blending.
func Animated(width, height int, frames ...Frame) []byte {
	var chunks bytes.Buffer

	vp8x := make([]byte, 10)
	vp8x[0] = 0x02 // animation
	putUint24(vp8x[4:], width-1)
	putUint24(vp8x[7:], height-1)
	writeChunk(&chunks, "VP8X", vp8x)

	writeChunk(&chunks, "ANIM", []byte{0, 0, 0, 0, 0, 0})

	for _, fr := range frames {
		var anmf bytes.Buffer
		header := make([]byte, 16)
		putUint24(header[6:], width-1)
		putUint24(header[9:], height-1)
		putUint24(header[12:], fr.DurationMS)
		header[15] = 0x02 // do not blend, no disposal
		anmf.Write(header)
		writeChunk(&anmf, "VP8L", SolidVP8L(width, height, fr.Color))
		writeChunk(&chunks, "ANMF", anmf.Bytes())
	}
	return riff(chunks.Bytes())
}

// SolidVP8L returns a raw VP8L bitstream of a width x height image filled
// with c.
func SolidVP8L(width, height int, c color.NRGBA) []byte {
	var w bitWriter
	w.write(0x2f, 8)
	w.write(uint32(width-1), 14)
	w.write(uint32(height-1), 14)
	alpha := uint32(0)
	if c.A != 0xff {
		alpha = 1
	}
	w.write(alpha, 1)
	w.write(0, 3) // version
	w.write(0, 1) // no transforms
	w.write(0, 1) // no colour cache
	w.write(0, 1) // no meta prefix codes

	// green, red, blue, alpha, distance
	for _, sym := range []uint8{c.G, c.R, c.B, c.A, 0} {
		w.write(1, 1) // simple code
		w.write(0, 1) // one symbol
		if sym < 2 {
			w.write(0, 1)
			w.write(uint32(sym), 1)
		} else {
			w.write(1, 1)
			w.write(uint32(sym), 8)
		}
	}
	return w.bytes()
}

type bitWriter struct {
	buf  []byte
	acc  uint64
	bits uint
}

func (w *bitWriter) write(v uint32, n uint) {
	w.acc |= uint64(v) << w.bits
	w.bits += n
	for w.bits >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.bits -= 8
	}
}

func (w *bitWriter) bytes() []byte {
	if w.bits > 0 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc, w.bits = 0, 0
	}
	return w.buf
}

func riff(chunks []byte) []byte {
	var file bytes.Buffer
	file.WriteString("RIFF")
	_ = binary.Write(&file, binary.LittleEndian, uint32(4+len(chunks)))
	file.WriteString("WEBP")
	file.Write(chunks)
	return file.Bytes()
}

func writeChunk(buf *bytes.Buffer, fourCC string, payload []byte) {
	buf.WriteString(fourCC)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

func putUint24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
