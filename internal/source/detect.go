package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	webpanim "github.com/deepteams/webp/animation"
	"github.com/gabriel-vasile/mimetype"
)

// Content types that may carry more than one frame.
const (
	TypeGIF  = "image/gif"
	TypeAPNG = "image/vnd.mozilla.apng"
	TypeWebP = "image/webp"
)

// Detect sniffs the file at path and returns a classified File. The client's
// declared content type is never consulted.
func Detect(path, name string) (File, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect content type of %s: %w", name, err)
	}

	contentType := mt.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}

	animated, err := isAnimated(path, contentType)
	if err != nil {
		return File{}, fmt.Errorf("inspect %s: %w", name, err)
	}

	return File{
		Name:        name,
		Path:        path,
		ContentType: contentType,
		Kind:        KindOf(contentType, animated),
	}, nil
}

// KindOf maps a MIME type to a Kind. animated is only consulted for image types.
func KindOf(contentType string, animated bool) Kind {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo
	case contentType == TypeAPNG:
		return KindAnimatedImage
	case strings.HasPrefix(contentType, "image/"):
		if animated {
			return KindAnimatedImage
		}
		return KindStillImage
	default:
		return KindOther
	}
}

func isAnimated(path, contentType string) (bool, error) {
	switch contentType {
	case TypeGIF:
		return gifHasFrames(path)
	case TypeWebP:
		return webpHasFrames(path)
	default:
		return false, nil
	}
}

// gifHasFrames reports whether the GIF holds more than one image. Only the
// block structure is walked; no pixel data is decompressed. A malformed GIF
// is treated as still so the error surfaces as a decode failure for the
// named file.
func gifHasFrames(path string) (bool, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from our own temp storage
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	n, err := CountGIFFrames(f, 2)
	if err != nil {
		return false, nil
	}
	return n > 1, nil
}

// ErrMalformedGIF is returned by CountGIFFrames for an unreadable block stream.
var ErrMalformedGIF = errors.New("malformed gif")

// CountGIFFrames counts image descriptors in a GIF stream, stopping early
// once limit is reached. A limit of zero or less counts every frame.
func CountGIFFrames(r io.Reader, limit int) (int, error) {
	br := bufio.NewReader(r)

	header := make([]byte, 13)
	if _, err := io.ReadFull(br, header); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedGIF, err)
	}
	if sig := string(header[:6]); sig != "GIF87a" && sig != "GIF89a" {
		return 0, ErrMalformedGIF
	}
	if err := skipColorTable(br, header[10]); err != nil {
		return 0, err
	}

	frames := 0
	for {
		introducer, err := br.ReadByte()
		if err != nil {
			return frames, fmt.Errorf("%w: %w", ErrMalformedGIF, err)
		}
		switch introducer {
		case 0x21: // extension
			if _, err := br.ReadByte(); err != nil {
				return frames, fmt.Errorf("%w: %w", ErrMalformedGIF, err)
			}
			if err := skipSubBlocks(br); err != nil {
				return frames, err
			}
		case 0x2c: // image descriptor
			frames++
			if limit > 0 && frames >= limit {
				return frames, nil
			}
			desc := make([]byte, 9)
			if _, err := io.ReadFull(br, desc); err != nil {
				return frames, fmt.Errorf("%w: %w", ErrMalformedGIF, err)
			}
			if err := skipColorTable(br, desc[8]); err != nil {
				return frames, err
			}
			if _, err := br.ReadByte(); err != nil { // LZW minimum code size
				return frames, fmt.Errorf("%w: %w", ErrMalformedGIF, err)
			}
			if err := skipSubBlocks(br); err != nil {
				return frames, err
			}
		case 0x3b: // trailer
			return frames, nil
		default:
			return frames, fmt.Errorf("%w: unexpected block 0x%02x", ErrMalformedGIF, introducer)
		}
	}
}

func skipColorTable(br *bufio.Reader, flags byte) error {
	if flags&0x80 == 0 {
		return nil
	}
	size := 3 * (1 << ((flags & 0x07) + 1))
	if _, err := br.Discard(size); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedGIF, err)
	}
	return nil
}

func skipSubBlocks(br *bufio.Reader) error {
	for {
		size, err := br.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedGIF, err)
		}
		if size == 0 {
			return nil
		}
		if _, err := br.Discard(int(size)); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedGIF, err)
		}
	}
}

// webpHasFrames parses the WebP container and reports whether it holds more
// than one frame. Bitstreams are not decoded. An unparseable file is treated
// as still, like a malformed GIF.
func webpHasFrames(path string) (bool, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from our own temp storage
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	anim, err := webpanim.Decode(f)
	if err != nil {
		return false, nil
	}
	return len(anim.Frames) > 1, nil
}
