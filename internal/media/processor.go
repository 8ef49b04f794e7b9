// Package media provides image decoding, video decoding and frame resizing.
// Video decoding is delegated to ffmpeg/ffprobe or to the native GIF decoder;
// JPEG encoding is delegated to image/jpeg.
package media

import (
	"context"
	"image"
)

// ImageDecoder decodes a still image file into a bitmap.
type ImageDecoder interface {
	// DecodeImage reads the file at path and returns its first (or only) frame.
	DecodeImage(ctx context.Context, path string) (image.Image, error)
}

// VideoDecoder opens timed sources (videos and animated images) for seeking.
type VideoDecoder interface {
	// Open starts loading the source at path. It returns immediately; the
	// returned Player signals metadata (or a load error) on its Events channel.
	// The caller must Close the Player on every exit path.
	Open(ctx context.Context, path, contentType string) (Player, error)
}

// EventKind identifies a signal emitted by a Player.
type EventKind int

const (
	// EventMetadata is emitted once, when the duration becomes known.
	EventMetadata EventKind = iota + 1
	// EventSeeked is emitted when a requested seek has completed and
	// the frame at that position can be captured.
	EventSeeked
	// EventError is emitted when loading or seeking failed.
	EventError
)

// String returns a readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventMetadata:
		return "metadata"
	case EventSeeked:
		return "seeked"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a signal from a Player.
type Event struct {
	Kind EventKind
	// Duration is the source length in seconds (EventMetadata). It may be
	// NaN or +Inf when the length cannot be determined.
	Duration float64
	// Position is the timestamp in seconds the seek landed on (EventSeeked).
	Position float64
	// Err is set for EventError.
	Err error
}

// Player is a loaded, seekable timed source. It behaves like a hidden, muted
// media element: requests are asynchronous and completion is signalled on Events.
type Player interface {
	// Events delivers metadata, seek completion and error signals.
	Events() <-chan Event

	// Seek requests the playback position in seconds. Completion is signalled
	// by an EventSeeked (or EventError) on Events.
	Seek(position float64)

	// Frame returns the image at the last completed seek position.
	Frame() (image.Image, error)

	// Close releases the decoded media and any background work.
	Close() error
}
