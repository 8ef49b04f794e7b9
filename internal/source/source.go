// Package source classifies user-supplied media files and orders image
// sequences for frame extraction.
package source

import (
	"fmt"
	"strings"
)

// Kind is the content classification of a single input file.
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindAnimatedImage
	KindStillImage
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAnimatedImage:
		return "animated image"
	case KindStillImage:
		return "still image"
	default:
		return "other"
	}
}

// Timed reports whether files of this kind are played back on a timeline.
func (k Kind) Timed() bool {
	return k == KindVideo || k == KindAnimatedImage
}

// File is one input file handed to the pipeline for a single run.
type File struct {
	// Name is the display name, used for numeric ordering and error messages.
	Name string
	// Path is where the bytes live on local disk.
	Path string
	// ContentType is the sniffed MIME type.
	ContentType string
	Kind        Kind
}

// Strategy is the extraction strategy selected for a set of files.
type Strategy int

const (
	StrategyVideo Strategy = iota + 1
	StrategyImageSequence
)

func (s Strategy) String() string {
	switch s {
	case StrategyVideo:
		return "video"
	case StrategyImageSequence:
		return "image_sequence"
	default:
		return "unknown"
	}
}

// Classify selects the extraction strategy for one source role.
//
// Exactly one timed file (video or animated image) selects StrategyVideo;
// a non-empty set of still images selects StrategyImageSequence. Every other
// combination is rejected with an *UnsupportedSourceError.
func Classify(files []File) (Strategy, error) {
	if len(files) == 0 {
		return 0, &UnsupportedSourceError{Combination: "no files"}
	}

	counts := make(map[Kind]int, 4)
	for _, f := range files {
		counts[f.Kind]++
	}

	timed := counts[KindVideo] + counts[KindAnimatedImage]
	switch {
	case len(files) == 1 && timed == 1:
		return StrategyVideo, nil
	case counts[KindStillImage] == len(files):
		return StrategyImageSequence, nil
	}

	return 0, &UnsupportedSourceError{Combination: describe(counts), Files: names(files)}
}

// describe renders counts as "2 video, 1 still image" in a fixed kind order.
func describe(counts map[Kind]int) string {
	parts := make([]string, 0, len(counts))
	for _, k := range []Kind{KindVideo, KindAnimatedImage, KindStillImage, KindOther} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	return strings.Join(parts, ", ")
}

func names(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}
