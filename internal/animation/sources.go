package animation

import (
	"errors"
	"fmt"

	"github.com/maauso/bootanimation-api/internal/source"
)

// ErrMissingSource is returned when a mode's required source is absent.
var ErrMissingSource = errors.New("missing required source")

// Sources is the set of inputs for one run: either Standard or IntroLoop.
type Sources interface {
	// Mode is the animation mode the sources were built for.
	Mode() Mode
	// Roles returns the file sets in part order.
	Roles() []Role
}

// Role is one named file set feeding one part.
type Role struct {
	Name  string
	Files []source.File
}

// Standard holds the single looping source.
type Standard struct {
	Loop []source.File
}

// Mode implements Sources.
func (Standard) Mode() Mode { return ModeStandard }

// Roles implements Sources.
func (s Standard) Roles() []Role {
	return []Role{{Name: "loop", Files: s.Loop}}
}

// IntroLoop holds a play-once intro followed by a looping source.
type IntroLoop struct {
	Intro []source.File
	Loop  []source.File
}

// Mode implements Sources.
func (IntroLoop) Mode() Mode { return ModeIntroLoop }

// Roles implements Sources.
func (s IntroLoop) Roles() []Role {
	return []Role{{Name: "intro", Files: s.Intro}, {Name: "loop", Files: s.Loop}}
}

// NewSources builds the variant for mode from loose inputs, rejecting
// combinations where a required role is empty.
func NewSources(mode Mode, intro, loop []source.File) (Sources, error) {
	switch mode {
	case ModeStandard:
		if len(loop) == 0 {
			return nil, fmt.Errorf("%w: standard mode needs loop files", ErrMissingSource)
		}
		return Standard{Loop: loop}, nil
	case ModeIntroLoop:
		if len(intro) == 0 {
			return nil, fmt.Errorf("%w: intro_loop mode needs intro files", ErrMissingSource)
		}
		if len(loop) == 0 {
			return nil, fmt.Errorf("%w: intro_loop mode needs loop files", ErrMissingSource)
		}
		return IntroLoop{Intro: intro, Loop: loop}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
