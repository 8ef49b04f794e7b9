// Package animation models boot animation configuration, the descriptor
// grammar and the store-only archive layout.
package animation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode selects which parts an animation has.
type Mode string

const (
	// ModeStandard plays a single part in a loop.
	ModeStandard Mode = "standard"
	// ModeIntroLoop plays part0 once and then loops part1.
	ModeIntroLoop Mode = "intro_loop"
)

// ParseMode accepts "standard", "intro_loop" and "intro-loop", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case string(ModeStandard):
		return ModeStandard, nil
	case string(ModeIntroLoop):
		return ModeIntroLoop, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Static errors for configuration.
var (
	ErrInvalidConfig = errors.New("invalid animation config")
	ErrUnknownMode   = errors.New("unknown animation mode")
)

// Config is the immutable configuration of a single generation run.
type Config struct {
	Width   int     `json:"width" validate:"min=1,max=8192"`
	Height  int     `json:"height" validate:"min=1,max=8192"`
	FPS     int     `json:"fps" validate:"min=1,max=120"`
	Mode    Mode    `json:"mode" validate:"oneof=standard intro_loop"`
	Quality float64 `json:"quality" validate:"gt=0,lte=1"`
}

// DefaultConfig returns a portrait 1080x1920 animation at 30 fps.
func DefaultConfig() Config {
	return Config{
		Width:   1080,
		Height:  1920,
		FPS:     30,
		Mode:    ModeStandard,
		Quality: 0.9,
	}
}

var validate = validator.New()

// Validate checks the trigger preconditions on the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
