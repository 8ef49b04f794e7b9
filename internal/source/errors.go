package source

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSource is matched by every UnsupportedSourceError.
var ErrUnsupportedSource = errors.New("unsupported source")

// UnsupportedSourceError is returned when a file set matches no extraction strategy.
type UnsupportedSourceError struct {
	// Combination names the offending mix, e.g. "2 video" or "1 video, 3 still image".
	Combination string
	Files       []string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedSource.Error(), e.Combination)
}

func (e *UnsupportedSourceError) Unwrap() error {
	return ErrUnsupportedSource
}
