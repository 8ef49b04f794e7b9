package animation

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DescriptorName is the archive entry holding the descriptor.
const DescriptorName = "desc.txt"

// ErrInvalidDescriptor is returned when desc.txt cannot be parsed.
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// Directive is one "p <count> <pause> <part>" line. Count 0 loops forever.
type Directive struct {
	Count int
	Pause int
	Part  string
}

// Descriptor is the parsed form of desc.txt.
type Descriptor struct {
	Width      int
	Height     int
	FPS        int
	Directives []Directive
}

// NewDescriptor returns the descriptor for cfg: a single looping part0 in
// standard mode, or a play-once part0 followed by a looping part1.
func NewDescriptor(cfg Config) Descriptor {
	d := Descriptor{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS}
	if cfg.Mode == ModeIntroLoop {
		d.Directives = []Directive{{Count: 1, Part: PartName(0)}, {Count: 0, Part: PartName(1)}}
	} else {
		d.Directives = []Directive{{Count: 0, Part: PartName(0)}}
	}
	return d
}

// String renders the descriptor with newline-terminated lines.
func (d Descriptor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d %d\n", d.Width, d.Height, d.FPS)
	for _, dir := range d.Directives {
		fmt.Fprintf(&b, "p %d %d %s\n", dir.Count, dir.Pause, dir.Part)
	}
	return b.String()
}

// ParseDescriptor parses desc.txt. Both "p" and "c" part lines are accepted;
// fields after the part name are ignored.
func ParseDescriptor(text string) (Descriptor, error) {
	var d Descriptor
	sc := bufio.NewScanner(strings.NewReader(text))
	line := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		line++
		if line == 1 {
			nums, err := atois(fields, 3)
			if err != nil {
				return Descriptor{}, fmt.Errorf("%w: header: %w", ErrInvalidDescriptor, err)
			}
			d.Width, d.Height, d.FPS = nums[0], nums[1], nums[2]
			continue
		}
		if (fields[0] != "p" && fields[0] != "c") || len(fields) < 4 {
			return Descriptor{}, fmt.Errorf("%w: line %d: %q", ErrInvalidDescriptor, line, sc.Text())
		}
		nums, err := atois(fields[1:3], 2)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: line %d: %w", ErrInvalidDescriptor, line, err)
		}
		d.Directives = append(d.Directives, Directive{Count: nums[0], Pause: nums[1], Part: fields[3]})
	}
	if err := sc.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	if line == 0 {
		return Descriptor{}, fmt.Errorf("%w: empty", ErrInvalidDescriptor)
	}
	return d, nil
}

func atois(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(fields))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
