package animation

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
)

// ErrInvalidArchive is returned when a zip is not a usable boot animation.
var ErrInvalidArchive = errors.New("invalid boot animation archive")

// maxDescriptorSize caps how much of desc.txt Inspect reads.
const maxDescriptorSize = 64 << 10

// PartSummary describes one part directory of an archive.
type PartSummary struct {
	Name      string
	Count     int
	Pause     int
	Frames    int
	Described bool
}

// Summary is the result of inspecting an archive.
type Summary struct {
	Descriptor Descriptor
	Parts      []PartSummary
	// Compressed lists entries that do not use the store method.
	Compressed []string
}

// StoreOnly reports whether every entry is stored uncompressed.
func (s *Summary) StoreOnly() bool {
	return len(s.Compressed) == 0
}

// Inspect reads a boot animation zip: it parses desc.txt, counts the frames
// in each part directory and flags entries that are compressed.
func Inspect(r io.ReaderAt, size int64) (*Summary, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}

	var (
		desc     *zip.File
		frames   = make(map[string]int)
		summary  = &Summary{}
		partDirs []string
	)
	for _, f := range zr.File {
		if f.Method != zip.Store {
			summary.Compressed = append(summary.Compressed, f.Name)
		}
		if f.Name == DescriptorName {
			desc = f
			continue
		}
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		dir := path.Dir(f.Name)
		if dir == "." {
			continue
		}
		if _, ok := frames[dir]; !ok {
			partDirs = append(partDirs, dir)
		}
		frames[dir]++
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidArchive, DescriptorName)
	}

	text, err := readEntry(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidArchive, DescriptorName, err)
	}
	summary.Descriptor, err = ParseDescriptor(text)
	if err != nil {
		return nil, err
	}

	for _, dir := range summary.Descriptor.Directives {
		summary.Parts = append(summary.Parts, PartSummary{
			Name:      dir.Part,
			Count:     dir.Count,
			Pause:     dir.Pause,
			Frames:    frames[dir.Part],
			Described: true,
		})
	}
	for _, dir := range partDirs {
		if !slices.ContainsFunc(summary.Parts, func(p PartSummary) bool { return p.Name == dir }) {
			summary.Parts = append(summary.Parts, PartSummary{Name: dir, Frames: frames[dir]})
		}
	}
	return summary, nil
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	b, err := io.ReadAll(io.LimitReader(rc, maxDescriptorSize))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
