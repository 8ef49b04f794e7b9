package animation

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/progress"
)

// ArchiveName is the conventional file name of a boot animation.
const ArchiveName = "bootanimation.zip"

// ErrPackaging is matched by every PackagingError.
var ErrPackaging = errors.New("archive packaging failed")

// PackagingError is returned when an archive entry cannot be written.
type PackagingError struct {
	Entry string
	Err   error
}

func (e *PackagingError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("%s: %v", ErrPackaging.Error(), e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrPackaging.Error(), e.Entry, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPackaging.
func (e *PackagingError) Is(target error) bool { return target == ErrPackaging }

// PartName returns "part<i>".
func PartName(i int) string {
	return fmt.Sprintf("part%d", i)
}

// FrameName returns the zero-padded entry name of frame i. Padding is fixed
// at four digits and does not grow past 9999.
func FrameName(i int, format media.Format) string {
	return fmt.Sprintf("%04d.%s", i, format.Ext())
}

// Part is one named group of frames played as a unit.
type Part struct {
	Name     string
	PlayOnce bool
	Frames   []media.Frame
}

// Package is a complete boot animation ready to be archived.
type Package struct {
	Descriptor string
	Parts      []Part
}

// Assemble builds the package for cfg. parts are the frame sequences in part
// order; standard mode uses only the first, intro_loop the first two. A
// missing or empty sequence yields an empty part.
func Assemble(cfg Config, parts ...[]media.Frame) *Package {
	desc := NewDescriptor(cfg)
	pkg := &Package{Descriptor: desc.String(), Parts: make([]Part, len(desc.Directives))}
	for i, dir := range desc.Directives {
		pkg.Parts[i] = Part{Name: dir.Part, PlayOnce: dir.Count == 1}
		if i < len(parts) {
			pkg.Parts[i].Frames = parts[i]
		}
	}
	return pkg
}

// FrameCount returns the number of frames across all parts.
func (p *Package) FrameCount() int {
	n := 0
	for _, part := range p.Parts {
		n += len(part.Frames)
	}
	return n
}

// WriteZip writes the package to w as a zip whose every entry uses the store
// method. Reports 0 when writing starts and 100 just before the central
// directory is flushed.
func (p *Package) WriteZip(ctx context.Context, w io.Writer, r progress.Reporter) error {
	r = progress.OrNop(r)
	r.Report(0, "Generating desc.txt and zipping files...")

	zw := zip.NewWriter(w)
	modified := time.Now()

	if err := writeEntry(zw, DescriptorName, []byte(p.Descriptor), modified); err != nil {
		return err
	}

	for _, part := range p.Parts {
		if _, err := zw.CreateHeader(&zip.FileHeader{Name: part.Name + "/", Method: zip.Store, Modified: modified}); err != nil {
			return &PackagingError{Entry: part.Name + "/", Err: err}
		}
		for i, frame := range part.Frames {
			if err := ctx.Err(); err != nil {
				return &PackagingError{Err: err}
			}
			name := part.Name + "/" + FrameName(i, frame.Format)
			if err := writeEntry(zw, name, frame.Data, modified); err != nil {
				return err
			}
		}
	}

	r.Report(100, "Finalizing archive...")
	if err := zw.Close(); err != nil {
		return &PackagingError{Err: err}
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: modified,
	})
	if err != nil {
		return &PackagingError{Entry: name, Err: err}
	}
	if _, err := fw.Write(data); err != nil {
		return &PackagingError{Entry: name, Err: err}
	}
	return nil
}
