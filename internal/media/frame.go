package media

// Format tags the encoding of a Frame buffer.
type Format string

// FormatJPEG is the lossy format written into boot animation archives.
const FormatJPEG Format = "jpeg"

// Ext returns the file extension used for frames of this format.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	default:
		return string(f)
	}
}

// Frame is one encoded, letterboxed still. Frames are never mutated after
// the Resizer creates them.
type Frame struct {
	// Data is the encoded image buffer.
	Data []byte
	// Format is the encoding of Data.
	Format Format
	// Width and Height are the pixel dimensions of the encoded image.
	Width  int
	Height int
}

// Size returns the length of the encoded buffer in bytes.
func (f Frame) Size() int {
	return len(f.Data)
}
