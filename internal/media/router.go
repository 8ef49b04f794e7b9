package media

import "context"

// Compile-time check that Router implements VideoDecoder.
var _ VideoDecoder = (*Router)(nil)

// Router dispatches animated GIF and WebP files to dedicated decoders and
// every other timed source to Default.
type Router struct {
	// GIF handles image/gif when set.
	GIF VideoDecoder
	// WebP handles image/webp when set.
	WebP VideoDecoder
	// Default handles everything else (ffmpeg).
	Default VideoDecoder
}

// Open implements VideoDecoder.
func (r *Router) Open(ctx context.Context, path, contentType string) (Player, error) {
	switch {
	case contentType == "image/gif" && r.GIF != nil:
		return r.GIF.Open(ctx, path, contentType)
	case contentType == "image/webp" && r.WebP != nil:
		return r.WebP.Open(ctx, path, contentType)
	}
	return r.Default.Open(ctx, path, contentType)
}
