package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/bootanimation-api/internal/media"
	"github.com/maauso/bootanimation-api/internal/media/webptest"
	"github.com/maauso/bootanimation-api/internal/metrics"
	"github.com/maauso/bootanimation-api/internal/source"
)

// fakePlayer signals synchronously through a buffered channel.
type fakePlayer struct {
	mu     sync.Mutex
	events chan media.Event
	seeks  []float64
	closed bool

	// withholdAt is the seek index that never confirms; -1 disables.
	withholdAt int
	// seekErrAt is the seek index that signals an error; -1 disables.
	seekErrAt int
	frameErr  error
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan media.Event, 8), withholdAt: -1, seekErrAt: -1}
}

func (p *fakePlayer) Events() <-chan media.Event { return p.events }

func (p *fakePlayer) Seek(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.seeks)
	p.seeks = append(p.seeks, position)
	switch i {
	case p.withholdAt:
	case p.seekErrAt:
		p.events <- media.Event{Kind: media.EventError, Err: errors.New("decode error")}
	default:
		p.events <- media.Event{Kind: media.EventSeeked, Position: position}
	}
}

func (p *fakePlayer) Frame() (image.Image, error) {
	if p.frameErr != nil {
		return nil, p.frameErr
	}
	return image.NewRGBA(image.Rect(0, 0, 32, 24)), nil
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeDecoder struct {
	player  *fakePlayer
	openErr error
	opened  string
}

func (d *fakeDecoder) Open(_ context.Context, path, _ string) (media.Player, error) {
	d.opened = path
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.player, nil
}

func withMetadata(p *fakePlayer, duration float64) *fakePlayer {
	p.events <- media.Event{Kind: media.EventMetadata, Duration: duration}
	return p
}

var clip = source.File{Name: "clip.mp4", Path: "/in/clip.mp4", ContentType: "video/mp4", Kind: source.KindVideo}

func TestVideoExtractor_FrameCount(t *testing.T) {
	player := withMetadata(newFakePlayer(), 3.2)
	rec := &recorder{}
	e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

	frames, err := e.Extract(context.Background(), clip, smallTarget, rec)
	require.NoError(t, err)

	assert.Len(t, frames, 32)
	require.Len(t, player.seeks, 32)
	for i, pos := range player.seeks {
		assert.InDelta(t, float64(i)/10, pos, 1e-9)
	}
	for _, f := range frames {
		assert.Equal(t, 16, f.Width)
		assert.Equal(t, 9, f.Height)
	}

	require.Len(t, rec.reports, 32)
	assert.Equal(t, report{100, "Extracting frame 32/32"}, rec.reports[31])
	assert.InDelta(t, 100.0/32, rec.reports[0].percent, 1e-9)
	assert.True(t, player.isClosed())
}

func TestVideoExtractor_AnimatedWebP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spin.webp")
	require.NoError(t, os.WriteFile(path, webptest.Animated(8, 8,
		webptest.Frame{Color: color.NRGBA{R: 255, A: 255}, DurationMS: 500},
		webptest.Frame{Color: color.NRGBA{B: 255, A: 255}, DurationMS: 500},
	), 0600))
	spin := source.File{Name: "spin.webp", Path: path, ContentType: "image/webp", Kind: source.KindAnimatedImage}

	router := &media.Router{
		WebP:    media.WebPDecoder{},
		Default: &fakeDecoder{openErr: errors.New("no ffmpeg for animated webp")},
	}
	e := NewVideoExtractor(router, newResizer(t))

	frames, err := e.Extract(context.Background(), spin, Target{Width: 8, Height: 8, FPS: 4, Quality: 1}, nil)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	centre := func(f media.Frame) (uint32, uint32) {
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		require.NoError(t, err)
		r, _, b, _ := img.At(4, 4).RGBA()
		return r >> 8, b >> 8
	}
	r, b := centre(frames[0])
	assert.Greater(t, r, b, "first frame should be red")
	r, b = centre(frames[3])
	assert.Greater(t, b, r, "last frame should be blue")
}

func TestVideoExtractor_ZeroLength(t *testing.T) {
	for _, d := range []float64{0, 0.05} { // 0.05s at 10fps floors to 0 frames
		player := withMetadata(newFakePlayer(), d)
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

		frames, err := e.Extract(context.Background(), clip, smallTarget, nil)
		require.NoError(t, err)
		assert.Empty(t, frames)
		assert.Empty(t, player.seeks)
		assert.True(t, player.isClosed())
	}
}

func TestVideoExtractor_UnknownDuration(t *testing.T) {
	for _, d := range []float64{math.NaN(), math.Inf(1), -1} {
		player := withMetadata(newFakePlayer(), d)
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

		_, err := e.Extract(context.Background(), clip, smallTarget, nil)

		var udErr *UnknownDurationError
		require.ErrorAs(t, err, &udErr)
		assert.ErrorIs(t, err, ErrUnknownDuration)
		assert.Equal(t, "clip.mp4", udErr.Name)
		assert.True(t, player.isClosed())
	}
}

func TestVideoExtractor_LoadErrors(t *testing.T) {
	t.Run("decoder error event", func(t *testing.T) {
		player := newFakePlayer()
		corrupt := errors.New("moov atom not found")
		player.events <- media.Event{Kind: media.EventError, Err: corrupt}
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

		_, err := e.Extract(context.Background(), clip, smallTarget, nil)

		assert.ErrorIs(t, err, ErrMediaLoad)
		assert.ErrorIs(t, err, corrupt)
		assert.True(t, player.isClosed())
	})

	t.Run("open fails", func(t *testing.T) {
		e := NewVideoExtractor(&fakeDecoder{openErr: errors.New("no such file")}, newResizer(t))

		_, err := e.Extract(context.Background(), clip, smallTarget, nil)

		var mlErr *MediaLoadError
		require.ErrorAs(t, err, &mlErr)
		assert.Equal(t, "clip.mp4", mlErr.Name)
	})

	t.Run("metadata never arrives", func(t *testing.T) {
		player := newFakePlayer()
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t),
			WithMetadataTimeout(50*time.Millisecond))

		_, err := e.Extract(context.Background(), clip, smallTarget, nil)

		assert.ErrorIs(t, err, ErrMediaLoad)
		assert.ErrorIs(t, err, ErrMetadataTimeout)
		assert.True(t, player.isClosed())
	})

	t.Run("seeked before metadata is ignored", func(t *testing.T) {
		player := newFakePlayer()
		player.events <- media.Event{Kind: media.EventSeeked}
		withMetadata(player, 0.2)
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

		frames, err := e.Extract(context.Background(), clip, smallTarget, nil)
		require.NoError(t, err)
		assert.Len(t, frames, 2)
	})
}

func TestVideoExtractor_SeekTimeout(t *testing.T) {
	player := withMetadata(newFakePlayer(), 1.0)
	player.withholdAt = 3
	bound := 100 * time.Millisecond
	e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t), WithSeekTimeout(bound))

	before := testutil.ToFloat64(metrics.SeekTimeoutsTotal)
	start := time.Now()
	frames, err := e.Extract(context.Background(), clip, smallTarget, nil)
	elapsed := time.Since(start)

	assert.Nil(t, frames, "no partial sequence")
	var stErr *SeekTimeoutError
	require.ErrorAs(t, err, &stErr)
	assert.ErrorIs(t, err, ErrSeekTimeout)
	assert.Equal(t, 3, stErr.FrameIndex)
	assert.InDelta(t, 0.3, stErr.Position, 1e-9)
	assert.GreaterOrEqual(t, elapsed, bound)
	assert.Less(t, elapsed, 2*time.Second, "must fail within the bound, not hang")
	assert.Len(t, player.seeks, 4, "no seeks after the timed-out frame")
	assert.True(t, player.isClosed())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SeekTimeoutsTotal))
}

func TestVideoExtractor_CaptureErrors(t *testing.T) {
	t.Run("decoder error while seeking", func(t *testing.T) {
		player := withMetadata(newFakePlayer(), 1.0)
		player.seekErrAt = 5
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

		_, err := e.Extract(context.Background(), clip, smallTarget, nil)

		var fcErr *FrameCaptureError
		require.ErrorAs(t, err, &fcErr)
		assert.ErrorIs(t, err, ErrFrameCapture)
		assert.Equal(t, 5, fcErr.FrameIndex)
		assert.True(t, player.isClosed())
	})

	t.Run("no frame after seek", func(t *testing.T) {
		player := withMetadata(newFakePlayer(), 1.0)
		player.frameErr = media.ErrNoFrame
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

		_, err := e.Extract(context.Background(), clip, smallTarget, nil)

		assert.ErrorIs(t, err, ErrFrameCapture)
		assert.ErrorIs(t, err, media.ErrNoFrame)
	})

	t.Run("player closed underneath", func(t *testing.T) {
		player := withMetadata(newFakePlayer(), 1.0)
		player.withholdAt = 0
		close(player.events)
		e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t))

		_, err := e.Extract(context.Background(), clip, smallTarget, nil)

		assert.ErrorIs(t, err, media.ErrPlayerClosed)
	})
}

func TestVideoExtractor_Cancellation(t *testing.T) {
	player := withMetadata(newFakePlayer(), 10)
	player.withholdAt = 2
	ctx, cancel := context.WithCancel(context.Background())
	e := NewVideoExtractor(&fakeDecoder{player: player}, newResizer(t), WithSeekTimeout(time.Minute))

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := e.Extract(ctx, clip, smallTarget, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, player.isClosed())
}

func TestVideoExtractor_InvalidFPS(t *testing.T) {
	dec := &fakeDecoder{player: newFakePlayer()}
	e := NewVideoExtractor(dec, newResizer(t))

	_, err := e.Extract(context.Background(), clip, Target{Width: 16, Height: 9, FPS: 0, Quality: 0.5}, nil)

	require.Error(t, err)
	assert.Empty(t, dec.opened, "decoder must not be opened")
}

func TestVideoState_String(t *testing.T) {
	assert.Equal(t, "loading", stateLoading.String())
	assert.Equal(t, "seeking", stateSeeking.String())
	assert.Equal(t, "failed", stateFailed.String())
}
