package media

import (
	"context"
	"image"
	"sort"
	"sync"
)

// compositor renders frame i of a decoded animation onto its canvas. Frames
// are drawn in order, so rendering an index below the last one starts over
// from the first frame. The returned image is not modified afterwards.
type compositor interface {
	Render(i int) (image.Image, error)
}

// timeline is the decoded form of an animated image: a compositor, the start
// of every frame in seconds and the total length.
type timeline struct {
	comp     compositor
	starts   []float64
	duration float64
}

// timelinePlayer plays an in-process animation. Loading runs in the
// background; frames are composited on demand in Seek, so only the current
// canvas is held in memory.
type timelinePlayer struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	wg     sync.WaitGroup

	mu      sync.Mutex
	tl      *timeline
	current image.Image
	closed  bool
}

// startTimeline returns a player whose metadata is produced by load.
func startTimeline(ctx context.Context, load func(context.Context) (*timeline, error)) *timelinePlayer {
	pctx, cancel := context.WithCancel(ctx)
	pl := &timelinePlayer{
		ctx:    pctx,
		cancel: cancel,
		events: make(chan Event, 1),
	}

	pl.wg.Add(1)
	go func() {
		defer pl.wg.Done()
		tl, err := load(pctx)
		if err != nil {
			pl.emit(Event{Kind: EventError, Err: err})
			return
		}

		pl.mu.Lock()
		pl.tl = tl
		pl.mu.Unlock()

		pl.emit(Event{Kind: EventMetadata, Duration: tl.duration})
	}()

	return pl
}

func (pl *timelinePlayer) Events() <-chan Event {
	return pl.events
}

func (pl *timelinePlayer) Seek(position float64) {
	pl.mu.Lock()
	if pl.closed {
		pl.mu.Unlock()
		return
	}
	if pl.tl == nil || len(pl.tl.starts) == 0 {
		pl.mu.Unlock()
		pl.signal(Event{Kind: EventError, Err: ErrNoFrame})
		return
	}

	img, err := pl.tl.comp.Render(frameAt(pl.tl.starts, position))
	if err != nil {
		pl.mu.Unlock()
		pl.signal(Event{Kind: EventError, Err: err})
		return
	}
	pl.current = img
	pl.mu.Unlock()

	pl.signal(Event{Kind: EventSeeked, Position: position})
}

// frameAt returns the last frame whose start is at or before position.
func frameAt(starts []float64, position float64) int {
	idx := sort.SearchFloat64s(starts, position)
	if idx == len(starts) || starts[idx] > position {
		idx--
	}
	return max(idx, 0)
}

// signal emits from a tracked goroutine so Seek never blocks its caller.
func (pl *timelinePlayer) signal(ev Event) {
	pl.mu.Lock()
	if pl.closed {
		pl.mu.Unlock()
		return
	}
	pl.wg.Add(1)
	pl.mu.Unlock()

	go func() {
		defer pl.wg.Done()
		pl.emit(ev)
	}()
}

func (pl *timelinePlayer) Frame() (image.Image, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.closed {
		return nil, ErrPlayerClosed
	}
	if pl.current == nil {
		return nil, ErrNoFrame
	}
	return pl.current, nil
}

func (pl *timelinePlayer) Close() error {
	pl.mu.Lock()
	if pl.closed {
		pl.mu.Unlock()
		return nil
	}
	pl.closed = true
	pl.tl = nil
	pl.current = nil
	pl.mu.Unlock()

	pl.cancel()
	pl.wg.Wait()
	close(pl.events)
	return nil
}

func (pl *timelinePlayer) emit(ev Event) {
	select {
	case pl.events <- ev:
	case <-pl.ctx.Done():
	}
}
