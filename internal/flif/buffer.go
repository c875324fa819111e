package flif

import (
	"fmt"
	"sync/atomic"
)

// FrameBuffer publishes frame snapshots to readers. Every publish swaps in a
// new immutable set, so a reader holding a *Frame never sees it change.
type FrameBuffer struct {
	set   atomic.Pointer[[]*Frame]
	loops atomic.Int32
}

// Count returns the number of frames published so far.
func (fb *FrameBuffer) Count() int {
	s := fb.set.Load()
	if s == nil {
		return 0
	}
	return len(*s)
}

// Frame returns the latest snapshot of frame i.
func (fb *FrameBuffer) Frame(i int) (*Frame, error) {
	s := fb.set.Load()
	if s == nil || i < 0 || i >= len(*s) {
		return nil, fmt.Errorf("%w: frame %d of %d", ErrIndexOutOfRange, i, fb.Count())
	}
	return (*s)[i], nil
}

// Frames returns the latest published set. The slice must not be modified.
func (fb *FrameBuffer) Frames() []*Frame {
	s := fb.set.Load()
	if s == nil {
		return nil
	}
	return *s
}

// Loops returns the animation loop count, 0 meaning forever.
func (fb *FrameBuffer) Loops() int { return int(fb.loops.Load()) }

func (fb *FrameBuffer) setLoops(loops int) {
	fb.loops.Store(int32(loops))
}

// publish replaces the visible set with frames. The caller hands over
// ownership of the slice.
func (fb *FrameBuffer) publish(frames []*Frame) {
	fb.set.Store(&frames)
}

// finalize republishes the current set with the Final flag set to final.
// Pixel buffers are shared with the previous snapshots.
func (fb *FrameBuffer) finalize(final bool) {
	cur := fb.Frames()
	if cur == nil {
		return
	}
	next := make([]*Frame, len(cur))
	for i, fr := range cur {
		cp := *fr
		cp.Final = final
		next[i] = &cp
	}
	fb.publish(next)
}
