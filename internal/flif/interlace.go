package flif

import "math/bits"

// rowStep is the distance between decoded rows once zoom level z is complete.
func rowStep(z int) int { return 1 << uint((z+1)/2) }

// colStep is the distance between decoded columns once zoom level z is
// complete.
func colStep(z int) int { return 1 << uint(z/2) }

// maxZoom returns the coarsest zoom level, at which a single pixel covers
// the whole frame.
func maxZoom(width, height int) int {
	z := 0
	for rowStep(z) < height || colStep(z) < width {
		z++
	}
	return z
}

// pixelsAt returns how many pixel positions per frame are known once zoom
// level z is complete.
func pixelsAt(z, width, height int) int {
	return ceilDiv(height, rowStep(z)) * ceilDiv(width, colStep(z))
}

// forEachInZoom visits the positions added by zoom level z below the
// coarsest one. Even levels add the odd rows of the row grid, odd levels
// add the odd columns of the column grid.
func forEachInZoom(z, width, height int, fn func(r, c int) error) error {
	rs, cs := rowStep(z), colStep(z)
	if z%2 == 0 {
		for r := rs; r < height; r += 2 * rs {
			for c := 0; c < width; c += cs {
				if err := fn(r, c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for r := 0; r < height; r += rs {
		for c := cs; c < width; c += 2 * cs {
			if err := fn(r, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// zoomForScale returns the finest zoom level needed to produce output
// downscaled by scale, a power of two.
func zoomForScale(scale, maxZ int) int {
	k := bits.TrailingZeros(uint(scale))
	if 2*k > maxZ {
		return maxZ
	}
	return 2 * k
}

// resizeScale picks the largest power-of-two scale whose output still covers
// width x height. A zero target dimension is unconstrained.
func resizeScale(imgWidth, imgHeight, width, height int) int {
	if width <= 0 && height <= 0 {
		return 1
	}
	limit := imgWidth
	if imgHeight > limit {
		limit = imgHeight
	}
	s := 1
	for n := 2; n/2 < limit; n *= 2 {
		if width > 0 && ceilDiv(imgWidth, n) < width {
			break
		}
		if height > 0 && ceilDiv(imgHeight, n) < height {
			break
		}
		s = n
	}
	return s
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// Pass identifies one unit of scheduled decode work.
type Pass struct {
	Index      int
	Zoom       int // interlaced streams only
	Frame      int // non-interlaced streams only
	Checkpoint int32
	Pixels     int // pixel positions known per frame after this pass
}

// Scheduler orders the passes of a stream. Interlaced streams run from the
// coarsest zoom level down to the level required by the scale cap; other
// streams run one pass per frame.
type Scheduler struct {
	interlaced bool
	width      int
	height     int
	frames     int
	maxZ       int
	stopZ      int
	next       int
	issued     int
}

// NewScheduler returns a scheduler for the stream described by hdr that
// stops at zoom level stopZ. stopZ is ignored for non-interlaced streams.
func NewScheduler(hdr *Header, stopZ int) *Scheduler {
	s := &Scheduler{
		interlaced: hdr.Interlaced,
		width:      hdr.Width,
		height:     hdr.Height,
		frames:     hdr.Frames,
	}
	if s.interlaced {
		s.maxZ = maxZoom(hdr.Width, hdr.Height)
		s.stopZ = clampInt(stopZ, 0, s.maxZ)
		s.next = s.maxZ
	}
	return s
}

// More reports whether passes remain.
func (s *Scheduler) More() bool {
	if s.interlaced {
		return s.next >= s.stopZ
	}
	return s.next < s.frames
}

// Next returns the next pass and advances. It must only be called while
// More reports true.
func (s *Scheduler) Next() Pass {
	p := Pass{Index: s.issued}
	s.issued++
	if s.interlaced {
		p.Zoom = s.next
		p.Pixels = pixelsAt(p.Zoom, s.width, s.height)
		p.Checkpoint = int32(int64(10000) * int64(p.Pixels) / (int64(s.width) * int64(s.height)))
		s.next--
		return p
	}
	p.Frame = s.next
	p.Pixels = s.width * s.height
	p.Checkpoint = int32(int64(10000) * int64(p.Frame+1) / int64(s.frames))
	s.next++
	return p
}

// Total returns the number of passes the scheduler issues when run to the
// end.
func (s *Scheduler) Total() int {
	if s.interlaced {
		return s.maxZ - s.stopZ + 1
	}
	return s.frames
}

// Issued returns the number of passes handed out so far.
func (s *Scheduler) Issued() int { return s.issued }

// MaxZoom returns the coarsest zoom level, or 0 for non-interlaced streams.
func (s *Scheduler) MaxZoom() int { return s.maxZ }

// StopZoom returns the finest zoom level the scheduler will reach.
func (s *Scheduler) StopZoom() int { return s.stopZ }
