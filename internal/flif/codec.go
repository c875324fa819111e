package flif

import (
	"fmt"
)

// model is the per-stream coding state shared by the decoder and the
// encoder: value ranges, MANIAC trees, interlaced predictor choices and the
// reconstructed planes. Every decision goes through a bitCoder, so both
// directions walk the exact same sequence of contexts.
type model struct {
	hdr    *Header
	maxZ   int
	stopZ  int
	ranges []propertyRange   // value range per plane
	props  [][]propertyRange // tree property ranges per plane
	trees  []*Tree
	planes [][]*plane // [frame][plane]

	// encoder only; -1 picks the cheapest predictor per plane and zoom level
	encoding  bool
	predictor int

	predCtx IntContexts
	scratch []int
}

func newModel(hdr *Header, stopZ int) *model {
	m := &model{hdr: hdr, predictor: -1}
	if hdr.Interlaced {
		m.maxZ = maxZoom(hdr.Width, hdr.Height)
		m.stopZ = clampInt(stopZ, 0, m.maxZ)
	}
	m.ranges = planeRanges(hdr)
	m.props = make([][]propertyRange, hdr.Planes)
	for p := range m.props {
		m.props[p] = m.propertyRanges(p)
	}
	m.trees = make([]*Tree, hdr.Planes)

	stepRow, stepCol := 1, 1
	if hdr.Interlaced {
		stepRow, stepCol = rowStep(m.stopZ), colStep(m.stopZ)
	}
	m.planes = make([][]*plane, hdr.Frames)
	for f := range m.planes {
		m.planes[f] = make([]*plane, hdr.Planes)
		for p := range m.planes[f] {
			m.planes[f][p] = newPlane(hdr.Width, hdr.Height, stepRow, stepCol)
		}
	}
	m.scratch = make([]int, 0, hdr.Planes+6)
	return m
}

// planeRanges returns the value range of every plane. With the colour
// transform the chroma planes are signed.
func planeRanges(hdr *Header) []propertyRange {
	r := make([]propertyRange, hdr.Planes)
	for p := range r {
		r[p] = propertyRange{0, 1<<uint(hdr.Depths[p]) - 1}
	}
	if hdr.YCoCg {
		r[1] = propertyRange{-r[1].hi, r[1].hi}
		r[2] = propertyRange{-r[2].hi, r[2].hi}
	}
	return r
}

// propertyRanges lists the range of each property the tree of plane p can
// test, in the order the property vector is built.
func (m *model) propertyRanges(p int) []propertyRange {
	out := append([]propertyRange(nil), m.ranges[:p]...)
	r := m.ranges[p]
	span := propertyRange{r.lo - r.hi, r.hi - r.lo}
	if m.hdr.Interlaced {
		return append(out, propertyRange{0, m.maxZ}, r, span, span, span, span)
	}
	return append(out, r, span, span, span, span, span)
}

// codeTrees codes one tree per plane. src holds the trees to write when
// encoding and is nil when decoding.
func (m *model) codeTrees(bc bitCoder, src []*Tree) error {
	for p := range m.trees {
		var s *Tree
		if src != nil {
			s = src[p]
		}
		t, err := codeTree(bc, m.props[p], s)
		if err != nil {
			return fmt.Errorf("tree for plane %d: %w", p, err)
		}
		m.trees[p] = t
	}
	return nil
}

// codePass codes the pixels belonging to one scheduled pass.
func (m *model) codePass(bc bitCoder, pass Pass) error {
	if !m.hdr.Interlaced {
		return m.codeFrame(bc, pass.Frame)
	}
	if pass.Zoom == m.maxZ {
		return m.codeFirstPixel(bc)
	}
	return m.codeZoom(bc, pass.Zoom)
}

func (m *model) codeValue(bc bitCoder, pl *plane, r, c, p, guess int, props []int) error {
	rg := m.ranges[p]
	ctx := m.trees[p].Lookup(props)
	res, err := codeInt(bc, ctx, rg.lo-guess, rg.hi-guess, pl.at(r, c)-guess)
	if err != nil {
		return err
	}
	pl.set(r, c, guess+res)
	return nil
}

// earlierPlanes starts a property vector with the values of the planes
// already coded at (r, c).
func (m *model) earlierPlanes(f, p, r, c int) []int {
	props := m.scratch[:0]
	for q := 0; q < p; q++ {
		props = append(props, m.planes[f][q].at(r, c))
	}
	return props
}

// codeFrame codes a whole frame in scanline order, planes interleaved per
// row.
func (m *model) codeFrame(bc bitCoder, f int) error {
	w, h := m.hdr.Width, m.hdr.Height
	for r := 0; r < h; r++ {
		for p, pl := range m.planes[f] {
			rg := m.ranges[p]
			mid := (rg.lo + rg.hi) >> 1
			for c := 0; c < w; c++ {
				n := newScanContext(pl, r, c, w, mid)
				guess := n.guess(rg.lo, rg.hi)
				props := n.appendProps(m.earlierPlanes(f, p, r, c), guess)
				if err := m.codeValue(bc, pl, r, c, p, guess, props); err != nil {
					return fmt.Errorf("frame %d plane %d at (%d,%d): %w", f, p, c, r, err)
				}
			}
		}
	}
	return nil
}

// codeFirstPixel codes the single pixel of the coarsest zoom level.
func (m *model) codeFirstPixel(bc bitCoder) error {
	for p := range m.ranges {
		rg := m.ranges[p]
		mid := (rg.lo + rg.hi) >> 1
		for f := range m.planes {
			props := append(m.earlierPlanes(f, p, 0, 0), m.maxZ, mid, 0, 0, 0, 0)
			if err := m.codeValue(bc, m.planes[f][p], 0, 0, p, mid, props); err != nil {
				return fmt.Errorf("frame %d plane %d first pixel: %w", f, p, err)
			}
		}
	}
	return nil
}

func (m *model) zoomContext(pl *plane, z, r, c int) zoomContext {
	w, h := m.hdr.Width, m.hdr.Height
	if z%2 == 0 {
		return rowPassContext(pl, r, c, rowStep(z), colStep(z), w, h)
	}
	return colPassContext(pl, r, c, rowStep(z), colStep(z), w, h)
}

// codeZoom codes the positions zoom level z adds, plane by plane and frame
// by frame within each plane. Each plane announces its predictor first.
func (m *model) codeZoom(bc bitCoder, z int) error {
	w, h := m.hdr.Width, m.hdr.Height
	for p := range m.ranges {
		rg := m.ranges[p]
		pred := 0
		if m.encoding {
			pred = m.choosePredictor(p, z)
		}
		pred, err := codeInt(bc, &m.predCtx, 0, numPredictors-1, pred)
		if err != nil {
			return fmt.Errorf("predictor for plane %d zoom %d: %w", p, z, err)
		}
		for f := range m.planes {
			pl := m.planes[f][p]
			err := forEachInZoom(z, w, h, func(r, c int) error {
				zc := m.zoomContext(pl, z, r, c)
				guess := clampInt(zc.preds[pred], rg.lo, rg.hi)
				props := zc.appendProps(m.earlierPlanes(f, p, r, c), z, guess)
				return m.codeValue(bc, pl, r, c, p, guess, props)
			})
			if err != nil {
				return fmt.Errorf("frame %d plane %d zoom %d: %w", f, p, z, err)
			}
		}
	}
	return nil
}

// choosePredictor picks the predictor with the smallest total absolute
// residual over the positions of zoom level z. Planes hold the true values
// while encoding.
func (m *model) choosePredictor(p, z int) int {
	if m.predictor >= 0 {
		return m.predictor
	}
	w, h := m.hdr.Width, m.hdr.Height
	rg := m.ranges[p]
	var cost [numPredictors]int64
	for f := range m.planes {
		pl := m.planes[f][p]
		_ = forEachInZoom(z, w, h, func(r, c int) error {
			zc := m.zoomContext(pl, z, r, c)
			v := pl.at(r, c)
			for k := range cost {
				d := v - clampInt(zc.preds[k], rg.lo, rg.hi)
				if d < 0 {
					d = -d
				}
				cost[k] += int64(d)
			}
			return nil
		})
	}
	best := 0
	for k := 1; k < numPredictors; k++ {
		if cost[k] < cost[best] {
			best = k
		}
	}
	return best
}
