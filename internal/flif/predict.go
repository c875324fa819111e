package flif

func median3(a, b, c int) int {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// scanContext is the causal neighbourhood of a pixel in scanline order.
// Missing neighbours are replaced by the nearest available one.
type scanContext struct {
	left, top, topLeft, topRight, topTop, leftLeft int
}

func newScanContext(p *plane, r, c, width, mid int) scanContext {
	var n scanContext
	switch {
	case c > 0:
		n.left = p.at(r, c-1)
	case r > 0:
		n.left = p.at(r-1, c)
	default:
		n.left = mid
	}
	n.top = n.left
	if r > 0 {
		n.top = p.at(r-1, c)
	}
	n.topLeft = n.top
	if r > 0 && c > 0 {
		n.topLeft = p.at(r-1, c-1)
	}
	n.topRight = n.top
	if r > 0 && c+1 < width {
		n.topRight = p.at(r-1, c+1)
	}
	n.topTop = n.top
	if r > 1 {
		n.topTop = p.at(r-2, c)
	}
	n.leftLeft = n.left
	if c > 1 {
		n.leftLeft = p.at(r, c-2)
	}
	return n
}

// guess is the median of left, top and the planar gradient.
func (n scanContext) guess(lo, hi int) int {
	return clampInt(median3(n.left, n.top, n.left+n.top-n.topLeft), lo, hi)
}

// appendProps adds the scanline properties after the earlier-plane values.
func (n scanContext) appendProps(dst []int, guess int) []int {
	return append(dst,
		guess,
		n.left-n.topLeft,
		n.topLeft-n.top,
		n.top-n.topRight,
		n.topTop-n.top,
		n.leftLeft-n.left,
	)
}

// numPredictors is the number of interlaced predictors a stream can select.
const numPredictors = 3

// zoomContext holds the candidate predictions and local gradients of a
// pixel being added by an interlaced pass.
type zoomContext struct {
	preds [numPredictors]int
	grad  [4]int
}

// rowPassContext gathers the neighbourhood of (r, c) in a pass that adds
// rows: the rows rs above and below are complete, the current row is
// complete to the left.
func rowPassContext(p *plane, r, c, rs, cs, width, height int) zoomContext {
	top := p.at(r-rs, c)
	bottom := top
	if r+rs < height {
		bottom = p.at(r+rs, c)
	}
	left, topLeft := top, top
	if c >= cs {
		left = p.at(r, c-cs)
		topLeft = p.at(r-rs, c-cs)
	}
	topRight := top
	if c+cs < width {
		topRight = p.at(r-rs, c+cs)
	}
	bottomLeft := left
	if c >= cs && r+rs < height {
		bottomLeft = p.at(r+rs, c-cs)
	}

	avg := (top + bottom) >> 1
	return zoomContext{
		preds: [numPredictors]int{
			avg,
			median3(avg, top+left-topLeft, left+bottom-bottomLeft),
			median3(top, bottom, left),
		},
		grad: [4]int{
			top - bottom,
			left - ((topLeft + bottomLeft) >> 1),
			top - topLeft,
			top - topRight,
		},
	}
}

// colPassContext is the transposed counterpart of rowPassContext for passes
// that add columns.
func colPassContext(p *plane, r, c, rs, cs, width, height int) zoomContext {
	left := p.at(r, c-cs)
	right := left
	if c+cs < width {
		right = p.at(r, c+cs)
	}
	top, topLeft := left, left
	if r >= rs {
		top = p.at(r-rs, c)
		topLeft = p.at(r-rs, c-cs)
	}
	topRight := top
	if r >= rs && c+cs < width {
		topRight = p.at(r-rs, c+cs)
	}
	bottomLeft := left
	if r+rs < height {
		bottomLeft = p.at(r+rs, c-cs)
	}

	avg := (left + right) >> 1
	return zoomContext{
		preds: [numPredictors]int{
			avg,
			median3(avg, left+top-topLeft, top+right-topRight),
			median3(left, right, top),
		},
		grad: [4]int{
			left - right,
			top - ((topLeft + topRight) >> 1),
			left - topLeft,
			left - bottomLeft,
		},
	}
}

func (z zoomContext) appendProps(dst []int, zoom, guess int) []int {
	return append(dst, zoom, guess, z.grad[0], z.grad[1], z.grad[2], z.grad[3])
}
