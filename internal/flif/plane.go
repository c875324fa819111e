package flif

import "math/bits"

// plane holds the reconstructed values of one channel of one frame. When a
// decode stops at a coarse zoom level only every stepRow-th row and
// stepCol-th column is ever written, so storage is allocated at that grid.
type plane struct {
	rows, cols int
	rowShift   uint
	colShift   uint
	data       []int32
}

// newPlane allocates a plane for a width x height frame sampled every
// stepRow rows and stepCol columns. Both steps must be powers of two.
func newPlane(width, height, stepRow, stepCol int) *plane {
	rs := uint(bits.TrailingZeros(uint(stepRow)))
	cs := uint(bits.TrailingZeros(uint(stepCol)))
	rows := ceilDiv(height, stepRow)
	cols := ceilDiv(width, stepCol)
	return &plane{
		rows:     rows,
		cols:     cols,
		rowShift: rs,
		colShift: cs,
		data:     make([]int32, rows*cols),
	}
}

func (p *plane) at(r, c int) int {
	return int(p.data[(r>>p.rowShift)*p.cols+(c>>p.colShift)])
}

func (p *plane) set(r, c, v int) {
	p.data[(r>>p.rowShift)*p.cols+(c>>p.colShift)] = int32(v)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
