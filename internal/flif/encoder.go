package flif

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
)

// Raster is uncompressed input for Encode. Samples are interleaved per
// pixel, Planes per pixel, and must fit the depth of their plane.
type Raster struct {
	Width  int
	Height int
	Planes int
	Depths []int
	Frames [][]uint16
	// Delays are per-frame display times in milliseconds.
	Delays []int
}

// EncodeOptions controls the stream layout Encode produces.
type EncodeOptions struct {
	Interlaced bool
	YCoCg      bool
	CRC        bool
	Loops      int
	// TreeDepth is the depth of the per-plane decision tree.
	TreeDepth int
	// Predictor forces one interlaced predictor; -1 picks per plane and
	// zoom level.
	Predictor int
	Chunks    []Chunk
}

// DefaultEncodeOptions returns interlaced output with the colour transform
// and automatic predictor selection.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Interlaced: true, YCoCg: true, TreeDepth: 6, Predictor: -1}
}

const maxTreeDepth = 14

func (r *Raster) validate() error {
	if r.Width < 1 || r.Height < 1 || r.Width > maxDimension || r.Height > maxDimension {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOption, r.Width, r.Height)
	}
	if r.Planes != 1 && r.Planes != 3 && r.Planes != 4 {
		return fmt.Errorf("%w: %d planes", ErrInvalidOption, r.Planes)
	}
	if len(r.Depths) != r.Planes {
		return fmt.Errorf("%w: %d depths for %d planes", ErrInvalidOption, len(r.Depths), r.Planes)
	}
	for _, d := range r.Depths {
		if d < 1 || d > 16 {
			return fmt.Errorf("%w: depth %d", ErrInvalidOption, d)
		}
	}
	if len(r.Frames) < 1 || len(r.Frames) > maxFrames {
		return fmt.Errorf("%w: %d frames", ErrInvalidOption, len(r.Frames))
	}
	n := r.Width * r.Height * r.Planes
	for f, px := range r.Frames {
		if len(px) != n {
			return fmt.Errorf("%w: frame %d has %d samples, want %d", ErrInvalidOption, f, len(px), n)
		}
		for i, v := range px {
			if int(v) >= 1<<uint(r.Depths[i%r.Planes]) {
				return fmt.Errorf("%w: frame %d sample %d exceeds depth", ErrInvalidOption, f, i)
			}
		}
	}
	if len(r.Delays) != 0 && len(r.Delays) != len(r.Frames) {
		return fmt.Errorf("%w: %d delays for %d frames", ErrInvalidOption, len(r.Delays), len(r.Frames))
	}
	for _, v := range r.Delays {
		if v < 0 || v > maxDelay {
			return fmt.Errorf("%w: delay %d", ErrInvalidOption, v)
		}
	}
	return nil
}

// Encode compresses r into a complete stream.
func Encode(r *Raster, opts EncodeOptions) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if opts.Loops < 0 || opts.Loops > maxLoops {
		return nil, fmt.Errorf("%w: loops %d", ErrInvalidOption, opts.Loops)
	}
	if opts.Predictor >= numPredictors {
		return nil, fmt.Errorf("%w: predictor %d", ErrInvalidOption, opts.Predictor)
	}
	depth := clampInt(opts.TreeDepth, 0, maxTreeDepth)

	hdr := &Header{
		Width:      r.Width,
		Height:     r.Height,
		Planes:     r.Planes,
		Frames:     len(r.Frames),
		Interlaced: opts.Interlaced,
		Animated:   len(r.Frames) > 1,
		Depths:     append([]int(nil), r.Depths...),
		HasCRC:     opts.CRC,
	}
	hdr.BytesPerChannel = bytesPerChannel(r.Depths)
	if opts.YCoCg && r.Planes >= 3 && r.Depths[0] == r.Depths[1] && r.Depths[0] == r.Depths[2] {
		hdr.YCoCg = true
	}
	if hdr.Animated {
		hdr.Loops = opts.Loops
		hdr.Delays = make([]int, hdr.Frames)
		copy(hdr.Delays, r.Delays)
	}

	enc := NewArithEncoder()
	var headerCtx IntContexts
	if err := codeSecondHeader(enc, &headerCtx, hdr); err != nil {
		return nil, err
	}

	m := newModel(hdr, 0)
	m.encoding = true
	if opts.Predictor >= 0 {
		m.predictor = opts.Predictor
	}
	m.load(r)

	trees := make([]*Tree, hdr.Planes)
	for p := range trees {
		trees[p] = buildTree(m.props[p], splitOrder(hdr, p), depth)
	}
	if err := m.codeTrees(enc, trees); err != nil {
		return nil, err
	}

	sched := NewScheduler(hdr, 0)
	for sched.More() {
		if err := m.codePass(enc, sched.Next()); err != nil {
			return nil, err
		}
	}

	payload := enc.Finish()
	out := make([]byte, 0, len(payload)+64)
	return appendContainer(out, hdr, opts.Chunks, payload, crc32.ChecksumIEEE(payload)), nil
}

func bytesPerChannel(depths []int) int {
	uniform := depths[0]
	for _, d := range depths {
		if d != uniform {
			return 0
		}
	}
	switch uniform {
	case 8:
		return 1
	case 16:
		return 2
	}
	return 0
}

// splitOrder lists the properties the generated tree of plane p cycles
// through: the guess first, then the gradients, then earlier planes.
func splitOrder(hdr *Header, p int) []int {
	var order []int
	if hdr.Interlaced {
		// zoom, guess, four gradients
		order = []int{p + 1, p + 2, p + 3, p + 0}
	} else {
		// guess, five gradients
		order = []int{p, p + 1, p + 2, p + 3}
	}
	for q := 0; q < p; q++ {
		order = append(order, q)
	}
	return order
}

// load copies the raster into the model planes, applying the colour
// transform.
func (m *model) load(r *Raster) {
	sample := make([]int, r.Planes)
	for f, px := range r.Frames {
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				i := (y*r.Width + x) * r.Planes
				for p := range sample {
					sample[p] = int(px[i+p])
				}
				if m.hdr.YCoCg {
					fromRGB(sample)
				}
				for p, v := range sample {
					m.planes[f][p].set(y, x, v)
				}
			}
		}
	}
}

// FromImage converts img into a single-frame raster. Gray images keep one
// plane, opaque images three and translucent images four. 16-bit sources
// keep 16-bit depth.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	r := &Raster{Width: b.Dx(), Height: b.Dy()}
	wide := false
	switch img.(type) {
	case *image.Gray16, *image.NRGBA64, *image.RGBA64:
		wide = true
	}
	depth := 8
	if wide {
		depth = 16
	}

	switch img.(type) {
	case *image.Gray, *image.Gray16:
		r.Planes = 1
	default:
		r.Planes = 3
		if !opaque(img) {
			r.Planes = 4
		}
	}
	r.Depths = make([]int, r.Planes)
	for i := range r.Depths {
		r.Depths[i] = depth
	}

	px := make([]uint16, 0, r.Width*r.Height*r.Planes)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			vals := samplesAt(img, x, y)
			for p := 0; p < r.Planes; p++ {
				v := vals[p]
				if !wide {
					v >>= 8
				}
				px = append(px, v)
			}
		}
	}
	r.Frames = [][]uint16{px}
	return r
}

// samplesAt returns the 16-bit non-premultiplied samples of a pixel. Gray
// images report the value in the first sample.
func samplesAt(img image.Image, x, y int) [4]uint16 {
	switch src := img.(type) {
	case *image.Gray:
		v := uint16(src.GrayAt(x, y).Y)
		return [4]uint16{v<<8 | v}
	case *image.Gray16:
		return [4]uint16{src.Gray16At(x, y).Y}
	case *image.NRGBA:
		c := src.NRGBAAt(x, y)
		return [4]uint16{uint16(c.R) * 0x101, uint16(c.G) * 0x101, uint16(c.B) * 0x101, uint16(c.A) * 0x101}
	case *image.NRGBA64:
		c := src.NRGBA64At(x, y)
		return [4]uint16{c.R, c.G, c.B, c.A}
	}
	c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
	return [4]uint16{c.R, c.G, c.B, c.A}
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
