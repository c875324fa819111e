package flif

import (
	"fmt"
	"image"
	"image/color"
)

// PixelFormat is the sample layout of a Frame's Pix buffer. 16-bit samples
// are stored big-endian.
type PixelFormat int

const (
	Gray8 PixelFormat = iota
	Gray16
	RGB8
	RGBA8
	RGB16
	RGBA16
)

func (f PixelFormat) String() string {
	switch f {
	case Gray8:
		return "Gray8"
	case Gray16:
		return "Gray16"
	case RGB8:
		return "RGB8"
	case RGBA8:
		return "RGBA8"
	case RGB16:
		return "RGB16"
	case RGBA16:
		return "RGBA16"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// Channels returns the number of samples per pixel.
func (f PixelFormat) Channels() int {
	switch f {
	case Gray8, Gray16:
		return 1
	case RGB8, RGB16:
		return 3
	}
	return 4
}

// BytesPerSample returns 1 or 2.
func (f PixelFormat) BytesPerSample() int {
	switch f {
	case Gray16, RGB16, RGBA16:
		return 2
	}
	return 1
}

// ColorModel returns the model of the images Frame.Image produces.
func (f PixelFormat) ColorModel() color.Model {
	switch f {
	case Gray8:
		return color.GrayModel
	case Gray16:
		return color.Gray16Model
	case RGB8, RGBA8:
		return color.NRGBAModel
	}
	return color.NRGBA64Model
}

func formatFor(planes, depth int) PixelFormat {
	wide := depth > 8
	switch planes {
	case 1:
		if wide {
			return Gray16
		}
		return Gray8
	case 3:
		if wide {
			return RGB16
		}
		return RGB8
	}
	if wide {
		return RGBA16
	}
	return RGBA8
}

// Frame is a published snapshot of one image. Its buffer is never written
// after publication.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
	Stride int

	// Delay is the display time in milliseconds for animation frames.
	Delay int
	// Quality is the checkpoint (0-10000) the snapshot reflects.
	Quality int32
	// Final is false while decoding continues and after a failed or aborted
	// decode.
	Final bool
}

// Image returns a copy of the frame as a standard library image.
func (fr *Frame) Image() image.Image {
	rect := image.Rect(0, 0, fr.Width, fr.Height)
	switch fr.Format {
	case Gray8:
		img := image.NewGray(rect)
		for y := 0; y < fr.Height; y++ {
			copy(img.Pix[y*img.Stride:], fr.Pix[y*fr.Stride:y*fr.Stride+fr.Width])
		}
		return img
	case Gray16:
		img := image.NewGray16(rect)
		for y := 0; y < fr.Height; y++ {
			copy(img.Pix[y*img.Stride:], fr.Pix[y*fr.Stride:y*fr.Stride+2*fr.Width])
		}
		return img
	case RGB8, RGBA8:
		img := image.NewNRGBA(rect)
		n := fr.Format.Channels()
		for y := 0; y < fr.Height; y++ {
			src := fr.Pix[y*fr.Stride:]
			dst := img.Pix[y*img.Stride:]
			for x := 0; x < fr.Width; x++ {
				s, d := src[x*n:], dst[x*4:]
				a := uint8(0xFF)
				if n == 4 {
					a = s[3]
				}
				d[0], d[1], d[2], d[3] = s[0], s[1], s[2], a
			}
		}
		return img
	default:
		img := image.NewNRGBA64(rect)
		n := fr.Format.Channels()
		for y := 0; y < fr.Height; y++ {
			src := fr.Pix[y*fr.Stride:]
			dst := img.Pix[y*img.Stride:]
			for x := 0; x < fr.Width; x++ {
				s, d := src[x*n*2:], dst[x*8:]
				copy(d[:6], s[:6])
				if n == 4 {
					d[6], d[7] = s[6], s[7]
				} else {
					d[6], d[7] = 0xFF, 0xFF
				}
			}
		}
		return img
	}
}

// At returns the sample values of pixel (x, y), one per channel.
func (fr *Frame) At(x, y int) []uint16 {
	n := fr.Format.Channels()
	out := make([]uint16, n)
	if fr.Format.BytesPerSample() == 1 {
		s := fr.Pix[y*fr.Stride+x*n:]
		for i := range out {
			out[i] = uint16(s[i])
		}
		return out
	}
	s := fr.Pix[y*fr.Stride+x*n*2:]
	for i := range out {
		out[i] = uint16(s[2*i])<<8 | uint16(s[2*i+1])
	}
	return out
}

// render produces the frame f snapshot of the model once zoom level z is
// complete, downscaled by scale. Positions not decoded yet take the value
// of the nearest decoded position above and to the left.
func (m *model) render(f, z, scale int) *Frame {
	hdr := m.hdr
	rs, cs := 1, 1
	if hdr.Interlaced {
		rs, cs = rowStep(z), colStep(z)
	}
	format := formatFor(hdr.Planes, hdr.maxDepth())
	bps := format.BytesPerSample()
	out := &Frame{
		Width:  ceilDiv(hdr.Width, scale),
		Height: ceilDiv(hdr.Height, scale),
		Format: format,
	}
	out.Stride = out.Width * hdr.Planes * bps
	out.Pix = make([]byte, out.Stride*out.Height)
	if f < len(hdr.Delays) {
		out.Delay = hdr.Delays[f]
	}

	planes := m.planes[f]
	sample := make([]int, hdr.Planes)
	for y := 0; y < out.Height; y++ {
		r := y * scale / rs * rs
		row := out.Pix[y*out.Stride:]
		for x := 0; x < out.Width; x++ {
			c := x * scale / cs * cs
			for p, pl := range planes {
				sample[p] = pl.at(r, c)
			}
			if hdr.YCoCg {
				m.toRGB(sample)
			}
			px := row[x*hdr.Planes*bps:]
			for p, v := range sample {
				if bps == 1 {
					px[p] = uint8(v)
				} else {
					px[2*p] = uint8(v >> 8)
					px[2*p+1] = uint8(v)
				}
			}
		}
	}
	return out
}

// toRGB inverts the YCoCg-R transform of the first three samples in place.
func (m *model) toRGB(s []int) {
	hi := m.ranges[0].hi
	y, co, cg := s[0], s[1], s[2]
	t := y - (cg >> 1)
	g := cg + t
	b := t - (co >> 1)
	r := b + co
	s[0], s[1], s[2] = clampInt(r, 0, hi), clampInt(g, 0, hi), clampInt(b, 0, hi)
}

// fromRGB applies the forward YCoCg-R transform of the first three samples
// in place.
func fromRGB(s []int) {
	r, g, b := s[0], s[1], s[2]
	co := r - b
	t := b + (co >> 1)
	cg := g - t
	y := t + (cg >> 1)
	s[0], s[1], s[2] = y, co, cg
}
