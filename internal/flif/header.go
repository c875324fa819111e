package flif

import (
	"fmt"
)

var magic = [4]byte{'F', 'L', 'I', 'F'}

const (
	maxDimension = 1 << 20
	maxFrames    = 1 << 14
	maxSamples   = 1 << 28
	maxLoops     = 100
	maxDelay     = 60000
)

// Format nibbles of the byte following the magic.
const (
	formatStill              = 3
	formatStillInterlaced    = 4
	formatAnimated           = 5
	formatAnimatedInterlaced = 6
)

// Header describes a stream. The container fields are known after
// ParseHeader; Depths, YCoCg, Loops, Delays and HasCRC come from the start of
// the coded payload.
type Header struct {
	Width      int
	Height     int
	Planes     int
	Frames     int
	Interlaced bool
	Animated   bool

	// BytesPerChannel is 1 or 2 for uniform 8 or 16 bit planes, 0 when each
	// plane carries its own depth.
	BytesPerChannel int
	Depths          []int

	YCoCg  bool
	Loops  int
	Delays []int
	HasCRC bool

	// PayloadOffset is the position of the coded payload in the input and
	// PayloadLength its declared size.
	PayloadOffset int
	PayloadLength int
}

// ParseHeader reads the container fields up to the start of the payload.
// Metadata chunks are skipped.
func ParseHeader(bs *BitStream) (*Header, error) {
	for i := range magic {
		b, err := bs.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != magic[i] {
			return nil, fmt.Errorf("%w: bad magic", ErrInvalidHeader)
		}
	}

	format, err := bs.ReadByte()
	if err != nil {
		return nil, err
	}
	h := &Header{Planes: int(format & 0x0F)}
	switch format >> 4 {
	case formatStill:
	case formatStillInterlaced:
		h.Interlaced = true
	case formatAnimated:
		h.Animated = true
	case formatAnimatedInterlaced:
		h.Animated, h.Interlaced = true, true
	default:
		return nil, fmt.Errorf("%w: unknown format 0x%02x", ErrInvalidHeader, format)
	}
	if h.Planes != 1 && h.Planes != 3 && h.Planes != 4 {
		return nil, fmt.Errorf("%w: %d planes", ErrInvalidHeader, h.Planes)
	}

	bpc, err := bs.ReadByte()
	if err != nil {
		return nil, err
	}
	if bpc < '0' || bpc > '2' {
		return nil, fmt.Errorf("%w: bytes per channel %q", ErrInvalidHeader, bpc)
	}
	h.BytesPerChannel = int(bpc - '0')

	if h.Width, err = readDimension(bs, 1); err != nil {
		return nil, err
	}
	if h.Height, err = readDimension(bs, 1); err != nil {
		return nil, err
	}
	h.Frames = 1
	if h.Animated {
		v, err := bs.ReadVarint()
		if err != nil {
			return nil, err
		}
		if v > maxFrames-2 {
			return nil, fmt.Errorf("%w: %d frames", ErrInvalidHeader, v+2)
		}
		h.Frames = int(v) + 2
	}
	if int64(h.Width)*int64(h.Height)*int64(h.Planes)*int64(h.Frames) > maxSamples {
		return nil, fmt.Errorf("%w: %dx%d, %d planes, %d frames is too large", ErrInvalidHeader, h.Width, h.Height, h.Planes, h.Frames)
	}

	if err := skipChunks(bs); err != nil {
		return nil, err
	}

	n, err := bs.ReadVarint()
	if err != nil {
		return nil, err
	}
	if n > maxSpanSize {
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidHeader, n)
	}
	h.PayloadLength = int(n)
	h.PayloadOffset = bs.Offset()
	return h, nil
}

func readDimension(bs *BitStream, bias uint64) (int, error) {
	v, err := bs.ReadVarint()
	if err != nil {
		return 0, err
	}
	if v > maxDimension-bias {
		return 0, fmt.Errorf("%w: dimension %d+%d", ErrInvalidHeader, v, bias)
	}
	return int(v + bias), nil
}

// skipChunks passes over metadata chunks until the terminating zero byte.
func skipChunks(bs *BitStream) error {
	for {
		b, err := bs.ReadByte()
		if err != nil {
			return err
		}
		if b == 0 {
			return nil
		}
		name := [4]byte{b}
		for i := 1; i < 4; i++ {
			if name[i], err = bs.ReadByte(); err != nil {
				return err
			}
		}
		for _, c := range name {
			if c < 0x20 || c > 0x7E {
				return fmt.Errorf("%w: bad chunk name %q", ErrInvalidHeader, name[:])
			}
		}
		n, err := bs.ReadVarint()
		if err != nil {
			return err
		}
		if n > uint64(bs.BytesLeft()) {
			return fmt.Errorf("%w: chunk %q of %d bytes", ErrStreamTruncated, name[:], n)
		}
		if err := bs.Skip(int(n)); err != nil {
			return err
		}
	}
}

// Chunk is an opaque metadata block carried in the container.
type Chunk struct {
	Name [4]byte
	Data []byte
}

// appendContainer writes the container fields of h followed by the chunks,
// the payload and, when h.HasCRC is set, the payload checksum.
func appendContainer(dst []byte, h *Header, chunks []Chunk, payload []byte, crc uint32) []byte {
	dst = append(dst, magic[:]...)
	format := formatStill
	switch {
	case h.Animated && h.Interlaced:
		format = formatAnimatedInterlaced
	case h.Animated:
		format = formatAnimated
	case h.Interlaced:
		format = formatStillInterlaced
	}
	dst = append(dst, byte(format<<4|h.Planes), byte('0'+h.BytesPerChannel))
	dst = appendVarint(dst, uint64(h.Width-1))
	dst = appendVarint(dst, uint64(h.Height-1))
	if h.Animated {
		dst = appendVarint(dst, uint64(h.Frames-2))
	}
	for _, c := range chunks {
		dst = append(dst, c.Name[:]...)
		dst = appendVarint(dst, uint64(len(c.Data)))
		dst = append(dst, c.Data...)
	}
	dst = append(dst, 0)
	dst = appendVarint(dst, uint64(len(payload)))
	dst = append(dst, payload...)
	if h.HasCRC {
		dst = append(dst, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	}
	return dst
}

// codeSecondHeader codes the header fields carried at the start of the
// payload.
func codeSecondHeader(bc bitCoder, ctx *IntContexts, h *Header) error {
	if len(h.Depths) != h.Planes {
		h.Depths = make([]int, h.Planes)
	}
	for p := range h.Depths {
		switch h.BytesPerChannel {
		case 1:
			h.Depths[p] = 8
		case 2:
			h.Depths[p] = 16
		default:
			v, err := codeInt(bc, ctx, 1, 16, h.Depths[p])
			if err != nil {
				return err
			}
			h.Depths[p] = v
		}
	}

	if h.Planes >= 3 {
		v, err := codeInt(bc, ctx, 0, 1, boolBit(h.YCoCg))
		if err != nil {
			return err
		}
		h.YCoCg = v == 1
		if h.YCoCg && (h.Depths[1] != h.Depths[0] || h.Depths[2] != h.Depths[0]) {
			return fmt.Errorf("%w: colour transform over planes of unequal depth", ErrInvalidHeader)
		}
	}

	if h.Animated {
		v, err := codeInt(bc, ctx, 0, maxLoops, h.Loops)
		if err != nil {
			return err
		}
		h.Loops = v
		if len(h.Delays) != h.Frames {
			h.Delays = make([]int, h.Frames)
		}
		for f := range h.Delays {
			if h.Delays[f], err = codeInt(bc, ctx, 0, maxDelay, h.Delays[f]); err != nil {
				return err
			}
		}
	}

	v, err := codeInt(bc, ctx, 0, 1, boolBit(h.HasCRC))
	if err != nil {
		return err
	}
	h.HasCRC = v == 1
	return nil
}

// ReadHeader parses the container and the header fields at the start of
// the payload without decoding any pixels.
func ReadHeader(data []byte) (*Header, error) {
	bs := NewBitStream(data)
	h, err := ParseHeader(bs)
	if err != nil {
		return nil, err
	}
	payload, _ := bs.Window(h.PayloadLength)
	var ctx IntContexts
	if err := codeSecondHeader(NewArithDecoder(payload), &ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Format returns the pixel format frames of this stream are rendered in.
func (h *Header) Format() PixelFormat {
	return formatFor(h.Planes, h.maxDepth())
}

// maxDepth returns the largest plane depth.
func (h *Header) maxDepth() int {
	d := 0
	for _, v := range h.Depths {
		if v > d {
			d = v
		}
	}
	return d
}
