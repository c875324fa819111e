package flif

import (
	"fmt"
	"math"
)

const maxSpanSize = 1 << 30

// BitStream is a forward-only byte cursor over an encoded stream. It serves
// both the container header parser and the arithmetic decoder.
type BitStream struct {
	buf    []byte
	byteIx int
}

// NewBitStream constructs a cursor over data. Inputs above 1 GiB are refused
// and yield an empty stream.
func NewBitStream(data []byte) *BitStream {
	if len(data) > maxSpanSize {
		data = nil
	}
	return &BitStream{buf: data}
}

// ReadByte returns the next raw byte.
func (bs *BitStream) ReadByte() (byte, error) {
	if !bs.InBounds() {
		return 0, fmt.Errorf("%w: reading byte at offset %d", ErrStreamTruncated, bs.byteIx)
	}
	v := bs.buf[bs.byteIx]
	bs.byteIx++
	return v, nil
}

// ReadVarint reads a big-endian base-128 integer: seven bits per byte, the
// high bit set on every byte except the last.
func (bs *BitStream) ReadVarint() (uint64, error) {
	var v uint64
	for i := 0; i < 10; i++ {
		b, err := bs.ReadByte()
		if err != nil {
			return 0, err
		}
		if v > math.MaxUint64>>7 {
			return 0, fmt.Errorf("%w: varint overflows 64 bits", ErrInvalidHeader)
		}
		v = v<<7 | uint64(b&0x7F)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: varint longer than 10 bytes", ErrInvalidHeader)
}

// ReadUint32 reads a big-endian 32-bit value.
func (bs *BitStream) ReadUint32() (uint32, error) {
	if bs.BytesLeft() < 4 {
		return 0, fmt.Errorf("%w: reading uint32 at offset %d", ErrStreamTruncated, bs.byteIx)
	}
	b := bs.buf[bs.byteIx:]
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	bs.byteIx += 4
	return v, nil
}

// Skip advances the cursor by n bytes, failing when fewer remain.
func (bs *BitStream) Skip(n int) error {
	if n < 0 || n > bs.BytesLeft() {
		return fmt.Errorf("%w: skipping %d bytes at offset %d", ErrStreamTruncated, n, bs.byteIx)
	}
	bs.byteIx += n
	return nil
}

// Window returns a cursor over the next n bytes (or fewer when the stream
// ends early) and advances past them. The bool reports whether all n bytes
// were present.
func (bs *BitStream) Window(n int) (*BitStream, bool) {
	end := bs.byteIx + n
	complete := true
	if n < 0 || end > len(bs.buf) {
		end = len(bs.buf)
		complete = false
	}
	sub := &BitStream{buf: bs.buf[bs.byteIx:end]}
	bs.byteIx = end
	return sub, complete
}

// CurByteArith returns the current byte, or 0xFF when out of bounds.
func (bs *BitStream) CurByteArith() byte {
	if bs.InBounds() {
		return bs.buf[bs.byteIx]
	}
	return 0xFF
}

// NextByteArith returns the byte after the current one, or 0xFF if none.
func (bs *BitStream) NextByteArith() byte {
	if bs.HasNext() {
		return bs.buf[bs.byteIx+1]
	}
	return 0xFF
}

// HasNext reports whether a byte follows the current position.
func (bs *BitStream) HasNext() bool {
	return bs.byteIx+1 < len(bs.buf)
}

// IncByte advances the cursor by one byte.
func (bs *BitStream) IncByte() {
	if bs.byteIx < len(bs.buf) {
		bs.byteIx++
	}
}

// Offset returns the current byte index.
func (bs *BitStream) Offset() int { return bs.byteIx }

// Len returns the total number of bytes backing the stream.
func (bs *BitStream) Len() int { return len(bs.buf) }

// Bytes returns the underlying slice (read-only view).
func (bs *BitStream) Bytes() []byte { return bs.buf }

// BytesLeft returns the number of unread bytes.
func (bs *BitStream) BytesLeft() int {
	if bs.byteIx >= len(bs.buf) {
		return 0
	}
	return len(bs.buf) - bs.byteIx
}

// InBounds reports whether the cursor points at a readable byte.
func (bs *BitStream) InBounds() bool {
	return bs.byteIx < len(bs.buf)
}

// appendVarint is the writer-side counterpart of ReadVarint.
func appendVarint(dst []byte, v uint64) []byte {
	var tmp [10]byte
	n := len(tmp) - 1
	tmp[n] = byte(v & 0x7F)
	for v >>= 7; v != 0; v >>= 7 {
		n--
		tmp[n] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[n:]...)
}
