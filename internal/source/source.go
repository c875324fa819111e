// Package source loads encoded streams from files, readers and memory,
// removing a zstd, gzip or zlib wrapper when one is present.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrIO reports a byte source that could not be read.
var ErrIO = errors.New("flif: i/o error")

// MaxSize bounds the size of a source after unwrapping.
const MaxSize = 1 << 30

// Encoding is the transport wrapper around a stream.
type Encoding int

const (
	Raw Encoding = iota
	Zstd
	Gzip
	Zlib
)

func (e Encoding) String() string {
	switch e {
	case Raw:
		return "raw"
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

type readerWithLen interface {
	io.Reader
	Len() int
}

// ReadAll reads r to the end. Readers that know their remaining length are
// read into a buffer of exactly that size.
func ReadAll(r io.Reader) ([]byte, error) {
	if rl, ok := r.(readerWithLen); ok {
		if size := rl.Len(); size > 0 {
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrIO, err)
			}
			return data, nil
		}
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: source larger than %d bytes", ErrIO, MaxSize)
	}
	return data, nil
}

// ReadFile reads the file at path.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return data, nil
}

// Load reads the file at path and unwraps it.
func Load(path string) ([]byte, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	out, _, err := Unwrap(data)
	return out, err
}

// Sniff identifies the wrapper of data from its leading bytes.
func Sniff(data []byte) Encoding {
	switch {
	case len(data) >= 4 && data[0] == 0x28 && data[1] == 0xB5 && data[2] == 0x2F && data[3] == 0xFD:
		return Zstd
	case len(data) >= 2 && data[0] == 0x1F && data[1] == 0x8B:
		return Gzip
	case len(data) >= 2 && data[0]&0x0F == 8 && data[0]>>4 <= 7 && (uint16(data[0])<<8|uint16(data[1]))%31 == 0:
		return Zlib
	}
	return Raw
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(
			nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
			zstd.WithDecoderMaxMemory(MaxSize),
		)
		if err != nil {
			panic(err)
		}
		return dec
	},
}

// Unwrap removes a compression wrapper from data. Raw data is returned as
// is.
func Unwrap(data []byte) ([]byte, Encoding, error) {
	enc := Sniff(data)
	switch enc {
	case Zstd:
		dec := zstdDecPool.Get().(*zstd.Decoder)
		out, err := dec.DecodeAll(data, nil)
		zstdDecPool.Put(dec)
		if err != nil {
			return nil, enc, fmt.Errorf("%w: zstd: %v", ErrIO, err)
		}
		return out, enc, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, enc, fmt.Errorf("%w: gzip: %v", ErrIO, err)
		}
		defer r.Close()
		out, err := ReadAll(r)
		return out, enc, err
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, enc, fmt.Errorf("%w: zlib: %v", ErrIO, err)
		}
		defer r.Close()
		out, err := ReadAll(r)
		return out, enc, err
	}
	return data, Raw, nil
}

// Wrap compresses data with enc.
func Wrap(data []byte, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	switch enc {
	case Raw:
		return data, nil
	case Zstd:
		w, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, err
		}
		defer w.Close()
		return w.EncodeAll(data, nil), nil
	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case Zlib:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown encoding %v", enc)
	}
	return buf.Bytes(), nil
}
