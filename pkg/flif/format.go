package flif

import (
	"image"
	"io"

	engine "github.com/jdeng/goflif/internal/flif"
	"github.com/jdeng/goflif/internal/source"
)

func init() {
	image.RegisterFormat("flif", "FLIF", Decode, DecodeConfig)
}

// Decode reads a stream from r and returns its first frame.
func Decode(r io.Reader) (image.Image, error) {
	d := NewDecoder()
	defer d.Close()
	if _, err := d.Decode(r); err != nil {
		return nil, err
	}
	img, err := d.Image(0)
	if err != nil {
		return nil, err
	}
	return img.Image(), nil
}

// DecodeConfig returns the dimensions and colour model of a stream without
// decoding its pixels.
func DecodeConfig(r io.Reader) (image.Config, error) {
	data, err := source.ReadAll(r)
	if err != nil {
		return image.Config{}, err
	}
	h, err := engine.ReadHeader(data)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: h.Format().ColorModel(),
		Width:      h.Width,
		Height:     h.Height,
	}, nil
}

// ReadInfo describes the stream in data without decoding its pixels.
func ReadInfo(data []byte) (Info, error) {
	h, err := engine.ReadHeader(data)
	if err != nil {
		return Info{}, err
	}
	return infoOf(*h), nil
}

// Raster is uncompressed input for Encode.
type Raster = engine.Raster

// EncodeOptions controls the layout of encoded streams.
type EncodeOptions = engine.EncodeOptions

// Chunk is a metadata block carried in a stream.
type Chunk = engine.Chunk

// DefaultEncodeOptions produces interlaced streams.
func DefaultEncodeOptions() EncodeOptions { return engine.DefaultEncodeOptions() }

// Encode writes img to w as a single-frame stream.
func Encode(w io.Writer, img image.Image, opts EncodeOptions) error {
	return EncodeRaster(w, engine.FromImage(img), opts)
}

// EncodeRaster writes r to w.
func EncodeRaster(w io.Writer, r *Raster, opts EncodeOptions) error {
	data, err := engine.Encode(r, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// RasterFromImage converts img into a single-frame raster.
func RasterFromImage(img image.Image) *Raster { return engine.FromImage(img) }
