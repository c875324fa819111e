package flif

import (
	"image"

	engine "github.com/jdeng/goflif/internal/flif"
)

// PixelFormat is the sample layout of an Image.
type PixelFormat = engine.PixelFormat

// Pixel formats.
const (
	Gray8  = engine.Gray8
	Gray16 = engine.Gray16
	RGB8   = engine.RGB8
	RGBA8  = engine.RGBA8
	RGB16  = engine.RGB16
	RGBA16 = engine.RGBA16
)

// Image is a decoded frame. Its pixels never change once returned.
type Image struct {
	frame *engine.Frame
}

// Width returns the image width in pixels.
func (img *Image) Width() int { return img.frame.Width }

// Height returns the image height in pixels.
func (img *Image) Height() int { return img.frame.Height }

// Format returns the pixel format.
func (img *Image) Format() PixelFormat { return img.frame.Format }

// Stride returns the number of bytes per row.
func (img *Image) Stride() int { return img.frame.Stride }

// Pix returns the pixel data. It must not be modified.
func (img *Image) Pix() []byte { return img.frame.Pix }

// Delay returns the frame delay in milliseconds.
func (img *Image) Delay() int { return img.frame.Delay }

// Quality returns the checkpoint (0-10000) the image reflects.
func (img *Image) Quality() int32 { return img.frame.Quality }

// Final reports whether decoding finished normally.
func (img *Image) Final() bool { return img.frame.Final }

// At returns the samples of pixel (x, y).
func (img *Image) At(x, y int) []uint16 { return img.frame.At(x, y) }

// Image returns a copy as a standard library image.
func (img *Image) Image() image.Image { return img.frame.Image() }
