package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jdeng/goflif/internal/source"
	flif "github.com/jdeng/goflif/pkg/flif"
)

// createPattern builds a synthetic raster: a diagonal gradient that shifts
// from frame to frame, with an optional alpha ramp.
func createPattern(width, height, frames int, gray, alpha bool) *flif.Raster {
	planes := 3
	if gray {
		planes = 1
	}
	if alpha {
		planes++
	}
	r := &flif.Raster{Width: width, Height: height, Planes: planes}
	for i := 0; i < planes; i++ {
		r.Depths = append(r.Depths, 8)
	}

	for f := 0; f < frames; f++ {
		px := make([]uint16, 0, width*height*planes)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := (x + y + f*16) & 0xFF
				if gray {
					px = append(px, uint16(v))
				} else {
					px = append(px, uint16(v), uint16((x*255)/max(1, width-1)), uint16((y*255)/max(1, height-1)))
				}
				if alpha {
					px = append(px, uint16(255-(x*255)/max(1, width-1)))
				}
			}
		}
		r.Frames = append(r.Frames, px)
		if frames > 1 {
			r.Delays = append(r.Delays, 100)
		}
	}
	return r
}

func loadImage(path string) (*flif.Raster, error) {
	data, err := source.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return flif.RasterFromImage(img), nil
}

func main() {
	var output = flag.String("o", "test.flif", "Output file")
	var input = flag.String("input", "", "Optional PNG or JPEG to encode instead of a synthetic pattern")
	var width = flag.Int("width", 64, "Pattern width")
	var height = flag.Int("height", 48, "Pattern height")
	var frames = flag.Int("frames", 1, "Number of pattern frames")
	var loops = flag.Int("loops", 0, "Animation loop count (0 = forever)")
	var gray = flag.Bool("gray", false, "Single-plane pattern")
	var alpha = flag.Bool("alpha", false, "Add an alpha plane to the pattern")
	var interlaced = flag.Bool("interlaced", true, "Write an interlaced (progressive) stream")
	var crc = flag.Bool("crc", false, "Append a payload checksum")
	var zstd = flag.Bool("zstd", false, "Wrap the stream in zstd")
	var gz = flag.Bool("gzip", false, "Wrap the stream in gzip")
	flag.Parse()

	log := logrus.New()

	var r *flif.Raster
	var err error
	if *input != "" {
		r, err = loadImage(*input)
		if err != nil {
			log.WithError(err).Fatal("Failed to load input image")
		}
	} else {
		if *width <= 0 || *height <= 0 || *frames <= 0 {
			log.Fatalf("Invalid pattern geometry %dx%d x%d", *width, *height, *frames)
		}
		r = createPattern(*width, *height, *frames, *gray, *alpha)
	}

	opts := flif.DefaultEncodeOptions()
	opts.Interlaced = *interlaced
	opts.CRC = *crc
	opts.Loops = *loops

	var buf bytes.Buffer
	if err := flif.EncodeRaster(&buf, r, opts); err != nil {
		log.WithError(err).Fatal("Failed to encode")
	}

	enc := source.Raw
	switch {
	case *zstd:
		enc = source.Zstd
	case *gz:
		enc = source.Gzip
	}
	data, err := source.Wrap(buf.Bytes(), enc)
	if err != nil {
		log.WithError(err).Fatal("Failed to wrap stream")
	}

	if err := os.WriteFile(*output, data, 0o644); err != nil {
		log.WithError(err).Fatal("Failed to write output")
	}

	fmt.Printf("Created test FLIF file: %s (%dx%d, %d plane(s), %d frame(s), %d bytes, %v)\n",
		*output, r.Width, r.Height, r.Planes, len(r.Frames), len(data), enc)
}
