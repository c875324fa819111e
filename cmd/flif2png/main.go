package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	flif "github.com/jdeng/goflif/pkg/flif"
)

// Exit codes follow flif.StatusCode.
func main() {
	var inputFile = flag.String("input", "", "Input FLIF file (may be zstd, gzip or zlib wrapped)")
	var outputFile = flag.String("output", "", "Output PNG file or pattern with one %d verb for frames (defaults to input name)")
	var quality = flag.Int("quality", 100, "Stop decoding at this quality (0-100)")
	var scale = flag.Int("scale", 1, "Downscale by this power of two")
	var resize = flag.String("resize", "", "Decode the coarsest scale that still covers WxH")
	var fit = flag.Bool("fit", false, "Resample the result to exactly the -resize dimensions")
	var crc = flag.Bool("crc", false, "Verify the stream checksum")
	var firstQuality = flag.Int("first-quality", 0, "Checkpoint (0-10000) of the first progressive write")
	var progressive = flag.Bool("progressive", false, "Write an intermediate PNG after each progressive checkpoint")
	var verbose = flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *inputFile == "" {
		log.Error("Input file is required. Use -input flag.")
		os.Exit(int(flif.CodeUsage))
	}

	var width, height int
	if *resize != "" {
		var err error
		width, height, err = parseSize(*resize)
		if err != nil {
			log.WithError(err).Error("Invalid -resize value")
			os.Exit(int(flif.CodeUsage))
		}
	}
	if *fit && width == 0 && height == 0 {
		log.Error("-fit requires -resize")
		os.Exit(int(flif.CodeUsage))
	}

	output := *outputFile
	if output == "" {
		ext := filepath.Ext(*inputFile)
		output = (*inputFile)[:len(*inputFile)-len(ext)] + ".png"
	}

	opts := flif.DefaultOptions()
	opts.CRCCheck = *crc
	opts.Quality = *quality
	opts.Scale = *scale
	opts.ResizeWidth = width
	opts.ResizeHeight = height
	opts.FirstCallbackQuality = int32(*firstQuality)
	opts.Logger = log

	decoder, err := flif.New(opts)
	if err != nil {
		log.WithError(err).Error("Failed to create decoder")
		os.Exit(int(flif.StatusCodeOf(flif.StatusIdle, err)))
	}
	defer decoder.Close()

	if *progressive {
		err := decoder.SetCallback(func(q int32, bytesRead int64) uint32 {
			img, err := decoder.Image(0)
			if err != nil {
				return uint32(q) + 1000
			}
			name := progressiveName(output, q)
			if err := writePNG(name, img, width, height, *fit); err != nil {
				log.WithError(err).Warn("Failed to write progressive image")
			} else {
				log.WithFields(logrus.Fields{"quality": q, "bytes": bytesRead, "file": name}).Info("Wrote progressive image")
			}
			return uint32(q) + 1000
		})
		if err != nil {
			log.WithError(err).Error("Failed to set callback")
			os.Exit(int(flif.CodeUsage))
		}
	}

	status, err := decoder.DecodeFile(*inputFile)
	code := flif.StatusCodeOf(status, err)
	if code != flif.CodeOK && code != flif.CodeAborted {
		log.WithError(err).WithField("status", status).Error("Failed to decode FLIF")
		os.Exit(int(code))
	}

	n := decoder.NumImages()
	if n == 0 {
		log.Error("No images decoded")
		os.Exit(int(flif.CodeInvalidStream))
	}
	for i := 0; i < n; i++ {
		img, err := decoder.Image(i)
		if err != nil {
			log.WithError(err).Error("Failed to fetch frame")
			os.Exit(int(flif.StatusCodeOf(status, err)))
		}
		name := frameName(output, i, n)
		if err := writePNG(name, img, width, height, *fit); err != nil {
			log.WithError(err).Error("Failed to write PNG")
			os.Exit(int(flif.CodeIOError))
		}
		log.WithFields(logrus.Fields{
			"file":    name,
			"width":   img.Width(),
			"height":  img.Height(),
			"format":  img.Format(),
			"quality": img.Quality(),
		}).Info("Wrote image")
	}

	st := decoder.Stats()
	fmt.Printf("Successfully converted %s (%d frame(s), %d loop(s))\n", *inputFile, n, decoder.NumLoops())
	fmt.Printf("Passes: %d, pixels: %d, bytes read: %d, quality: %d\n", st.Passes, st.PixelsDecoded, st.BytesRead, st.Quality)
	os.Exit(int(code))
}

// parseSize parses "WxH". Either side may be empty or zero.
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	var w, h int
	var err error
	if ws != "" {
		if w, err = strconv.Atoi(ws); err != nil || w < 0 {
			return 0, 0, fmt.Errorf("bad width %q", ws)
		}
	}
	if hs != "" {
		if h, err = strconv.Atoi(hs); err != nil || h < 0 {
			return 0, 0, fmt.Errorf("bad height %q", hs)
		}
	}
	return w, h, nil
}

func frameName(pattern string, i, n int) string {
	if strings.Contains(pattern, "%") {
		return fmt.Sprintf(pattern, i)
	}
	if n == 1 {
		return pattern
	}
	ext := filepath.Ext(pattern)
	return fmt.Sprintf("%s-%03d%s", pattern[:len(pattern)-len(ext)], i, ext)
}

func progressiveName(pattern string, q int32) string {
	base := frameName(pattern, 0, 1)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s.q%05d%s", base[:len(base)-len(ext)], q, ext)
}

func writePNG(name string, img *flif.Image, width, height int, fit bool) error {
	var out image.Image = img.Image()
	if fit {
		out = resample(out, width, height)
	}

	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(file, out); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// resample scales src to exactly width x height. A zero side keeps the
// aspect ratio of src.
func resample(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	if width == 0 {
		width = max(1, b.Dx()*height/b.Dy())
	}
	if height == 0 {
		height = max(1, b.Dy()*width/b.Dx())
	}
	if width == b.Dx() && height == b.Dy() {
		return src
	}
	dst := image.NewNRGBA64(image.Rect(0, 0, width, height))
	var scaler draw.Scaler = draw.CatmullRom
	if width*height > 4<<20 {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
