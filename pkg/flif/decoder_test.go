package flif

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jdeng/goflif/internal/source"
)

func quietOptions() Options {
	o := DefaultOptions()
	l := logrus.New()
	l.SetOutput(io.Discard)
	o.Logger = l
	return o
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 15), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func encodeTestImage(t *testing.T, opts EncodeOptions) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, testImage(), opts); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return buf.Bytes()
}

func sameImage(t *testing.T, got image.Image, want *image.NRGBA) {
	t.Helper()
	if got.Bounds() != want.Bounds() {
		t.Fatalf("bounds %v, want %v", got.Bounds(), want.Bounds())
	}
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.NRGBAModel.Convert(got.At(x, y)).(color.NRGBA)
			if w := want.NRGBAAt(x, y); g != w {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, g, w)
			}
		}
	}
}

func TestDecodeMemory(t *testing.T) {
	data := encodeTestImage(t, DefaultEncodeOptions())
	d, err := New(quietOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	st, err := d.DecodeMemory(data)
	if err != nil || st != StatusCompleted {
		t.Fatalf("DecodeMemory: %v %v", st, err)
	}
	if StatusCodeOf(st, err) != CodeOK {
		t.Fatalf("unexpected code %v", StatusCodeOf(st, err))
	}
	if d.NumImages() != 1 || d.NumLoops() != 0 {
		t.Fatalf("images=%d loops=%d", d.NumImages(), d.NumLoops())
	}
	img, err := d.Image(0)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width() != 24 || img.Height() != 16 || img.Format() != RGB8 || !img.Final() {
		t.Fatalf("unexpected image %dx%d %v final=%v", img.Width(), img.Height(), img.Format(), img.Final())
	}
	sameImage(t, img.Image(), testImage())

	info, ok := d.Info()
	if !ok || info.Width != 24 || info.Channels != 3 || info.Depth != 8 || !info.Interlaced {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestImageDecodeRegistered(t *testing.T) {
	data := encodeTestImage(t, DefaultEncodeOptions())
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image.Decode failed: %v", err)
	}
	if name != "flif" {
		t.Fatalf("format %q, want flif", name)
	}
	sameImage(t, img, testImage())

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || name != "flif" {
		t.Fatalf("DecodeConfig: %q %v", name, err)
	}
	if cfg.Width != 24 || cfg.Height != 16 || cfg.ColorModel != color.NRGBAModel {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestDecodeFileWrapped(t *testing.T) {
	data := encodeTestImage(t, DefaultEncodeOptions())
	dir := t.TempDir()
	for _, enc := range []source.Encoding{source.Raw, source.Zstd, source.Gzip} {
		wrapped, err := source.Wrap(data, enc)
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, fmt.Sprintf("img.%v", enc))
		if err := os.WriteFile(path, wrapped, 0o644); err != nil {
			t.Fatal(err)
		}
		d, err := New(quietOptions())
		if err != nil {
			t.Fatal(err)
		}
		if st, err := d.DecodeFile(path); err != nil || st != StatusCompleted {
			t.Fatalf("%v: DecodeFile: %v %v", enc, st, err)
		}
		img, err := d.Image(0)
		if err != nil {
			t.Fatal(err)
		}
		sameImage(t, img.Image(), testImage())
	}
}

func TestDecodeReader(t *testing.T) {
	data := encodeTestImage(t, DefaultEncodeOptions())
	wrapped, err := source.Wrap(data, source.Zstd)
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if st, err := d.Decode(bytes.NewReader(wrapped)); err != nil || st != StatusCompleted {
		t.Fatalf("Decode: %v %v", st, err)
	}
}

func TestStatusCodes(t *testing.T) {
	data := encodeTestImage(t, DefaultEncodeOptions())

	d := NewDecoder()
	st, err := d.DecodeFile(filepath.Join(t.TempDir(), "missing.flif"))
	if code := StatusCodeOf(st, err); code != CodeIOError {
		t.Fatalf("missing file: %v (%v)", code, err)
	}

	d, _ = New(quietOptions())
	st, err = d.DecodeMemory(data[:len(data)/2])
	if code := StatusCodeOf(st, err); code != CodeInvalidStream || st != StatusFailed {
		t.Fatalf("truncated stream: %v %v (%v)", code, st, err)
	}

	d, _ = New(quietOptions())
	if err := d.Abort(); err != nil {
		t.Fatal(err)
	}
	st, err = d.DecodeMemory(data)
	if code := StatusCodeOf(st, err); code != CodeAborted {
		t.Fatalf("aborted: %v (%v)", code, err)
	}

	d, _ = New(quietOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err = d.DecodeContext(ctx, data)
	if code := StatusCodeOf(st, err); code != CodeAborted {
		t.Fatalf("cancelled: %v (%v)", code, err)
	}

	if _, err := New(Options{Quality: 100, Scale: 5}); StatusCodeOf(StatusIdle, err) != CodeUsage {
		t.Fatalf("bad option: %v", err)
	}
	if _, err := d.Image(4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestDecodeRejectsWrappedDimensions(t *testing.T) {
	data := []byte("FLIF\x41\x31\x81\xff\xff\xff\xff\xff\xff\xff\xff\x7f\x00\x00")
	data = append(data, encodeTestImage(t, DefaultEncodeOptions())[8:]...)
	if _, _, err := image.Decode(bytes.NewReader(data)); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	d, _ := New(quietOptions())
	st, err := d.DecodeMemory(data)
	if code := StatusCodeOf(st, err); code != CodeInvalidStream {
		t.Fatalf("wrapped dimensions: %v (%v)", code, err)
	}
}

func TestChecksumFlag(t *testing.T) {
	eo := DefaultEncodeOptions()
	eo.CRC = true
	data := encodeTestImage(t, eo)
	data[len(data)-3] ^= 0x40

	d, _ := New(quietOptions())
	if err := d.SetCRCCheck(true); err != nil {
		t.Fatal(err)
	}
	st, err := d.DecodeMemory(data)
	if st != StatusFailed || !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("checked: %v %v", st, err)
	}

	d, _ = New(quietOptions())
	if st, err := d.DecodeMemory(data); err != nil || st != StatusCompleted {
		t.Fatalf("unchecked: %v %v", st, err)
	}
}

func TestAnimationRaster(t *testing.T) {
	r := &Raster{Width: 4, Height: 3, Planes: 1, Depths: []int{8}, Delays: []int{10, 20, 30}}
	for f := 0; f < 3; f++ {
		px := make([]uint16, 12)
		for i := range px {
			px[i] = uint16(f*50 + i)
		}
		r.Frames = append(r.Frames, px)
	}
	var buf bytes.Buffer
	if err := EncodeRaster(&buf, r, DefaultEncodeOptions()); err != nil {
		t.Fatal(err)
	}
	info, err := ReadInfo(buf.Bytes())
	if err != nil || info.Frames != 3 || info.Loops != 0 || info.Format != Gray8 {
		t.Fatalf("ReadInfo: %+v %v", info, err)
	}

	d, _ := New(quietOptions())
	if _, err := d.DecodeMemory(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if d.NumImages() != 3 || d.NumLoops() != 0 {
		t.Fatalf("images=%d loops=%d", d.NumImages(), d.NumLoops())
	}
	for f := 0; f < 3; f++ {
		img, err := d.Image(f)
		if err != nil {
			t.Fatal(err)
		}
		if img.Delay() != r.Delays[f] || img.At(3, 2)[0] != uint16(f*50+11) {
			t.Fatalf("frame %d: delay %d sample %v", f, img.Delay(), img.At(3, 2))
		}
	}
}

func TestStatusStrings(t *testing.T) {
	if StatusFailed.String() != "Failed" || Status(9).String() != "Status(9)" {
		t.Fatalf("unexpected status names")
	}
	if CodeInvalidStream.String() != "InvalidStream" || StatusCode(9).String() != "StatusCode(9)" {
		t.Fatalf("unexpected code names")
	}
}
