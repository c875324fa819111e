package flif

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestFromImage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 2))
	gray.SetGray(1, 1, color.Gray{Y: 200})
	r := FromImage(gray)
	if r.Planes != 1 || r.Depths[0] != 8 || r.Frames[0][4] != 200 {
		t.Fatalf("gray raster: planes=%d depths=%v samples=%v", r.Planes, r.Depths, r.Frames[0])
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range rgba.Pix {
		rgba.Pix[i] = 0xFF
	}
	rgba.SetNRGBA(0, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	r = FromImage(rgba)
	if r.Planes != 3 {
		t.Fatalf("opaque image: %d planes, want 3", r.Planes)
	}
	if got := r.Frames[0][6:9]; got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("opaque image samples %v", got)
	}

	rgba.SetNRGBA(1, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	if r = FromImage(rgba); r.Planes != 4 || r.Frames[0][15] != 4 {
		t.Fatalf("translucent image: planes=%d alpha=%d", r.Planes, r.Frames[0][15])
	}

	wide := image.NewGray16(image.Rect(0, 0, 1, 1))
	wide.SetGray16(0, 0, color.Gray16{Y: 0x1234})
	if r = FromImage(wide); r.Depths[0] != 16 || r.Frames[0][0] != 0x1234 {
		t.Fatalf("16-bit raster: depths=%v samples=%v", r.Depths, r.Frames[0])
	}
}

func TestImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 9, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 9; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 25), G: uint8(y * 40), B: uint8(x * y), A: uint8(255 - x)})
		}
	}
	data := mustEncode(t, FromImage(src), DefaultEncodeOptions())
	d, st, err := decode(t, data, testOptions())
	if err != nil || st != StateCompleted {
		t.Fatalf("decode: %v %v", st, err)
	}
	fr, _ := d.Frame(0)
	img, ok := fr.Image().(*image.NRGBA)
	if !ok {
		t.Fatalf("expected *image.NRGBA, got %T", fr.Image())
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 9; x++ {
			if got, want := img.NRGBAAt(x, y), src.NRGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestFrameImageFormats(t *testing.T) {
	tests := []struct {
		planes int
		depth  int
		want   string
	}{
		{1, 8, "*image.Gray"},
		{1, 16, "*image.Gray16"},
		{3, 8, "*image.NRGBA"},
		{4, 16, "*image.NRGBA64"},
		{3, 16, "*image.NRGBA64"},
	}
	for _, tt := range tests {
		r := testRaster(4, 3, tt.planes, uniform(tt.planes, tt.depth), 1, 1)
		d, _, err := decode(t, mustEncode(t, r, DefaultEncodeOptions()), testOptions())
		if err != nil {
			t.Fatal(err)
		}
		fr, _ := d.Frame(0)
		img := fr.Image()
		if got := typeName(img); got != tt.want {
			t.Fatalf("planes=%d depth=%d: %s, want %s", tt.planes, tt.depth, got, tt.want)
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
			t.Fatalf("bounds %v", b)
		}
		if tt.planes == 3 && tt.depth == 16 {
			c := img.(*image.NRGBA64).NRGBA64At(2, 1)
			if c.A != 0xFFFF || c.R != r.Frames[0][(1*4+2)*3] {
				t.Fatalf("unexpected colour %v", c)
			}
		}
	}
}

func typeName(img image.Image) string {
	switch img.(type) {
	case *image.Gray:
		return "*image.Gray"
	case *image.Gray16:
		return "*image.Gray16"
	case *image.NRGBA:
		return "*image.NRGBA"
	case *image.NRGBA64:
		return "*image.NRGBA64"
	}
	return "other"
}

func TestEncodeRejectsBadInput(t *testing.T) {
	good := func() *Raster { return testRaster(4, 4, 3, uniform(3, 8), 1, 1) }
	tests := []struct {
		name string
		edit func(r *Raster, o *EncodeOptions)
	}{
		{"planes", func(r *Raster, o *EncodeOptions) { r.Planes = 2 }},
		{"depth", func(r *Raster, o *EncodeOptions) { r.Depths[1] = 17 }},
		{"samples", func(r *Raster, o *EncodeOptions) { r.Frames[0] = r.Frames[0][:5] }},
		{"range", func(r *Raster, o *EncodeOptions) { r.Depths[0] = 1; r.Frames[0][0] = 2 }},
		{"size", func(r *Raster, o *EncodeOptions) { r.Width = 0 }},
		{"delays", func(r *Raster, o *EncodeOptions) { r.Delays = []int{1, 2} }},
		{"loops", func(r *Raster, o *EncodeOptions) { o.Loops = 1000 }},
		{"predictor", func(r *Raster, o *EncodeOptions) { o.Predictor = 3 }},
	}
	for _, tt := range tests {
		r := good()
		o := DefaultEncodeOptions()
		tt.edit(r, &o)
		if _, err := Encode(r, o); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("%s: expected ErrInvalidOption, got %v", tt.name, err)
		}
	}
}

func TestEncodeCarriesChunks(t *testing.T) {
	r := testRaster(5, 5, 1, uniform(1, 8), 1, 2)
	o := DefaultEncodeOptions()
	o.Chunks = []Chunk{{Name: [4]byte{'e', 'X', 'm', 'p'}, Data: []byte("<x/>")}}
	data := mustEncode(t, r, o)
	d, st, err := decode(t, data, testOptions())
	if err != nil || st != StateCompleted {
		t.Fatalf("decode: %v %v", st, err)
	}
	fr, _ := d.Frame(0)
	compareFrame(t, fr, r, 0)
}
