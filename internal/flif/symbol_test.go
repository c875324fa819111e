package flif

import (
	"errors"
	"math/rand"
	"testing"
)

type intCase struct {
	lo, hi, v int
}

func TestCodeIntRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ranges := [][2]int{
		{0, 0}, {0, 1}, {-1, 0}, {-1, 1}, {0, 255}, {-255, 255},
		{5, 9}, {-9, -5}, {1, 16}, {-65535, 65535}, {3, 1000}, {-1000, -3},
	}
	var cases []intCase
	for _, r := range ranges {
		cases = append(cases, intCase{r[0], r[1], r[0]}, intCase{r[0], r[1], r[1]})
		for i := 0; i < 50; i++ {
			cases = append(cases, intCase{r[0], r[1], r[0] + rng.Intn(r[1]-r[0]+1)})
		}
	}

	enc := NewArithEncoder()
	var ectx IntContexts
	for _, c := range cases {
		got, err := codeInt(enc, &ectx, c.lo, c.hi, c.v)
		if err != nil {
			t.Fatalf("encode %+v: %v", c, err)
		}
		if got != c.v {
			t.Fatalf("encode %+v returned %d", c, got)
		}
	}
	payload := enc.Finish()

	dec := NewArithDecoder(NewBitStream(payload))
	var dctx IntContexts
	for i, c := range cases {
		got, err := codeInt(dec, &dctx, c.lo, c.hi, 0)
		if err != nil {
			t.Fatalf("decode case %d %+v: %v", i, c, err)
		}
		if got != c.v {
			t.Fatalf("case %d: decoded %d, want %d", i, got, c.v)
		}
	}
}

func TestCodeIntStaysInRange(t *testing.T) {
	// Arbitrary bytes decode to arbitrary values, but never outside the bounds.
	rng := rand.New(rand.NewSource(2))
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(rng.Intn(0x90))
	}
	data = append(data, 0xFF, 0xAC)

	dec := NewArithDecoder(NewBitStream(data))
	var ctx IntContexts
	bounds := [][2]int{{3, 17}, {-20, -2}, {-7, 100}, {0, 1}, {1, 1 << 15}}
	for i := 0; i < 400; i++ {
		b := bounds[i%len(bounds)]
		v, err := codeInt(dec, &ctx, b[0], b[1], 0)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if v < b[0] || v > b[1] {
			t.Fatalf("decoded %d outside [%d,%d]", v, b[0], b[1])
		}
	}
}

func TestCodeIntSingleValueUsesNoBits(t *testing.T) {
	enc := NewArithEncoder()
	var ctx IntContexts
	for i := 0; i < 1000; i++ {
		if _, err := codeInt(enc, &ctx, 42, 42, 42); err != nil {
			t.Fatal(err)
		}
	}
	if enc.Len() != 0 {
		t.Fatalf("expected no output, got %d bytes", enc.Len())
	}
}

func TestCodeIntRejectsBadRange(t *testing.T) {
	enc := NewArithEncoder()
	var ctx IntContexts
	if _, err := codeInt(enc, &ctx, 2, 1, 1); !errors.Is(err, ErrInvalidSymbolContext) {
		t.Fatalf("empty range: expected ErrInvalidSymbolContext, got %v", err)
	}
	if _, err := codeInt(enc, &ctx, 0, 1<<21, 5); !errors.Is(err, ErrInvalidSymbolContext) {
		t.Fatalf("huge range: expected ErrInvalidSymbolContext, got %v", err)
	}
}
