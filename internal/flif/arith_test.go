package flif

import (
	"errors"
	"math/rand"
	"testing"
)

func randomDecisions(n int, seed int64) ([]int, []int) {
	rng := rand.New(rand.NewSource(seed))
	bits := make([]int, n)
	ctxs := make([]int, n)
	for i := range bits {
		ctxs[i] = rng.Intn(4)
		// context k emits ones with probability (k+1)/5
		if rng.Intn(5) <= ctxs[i] {
			bits[i] = 1
		}
	}
	return bits, ctxs
}

func TestArithRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 5000} {
		bits, ctxs := randomDecisions(n, int64(n))

		enc := NewArithEncoder()
		var ectx [4]ArithContext
		for i, b := range bits {
			enc.Encode(&ectx[ctxs[i]], b)
		}
		payload := enc.Finish()
		if len(payload) < 2 || payload[len(payload)-2] != 0xFF || payload[len(payload)-1] != 0xAC {
			t.Fatalf("n=%d: payload does not end with marker: % x", n, payload)
		}

		dec := NewArithDecoder(NewBitStream(payload))
		var dctx [4]ArithContext
		for i, want := range bits {
			got, err := dec.Decode(&dctx[ctxs[i]])
			if err != nil {
				t.Fatalf("n=%d: decode %d: %v", n, i, err)
			}
			if got != want {
				t.Fatalf("n=%d: bit %d = %d, want %d", n, i, got, want)
			}
		}
		if dec.Truncated() {
			t.Fatalf("n=%d: complete payload reported truncated", n)
		}
	}
}

func TestArithDecoderTruncated(t *testing.T) {
	bits, ctxs := randomDecisions(4000, 9)
	enc := NewArithEncoder()
	var ectx [4]ArithContext
	for i, b := range bits {
		enc.Encode(&ectx[ctxs[i]], b)
	}
	payload := enc.Finish()

	dec := NewArithDecoder(NewBitStream(payload[:len(payload)/2]))
	var dctx [4]ArithContext
	var err error
	for i := range bits {
		if _, err = dec.Decode(&dctx[ctxs[i]]); err != nil {
			break
		}
	}
	if !errors.Is(err, ErrStreamTruncated) {
		t.Fatalf("expected ErrStreamTruncated, got %v", err)
	}
}

func TestArithDecoderEmpty(t *testing.T) {
	dec := NewArithDecoder(NewBitStream(nil))
	var ctx ArithContext
	if _, err := dec.Decode(&ctx); !errors.Is(err, ErrStreamTruncated) {
		t.Fatalf("expected ErrStreamTruncated, got %v", err)
	}
}

func TestArithDecoderStopsAtMarker(t *testing.T) {
	enc := NewArithEncoder()
	var ctx ArithContext
	for i := 0; i < 64; i++ {
		enc.Encode(&ctx, i&1)
	}
	payload := enc.Finish()

	dec := NewArithDecoder(NewBitStream(payload))
	var dctx ArithContext
	for i := 0; i < 64; i++ {
		if _, err := dec.Decode(&dctx); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
	}
	// Past the marker the decoder keeps feeding ones without failing.
	for i := 0; i < 256; i++ {
		if _, err := dec.Decode(&dctx); err != nil {
			t.Fatalf("decode past end %d: %v", i, err)
		}
	}
	if dec.BytesConsumed() > len(payload) {
		t.Fatalf("consumed %d bytes of %d", dec.BytesConsumed(), len(payload))
	}
	if !dec.MarkerSeen() {
		t.Fatalf("expected marker to be reached")
	}
}
