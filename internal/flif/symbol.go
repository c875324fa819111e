package flif

import (
	"fmt"
	"math/bits"
)

// maxExponent bounds the magnitude of coded integers to below 2^maxExponent.
const maxExponent = 20

// IntContexts is the adaptive context set of one near-zero integer coder.
// Every pixel-model leaf owns one, as do the header and tree coders.
type IntContexts struct {
	zero ArithContext
	sign ArithContext
	exp  [maxExponent][2]ArithContext
	mant [maxExponent]ArithContext
}

// codeInt codes v in [lo, hi] as a zero flag, a sign, a unary exponent and
// the mantissa bits below the leading one. Decisions already implied by the
// bounds are skipped, so a decoded value can never leave [lo, hi]. When
// decoding, v is ignored.
func codeInt(bc bitCoder, ctx *IntContexts, lo, hi, v int) (int, error) {
	if lo > hi {
		return 0, fmt.Errorf("%w: empty range [%d,%d]", ErrInvalidSymbolContext, lo, hi)
	}
	if lo == hi {
		return lo, nil
	}

	if lo <= 0 && hi >= 0 {
		z, err := bc.Code(&ctx.zero, boolBit(v == 0))
		if err != nil {
			return 0, err
		}
		if z == 1 {
			return 0, nil
		}
	}

	var positive bool
	switch {
	case lo >= 0:
		positive = true
	case hi <= 0:
		positive = false
	default:
		s, err := bc.Code(&ctx.sign, boolBit(v > 0))
		if err != nil {
			return 0, err
		}
		positive = s == 1
	}

	sign := 0
	amin, amax := -hi, -lo
	if positive {
		sign = 1
		amin, amax = lo, hi
	}
	if amin < 1 {
		amin = 1
	}
	a := v
	if a < 0 {
		a = -a
	}

	emin := bits.Len(uint(amin)) - 1
	emax := bits.Len(uint(amax)) - 1
	if emax >= maxExponent {
		return 0, fmt.Errorf("%w: magnitude %d exceeds coder range", ErrInvalidSymbolContext, amax)
	}
	ea := bits.Len(uint(a)) - 1

	e := emin
	for e < emax {
		bit, err := bc.Code(&ctx.exp[e][sign], boolBit(e == ea))
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		e++
	}

	r := 1 << e
	for pos := e - 1; pos >= 0; pos-- {
		one := r | (1 << pos)
		if one > amax {
			continue
		}
		if r|((1<<pos)-1) < amin {
			r = one
			continue
		}
		bit, err := bc.Code(&ctx.mant[pos], (a>>pos)&1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			r = one
		}
	}

	if !positive {
		return -r, nil
	}
	return r, nil
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}
