package flif

// ArithEncoder is the MQ encoder matching ArithDecoder. It shares the
// probability table and the ArithContext state machine with the decoder, so
// the two stay in lockstep as long as they code the same decisions in the
// same contexts.
type ArithEncoder struct {
	a   uint32
	c   uint32
	ct  int
	buf []byte
	bp  int
}

// NewArithEncoder returns an encoder in the INITENC state.
func NewArithEncoder() *ArithEncoder {
	return &ArithEncoder{
		a:   defaultAValue,
		ct:  12,
		buf: make([]byte, 0, 1024),
		bp:  -1,
	}
}

// Encode codes bit in ctx.
func (enc *ArithEncoder) Encode(ctx *ArithContext, bit int) {
	if bit == ctx.MPS() {
		enc.codeMPS(ctx)
	} else {
		enc.codeLPS(ctx)
	}
}

// Code implements bitCoder.
func (enc *ArithEncoder) Code(ctx *ArithContext, bit int) (int, error) {
	if bit != 0 {
		bit = 1
	}
	enc.Encode(ctx, bit)
	return bit, nil
}

// Len returns the number of bytes emitted so far.
func (enc *ArithEncoder) Len() int { return len(enc.buf) }

func (enc *ArithEncoder) codeMPS(ctx *ArithContext) {
	qe := arithQeTable[ctx.i]
	q := uint32(qe.qe)

	enc.a -= q
	if enc.a&defaultAValue == 0 {
		if enc.a < q {
			enc.a = q
		} else {
			enc.c += q
		}
		ctx.i = qe.nmps
		enc.renorm()
		return
	}
	enc.c += q
}

func (enc *ArithEncoder) codeLPS(ctx *ArithContext) {
	qe := arithQeTable[ctx.i]
	q := uint32(qe.qe)

	enc.a -= q
	if enc.a < q {
		enc.c += q
	} else {
		enc.a = q
	}
	if qe.switchM {
		ctx.mps = !ctx.mps
	}
	ctx.i = qe.nlps
	enc.renorm()
}

func (enc *ArithEncoder) renorm() {
	for enc.a&defaultAValue == 0 {
		enc.a <<= 1
		enc.c <<= 1
		enc.ct--
		if enc.ct == 0 {
			enc.byteOut()
		}
	}
}

// byteOut emits one byte from the code register, stuffing a zero bit after
// every 0xFF so that no marker can appear inside the payload.
func (enc *ArithEncoder) byteOut() {
	if enc.bp < 0 {
		enc.buf = append(enc.buf, byte(enc.c>>19))
		enc.bp = 0
		enc.c &= 0x7FFFF
		enc.ct = 8
		return
	}

	if enc.buf[enc.bp] == 0xFF {
		enc.emit(20)
		return
	}
	if enc.c >= 0x8000000 {
		enc.buf[enc.bp]++
		if enc.buf[enc.bp] == 0xFF {
			enc.c &= 0x7FFFFFF
			enc.emit(20)
			return
		}
	}
	enc.emit(19)
}

func (enc *ArithEncoder) emit(shift uint) {
	enc.bp++
	enc.buf = append(enc.buf, byte(enc.c>>shift))
	if shift == 20 {
		enc.c &= 0xFFFFF
		enc.ct = 7
	} else {
		enc.c &= 0x7FFFF
		enc.ct = 8
	}
}

// Finish flushes the coder and returns the payload terminated by the 0xFF 0xAC
// marker the decoder stops at.
func (enc *ArithEncoder) Finish() []byte {
	temp := enc.c + enc.a
	enc.c |= 0xFFFF
	if enc.c >= temp {
		enc.c -= defaultAValue
	}
	enc.c <<= uint(enc.ct)
	enc.byteOut()
	enc.c <<= uint(enc.ct)
	enc.byteOut()

	out := enc.buf
	if len(out) > 0 && out[len(out)-1] == 0xFF {
		out = out[:len(out)-1]
	}
	out = append(out[:len(out):len(out)], 0xFF, 0xAC)
	return out
}
