// Package entropy implements the chunked arithmetic/range coder used to
// turn point-item residuals into a compact byte stream (spec C2),
// together with its adaptive symbol models. The coder is a 32-bit
// carryless range coder: Init/Done bracket a stream, EncodeSymbol
// drives an adaptive SymbolModel, and EncodeBits/EncodeByte/... provide
// a bypass path for high-entropy values that skip modelling entirely.
package entropy

import "github.com/jblindsay/lasz/internal/bytestream"

const (
	codeBits   = 32
	topValue   = uint32(1) << (codeBits - 1)
	shiftBits  = codeBits - 9
	extraBits  = (codeBits-2)%8 + 1
	bottomVal  = topValue >> 8
)

// Encoder is a range encoder writing into a bytestream.Sink.
type Encoder struct {
	out       bytestream.Sink
	low       uint32
	rng       uint32
	help      uint32 // run-length of pending 0xFF/0x00 filler bytes
	buffer    byte
	byteCount uint32
}

// NewEncoder creates an encoder. Call Init before encoding anything.
func NewEncoder() *Encoder { return &Encoder{} }

// Init binds the encoder to out and writes its fixed header byte.
func (e *Encoder) Init(out bytestream.Sink) error {
	e.out = out
	e.low = 0
	e.rng = topValue
	e.buffer = headerByte
	e.help = 0
	e.byteCount = 0
	return nil
}

func (e *Encoder) putByte(b byte) error { return e.out.WriteByte(b) }

func (e *Encoder) normalize() error {
	for e.rng <= bottomVal {
		switch {
		case e.low < uint32(0xff)<<shiftBits:
			if err := e.putByte(e.buffer); err != nil {
				return err
			}
			for ; e.help > 0; e.help-- {
				if err := e.putByte(0xff); err != nil {
					return err
				}
			}
			e.buffer = byte(e.low >> shiftBits)
		case e.low&topValue != 0:
			if err := e.putByte(e.buffer + 1); err != nil {
				return err
			}
			for ; e.help > 0; e.help-- {
				if err := e.putByte(0); err != nil {
					return err
				}
			}
			e.buffer = byte(e.low >> shiftBits)
		default:
			e.help++
		}
		e.rng <<= 8
		e.low = (e.low << 8) & (topValue - 1)
		e.byteCount++
	}
	return nil
}

// EncodeSymbol codes sym against model, updating the model adaptively.
func (e *Encoder) EncodeSymbol(model *SymbolModel, sym uint32) error {
	syFreq, ltFreq := model.freq(sym)
	if err := e.normalize(); err != nil {
		return err
	}
	r := e.rng >> model.lgTotF
	tmp := r * ltFreq
	e.low += tmp
	if (ltFreq+syFreq)>>model.lgTotF != 0 {
		e.rng -= tmp
	} else {
		e.rng = r * syFreq
	}
	return model.update(sym)
}

// EncodeBits writes sym's low bits bits (1..32) with no modelling,
// splitting into a <=21-bit prefix and a recursive remainder the same
// way the spec's bypass path does.
func (e *Encoder) EncodeBits(bits uint32, sym uint32) error {
	if bits > 21 {
		if err := e.encodeRaw(16, sym&0xffff); err != nil {
			return err
		}
		return e.EncodeBits(bits-16, sym>>16)
	}
	return e.encodeRaw(bits, sym)
}

func (e *Encoder) encodeRaw(bits uint32, sym uint32) error {
	if err := e.normalize(); err != nil {
		return err
	}
	r := e.rng >> bits
	tmp := r * sym
	e.low += tmp
	if (sym+1)>>bits != 0 {
		e.rng -= tmp
	} else {
		e.rng = r
	}
	return nil
}

// EncodeBit is EncodeBits(1, bit) shorthand.
func (e *Encoder) EncodeBit(bit uint32) error { return e.encodeRaw(1, bit) }

// EncodeByte writes a raw byte with no modelling.
func (e *Encoder) EncodeByte(v uint8) error { return e.encodeRaw(8, uint32(v)) }

// EncodeU16 writes a raw u16 with no modelling.
func (e *Encoder) EncodeU16(v uint16) error { return e.encodeRaw(16, uint32(v)) }

// EncodeU32 writes a raw u32 with no modelling, as two 16-bit halves.
func (e *Encoder) EncodeU32(v uint32) error {
	if err := e.EncodeU16(uint16(v & 0xffff)); err != nil {
		return err
	}
	return e.EncodeU16(uint16(v >> 16))
}

// EncodeU64 writes a raw u64 with no modelling, as two 32-bit halves.
func (e *Encoder) EncodeU64(v uint64) error {
	if err := e.EncodeU32(uint32(v & 0xffffffff)); err != nil {
		return err
	}
	return e.EncodeU32(uint32(v >> 32))
}

// Done flushes the carry and trailing bytes and detaches from the sink.
// The return value is the number of bytes the coder itself emitted
// (excluding the caller's own framing), mirroring the C original.
func (e *Encoder) Done() (uint32, error) {
	if err := e.normalize(); err != nil {
		return 0, err
	}
	e.byteCount += 5
	var tmp uint32
	if (e.low & (bottomVal - 1)) < ((e.byteCount & 0xffffff) >> 1) {
		tmp = e.low >> shiftBits
	} else {
		tmp = (e.low >> shiftBits) + 1
	}
	if tmp > 0xff {
		if err := e.putByte(e.buffer + 1); err != nil {
			return 0, err
		}
		for ; e.help > 0; e.help-- {
			if err := e.putByte(0); err != nil {
				return 0, err
			}
		}
	} else {
		if err := e.putByte(e.buffer); err != nil {
			return 0, err
		}
		for ; e.help > 0; e.help-- {
			if err := e.putByte(0xff); err != nil {
				return 0, err
			}
		}
	}
	if err := e.putByte(byte(tmp & 0xff)); err != nil {
		return 0, err
	}
	if err := e.putByte(byte((e.byteCount >> 16) & 0xff)); err != nil {
		return 0, err
	}
	if err := e.putByte(byte((e.byteCount >> 8) & 0xff)); err != nil {
		return 0, err
	}
	if err := e.putByte(byte(e.byteCount & 0xff)); err != nil {
		return 0, err
	}
	e.out = nil
	return e.byteCount, nil
}
