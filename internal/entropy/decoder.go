package entropy

import (
	"errors"

	"github.com/jblindsay/lasz/internal/bytestream"
)

// ErrBadHeaderByte is returned by Init when the stream's fixed first
// byte does not match what the encoder always writes.
var ErrBadHeaderByte = errors.New("entropy: bad coder header byte")

// Decoder is a range decoder reading from a bytestream.Source.
type Decoder struct {
	in     bytestream.Source
	low    uint32
	rng    uint32
	help   uint32
	buffer byte
}

// NewDecoder creates a decoder. Call Init before decoding anything.
func NewDecoder() *Decoder { return &Decoder{} }

// Init binds the decoder to in and checks its fixed header byte.
func (d *Decoder) Init(in bytestream.Source) error {
	d.in = in
	b, err := in.ReadByte()
	if err != nil {
		return err
	}
	if b != headerByte {
		return ErrBadHeaderByte
	}
	buf, err := in.ReadByte()
	if err != nil {
		return err
	}
	d.buffer = buf
	d.low = uint32(buf) >> (8 - extraBits)
	d.rng = uint32(1) << extraBits
	return nil
}

func (d *Decoder) normalize() error {
	for d.rng <= bottomVal {
		next, err := d.in.ReadByte()
		if err != nil {
			return err
		}
		d.low = (d.low << 8) | ((uint32(d.buffer) << extraBits) & 0xff)
		d.buffer = next
		d.low |= uint32(next) >> (8 - extraBits)
		d.rng <<= 8
	}
	return nil
}

// DecodeSymbol decodes one symbol against model, updating it adaptively.
func (d *Decoder) DecodeSymbol(model *SymbolModel) (uint32, error) {
	if err := d.normalize(); err != nil {
		return 0, err
	}
	d.help = d.rng >> model.lgTotF
	ltFreq := d.low / d.help
	if ltFreq>>model.lgTotF != 0 {
		ltFreq = (1 << model.lgTotF) - 1
	}
	sym := model.symbolFor(ltFreq)
	syFreq, lt := model.freq(sym)

	tmp := d.help * lt
	d.low -= tmp
	if lt+syFreq < (1 << model.lgTotF) {
		d.rng = d.help * syFreq
	} else {
		d.rng -= tmp
	}
	if err := model.update(sym); err != nil {
		return 0, err
	}
	return sym, nil
}

func (d *Decoder) culshift(shift uint32) (uint32, error) {
	if err := d.normalize(); err != nil {
		return 0, err
	}
	d.help = d.rng >> shift
	tmp := d.low / d.help
	if tmp>>shift != 0 {
		return (uint32(1) << shift) - 1, nil
	}
	return tmp, nil
}

func (d *Decoder) updateRaw(syFreq, ltFreq, totFreq uint32) {
	tmp := d.help * ltFreq
	d.low -= tmp
	if ltFreq+syFreq < totFreq {
		d.rng = d.help * syFreq
	} else {
		d.rng -= tmp
	}
}

// DecodeBits is the inverse of Encoder.EncodeBits.
func (d *Decoder) DecodeBits(bits uint32) (uint32, error) {
	if bits > 21 {
		lo, err := d.decodeRaw(16)
		if err != nil {
			return 0, err
		}
		hi, err := d.DecodeBits(bits - 16)
		if err != nil {
			return 0, err
		}
		return (hi << 16) | lo, nil
	}
	return d.decodeRaw(bits)
}

func (d *Decoder) decodeRaw(bits uint32) (uint32, error) {
	tmp, err := d.culshift(bits)
	if err != nil {
		return 0, err
	}
	d.updateRaw(1, tmp, uint32(1)<<bits)
	return tmp, nil
}

// DecodeBit is DecodeBits(1) shorthand.
func (d *Decoder) DecodeBit() (uint32, error) { return d.decodeRaw(1) }

// DecodeByte is the inverse of Encoder.EncodeByte.
func (d *Decoder) DecodeByte() (uint8, error) {
	v, err := d.decodeRaw(8)
	return uint8(v), err
}

// DecodeU16 is the inverse of Encoder.EncodeU16.
func (d *Decoder) DecodeU16() (uint16, error) {
	v, err := d.decodeRaw(16)
	return uint16(v), err
}

// DecodeU32 is the inverse of Encoder.EncodeU32.
func (d *Decoder) DecodeU32() (uint32, error) {
	lo, err := d.DecodeU16()
	if err != nil {
		return 0, err
	}
	hi, err := d.DecodeU16()
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// DecodeU64 is the inverse of Encoder.EncodeU64.
func (d *Decoder) DecodeU64() (uint64, error) {
	lo, err := d.DecodeU32()
	if err != nil {
		return 0, err
	}
	hi, err := d.DecodeU32()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// Done consumes the coder's trailing bytes and detaches from the source.
func (d *Decoder) Done() error {
	if err := d.normalize(); err != nil {
		return err
	}
	d.in = nil
	return nil
}
