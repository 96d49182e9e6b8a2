// Package intcompress implements the context-indexed predictive
// compressor for signed integers used throughout the item codecs
// (spec C3). It sits directly on top of internal/entropy: for each of
// K caller-chosen contexts it keeps one symbol model over the bit
// length of the residual, plus either a small corrector model (short
// residuals) or a bypass path (long residuals) for the residual body.
package intcompress

import (
	"fmt"

	"github.com/jblindsay/lasz/internal/entropy"
)

const lgTotF = 14

// corrBits is the bit-length bucket below which a residual's value is
// coded with its own adaptive model instead of falling back to bypass.
const corrBits = 8

// Compressor compresses signed 32-bit residuals against a prediction,
// using one of K independent contexts (spec: "K chosen by the item
// codec, typically 2-6").
type Compressor struct {
	k        uint32
	bits     uint32 // max bit length considered, typically 32
	kModels  []*entropy.SymbolModel // length k: bit-length-of-residual model
	corrModels [][]*entropy.SymbolModel // [k][corrBits+1] small-residual correctors
	forDecode bool
}

// New allocates a compressor with k contexts, each predicting a
// residual whose absolute value fits in up to bits bits (32 for a
// normal int32 field).
func New(k uint32, bits uint32, forDecode bool) *Compressor {
	c := &Compressor{k: k, bits: bits, forDecode: forDecode}
	c.kModels = make([]*entropy.SymbolModel, k)
	c.corrModels = make([][]*entropy.SymbolModel, k)
	for ctx := uint32(0); ctx < k; ctx++ {
		c.kModels[ctx] = entropy.NewSymbolModel(bits+1, lgTotF, forDecode)
		c.kModels[ctx].Init()
		models := make([]*entropy.SymbolModel, corrBits+1)
		for kk := 0; kk <= corrBits; kk++ {
			n := uint32(1) << uint(kk)
			if n < 2 {
				n = 2
			}
			m := entropy.NewSymbolModel(n, lgTotF, forDecode)
			m.Init()
			models[kk] = m
		}
		c.corrModels[ctx] = models
	}
	return c
}

// NumContexts returns the number of contexts this compressor was built
// with (K in the constructor).
func (c *Compressor) NumContexts() uint32 { return c.k }

func bitLength(v int32) uint32 {
	u := uint32(v)
	if v < 0 {
		u = uint32(-v)
	}
	n := uint32(0)
	for u != 0 {
		n++
		u >>= 1
	}
	return n
}

// Compress codes prediction-relative residual = actual - prediction
// under context ctx. ctx must be < k.
func (c *Compressor) Compress(enc *entropy.Encoder, prediction, actual int32, ctx uint32) error {
	if ctx >= c.k {
		return fmt.Errorf("intcompress: context %d out of range [0,%d)", ctx, c.k)
	}
	residual := actual - prediction
	kk := bitLength(residual)
	if kk > c.bits {
		kk = c.bits
	}
	if err := enc.EncodeSymbol(c.kModels[ctx], kk); err != nil {
		return err
	}
	if kk == 0 {
		return nil
	}
	if kk <= corrBits {
		n := int32(1) << kk
		var sym uint32
		if residual >= 0 {
			sym = uint32(residual)
		} else {
			sym = uint32(residual + n - 1)
		}
		return enc.EncodeSymbol(c.corrModels[ctx][kk], sym)
	}
	// Bypass: low (kk-1) bits of |residual|, then an explicit sign bit.
	mag := residual
	if mag < 0 {
		mag = -mag
	}
	low := uint32(mag) & ((1 << (kk - 1)) - 1)
	if err := enc.EncodeBits(kk-1, low); err != nil {
		return err
	}
	sign := uint32(0)
	if residual < 0 {
		sign = 1
	}
	return enc.EncodeBit(sign)
}

// Decompress is the inverse of Compress: it returns prediction + residual.
func (c *Compressor) Decompress(dec *entropy.Decoder, prediction int32, ctx uint32) (int32, error) {
	if ctx >= c.k {
		return 0, fmt.Errorf("intcompress: context %d out of range [0,%d)", ctx, c.k)
	}
	kk, err := dec.DecodeSymbol(c.kModels[ctx])
	if err != nil {
		return 0, err
	}
	if kk == 0 {
		return prediction, nil
	}
	var residual int32
	if kk <= corrBits {
		sym, err := dec.DecodeSymbol(c.corrModels[ctx][kk])
		if err != nil {
			return 0, err
		}
		half := uint32(1) << (kk - 1)
		n := int32(1) << kk
		if sym >= half {
			residual = int32(sym)
		} else {
			residual = int32(sym) - (n - 1)
		}
	} else {
		low, err := dec.DecodeBits(kk - 1)
		if err != nil {
			return 0, err
		}
		sign, err := dec.DecodeBit()
		if err != nil {
			return 0, err
		}
		mag := int32(low) | (1 << (kk - 1))
		if sign != 0 {
			residual = -mag
		} else {
			residual = mag
		}
	}
	return prediction + residual, nil
}
