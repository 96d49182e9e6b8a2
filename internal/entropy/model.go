package entropy

import "errors"

// ErrInvariant is returned by a SymbolModel's rescale pass when the
// frequency table fails its own internal consistency check. Surfacing
// this as an error rather than panicking matters because the check
// runs on every adaptively-coded symbol, i.e. on attacker-controlled
// input during decode.
var ErrInvariant = errors.New("entropy: rescale left non-zero residual")

// tblShift sizes the decoder's cumulative-frequency lookup table at
// 2^tblShift entries (spec C2: "TBLSHIFT = 7").
const tblShift = 7

// headerByte is the fixed first byte of every coder stream; the decoder
// asserts it on Init.
const headerByte = 1

// SymbolModel is an adaptive frequency model over n symbols shared by
// the encoder and the decoder. Frequencies are rescaled at a target
// total (doubling each pass up to targetRescale) so no symbol's count
// ever reaches zero, per spec C2.
type SymbolModel struct {
	n       uint32
	lgTotF  uint32
	cf      []uint32 // cumulative frequencies, len n+1
	newF    []uint32 // frequencies being accumulated since last rescale
	search  []uint32 // decoder-only lookup table, len 2^tblShift + 1

	left           int32
	nextLeft       int32
	rescale        int32
	targetRescale  int32
	incr           int32
	searchShift    uint32
	forDecoding    bool
}

// NewSymbolModel allocates a model for n symbols. lgTotF is the base-2
// log of the total frequency (the spec's convention is 14). Pass
// forDecoding=true to build the decoder's lookup table.
func NewSymbolModel(n uint32, lgTotF uint32, forDecoding bool) *SymbolModel {
	m := &SymbolModel{
		n:             n,
		lgTotF:        lgTotF,
		cf:            make([]uint32, n+1),
		newF:          make([]uint32, n+1),
		targetRescale: 2000,
		forDecoding:   forDecoding,
	}
	m.cf[n] = 1 << lgTotF
	if forDecoding {
		m.searchShift = lgTotF - tblShift
		m.search = make([]uint32, (1<<tblShift)+1)
		m.search[1<<tblShift] = n - 1
	}
	return m
}

// NewBitModel is shorthand for NewSymbolModel(2, lgTotF, forDecoding).
func NewBitModel(lgTotF uint32, forDecoding bool) *SymbolModel {
	return NewSymbolModel(2, lgTotF, forDecoding)
}

// Init (re)initialises the model to a uniform distribution over its
// symbols and performs the first rescale pass.
func (m *SymbolModel) Init() {
	total := m.cf[m.n]
	initVal := total / m.n
	rem := total % m.n
	var i uint32
	for ; i < rem; i++ {
		m.newF[i] = initVal + 1
	}
	for ; i < m.n; i++ {
		m.newF[i] = initVal
	}
	m.rescale = int32(m.n>>4) | 2
	m.nextLeft = 0
	// Init only ever rescales against the model's fixed n/lgTotF, never
	// against data fed by a caller, so the residual check below cannot
	// fail here; the error return exists for update's benefit.
	_ = m.dorescale()
}

func (m *SymbolModel) dorescale() error {
	if m.nextLeft != 0 {
		m.incr++
		m.left = m.nextLeft
		m.nextLeft = 0
		return nil
	}
	if m.rescale != m.targetRescale {
		m.rescale <<= 1
		if m.rescale > m.targetRescale {
			m.rescale = m.targetRescale
		}
	}
	c := m.cf[m.n]
	missing := int32(c)
	for i := int(m.n) - 1; i > 0; i-- {
		tmp := int32(m.newF[i])
		c -= uint32(tmp)
		m.cf[i] = c
		tmp = tmp>>1 | 1
		missing -= tmp
		m.newF[i] = uint32(tmp)
	}
	if c != m.newF[0] {
		return ErrInvariant
	}
	nf0 := int32(m.newF[0])>>1 | 1
	missing -= nf0
	m.newF[0] = uint32(nf0)
	m.incr = missing / m.rescale
	m.nextLeft = missing % m.rescale
	m.left = m.rescale - m.nextLeft

	if m.search != nil {
		i := m.n
		for i != 0 {
			end := (m.cf[i] - 1) >> m.searchShift
			i--
			start := m.cf[i] >> m.searchShift
			for start <= end {
				m.search[start] = i
				start++
			}
		}
	}
	return nil
}

// freq returns (symbolFreq, lowerCumulativeFreq) for sym.
func (m *SymbolModel) freq(sym uint32) (uint32, uint32) {
	lt := m.cf[sym]
	return m.cf[sym+1] - lt, lt
}

// symbolFor resolves the symbol whose cumulative-frequency interval
// contains ltFreq, using the decoder lookup table plus a binary search
// refinement.
func (m *SymbolModel) symbolFor(ltFreq uint32) uint32 {
	idx := ltFreq >> m.searchShift
	lo := m.search[idx]
	hi := m.search[idx+1] + 1
	for lo+1 < hi {
		mid := (lo + hi) >> 1
		if ltFreq < m.cf[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// update records that sym occurred, rescaling first if the model's
// rescale countdown has elapsed.
func (m *SymbolModel) update(sym uint32) error {
	if m.left <= 0 {
		if err := m.dorescale(); err != nil {
			return err
		}
	}
	m.left--
	m.newF[sym] += uint32(m.incr)
	return nil
}
