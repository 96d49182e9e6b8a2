package lidario

import (
	"encoding/binary"
	"math"
)

func getU16(p []byte, off int) uint16  { return binary.LittleEndian.Uint16(p[off:]) }
func putU16(p []byte, off int, v uint16) { binary.LittleEndian.PutUint16(p[off:], v) }

func getI16(p []byte, off int) int16  { return int16(getU16(p, off)) }
func putI16(p []byte, off int, v int16) { putU16(p, off, uint16(v)) }

func getU32(p []byte, off int) uint32  { return binary.LittleEndian.Uint32(p[off:]) }
func putU32(p []byte, off int, v uint32) { binary.LittleEndian.PutUint32(p[off:], v) }

func getI32(p []byte, off int) int32  { return int32(getU32(p, off)) }
func putI32(p []byte, off int, v int32) { putU32(p, off, uint32(v)) }

func getU64(p []byte, off int) uint64  { return binary.LittleEndian.Uint64(p[off:]) }
func putU64(p []byte, off int, v uint64) { binary.LittleEndian.PutUint64(p[off:], v) }

func getF64(p []byte, off int) float64  { return math.Float64frombits(getU64(p, off)) }
func putF64(p []byte, off int, v float64) { putU64(p, off, math.Float64bits(v)) }

func float32bits(v float32) uint32     { return math.Float32bits(v) }
func float32frombits(v uint32) float32 { return math.Float32frombits(v) }
