package lidario

// pointStats accumulates bounding box, point count and per-return
// counts while a file is being written, so Close can back-patch the
// header fields that aren't known until every point has gone by.
type pointStats struct {
	haveBounds       bool
	minX, minY, minZ float64
	maxX, maxY, maxZ float64
	returnCounts     [15]uint64
	count            uint64
}

// track folds one marshaled point record into the running statistics.
// buf's first 14 bytes (X,Y,Z,Intensity) are laid out identically
// across every point format, legacy or extended; byte 14 holds the
// return number in every format, in 3 bits (0-5) or 4 bits (6-10).
func (s *pointStats) track(buf []byte, format uint8, h *Header) {
	x := float64(getI32(buf, 0))*h.XScaleFactor + h.XOffset
	y := float64(getI32(buf, 4))*h.YScaleFactor + h.YOffset
	z := float64(getI32(buf, 8))*h.ZScaleFactor + h.ZOffset
	if !s.haveBounds {
		s.minX, s.maxX = x, x
		s.minY, s.maxY = y, y
		s.minZ, s.maxZ = z, z
		s.haveBounds = true
	} else {
		if x < s.minX {
			s.minX = x
		}
		if x > s.maxX {
			s.maxX = x
		}
		if y < s.minY {
			s.minY = y
		}
		if y > s.maxY {
			s.maxY = y
		}
		if z < s.minZ {
			s.minZ = z
		}
		if z > s.maxZ {
			s.maxZ = z
		}
	}
	var ret uint8
	if format >= 6 {
		ret = ExtendedReturnsByte(buf[14]).ReturnNumber()
	} else {
		ret = PointBitField(buf[14]).ReturnNumber()
	}
	if ret >= 1 && int(ret) <= len(s.returnCounts) {
		s.returnCounts[ret-1]++
	}
	s.count++
}

// applyTo back-patches h with the accumulated statistics. The legacy
// u32 fields are set from the same counts as their >= 1.4 u64
// counterparts; WriteHeader decides whether the legacy fields actually
// get zeroed on the wire (spec: "legacy counters are zeroed when point
// format >= 6").
func (s *pointStats) applyTo(h *Header) {
	h.NumberOfPointRecords = s.count
	h.NumberOfPointsByReturn = s.returnCounts
	h.LegacyNumberOfPointRecords = uint32(s.count)
	for i := 0; i < len(h.LegacyNumberOfPointsByReturn); i++ {
		h.LegacyNumberOfPointsByReturn[i] = uint32(s.returnCounts[i])
	}
	if s.haveBounds {
		h.MinX, h.MaxX = s.minX, s.maxX
		h.MinY, h.MaxY = s.minY, s.maxY
		h.MinZ, h.MaxZ = s.minZ, s.maxZ
	}
}
