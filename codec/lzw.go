package codec

// bitWriter packs variable-width codes most significant bit first.
type bitWriter struct {
	buf   []byte
	bits  uint32
	nBits uint
}

func (w *bitWriter) writeCode(code uint32, width uint) {
	w.bits |= code << (32 - width - w.nBits)
	w.nBits += width
	for w.nBits >= 8 {
		w.buf = append(w.buf, byte(w.bits>>24))
		w.bits <<= 8
		w.nBits -= 8
	}
}

func (w *bitWriter) flush() {
	if w.nBits > 0 {
		w.buf = append(w.buf, byte(w.bits>>24))
		w.bits, w.nBits = 0, 0
	}
}

const (
	lzwClear   = 256
	lzwEOI     = 257
	lzwMaxCode = 1<<12 - 1
)

// encodeLZW compresses src with the TIFF flavor of LZW: 8-bit literals,
// MSB-first bit packing, and code widths that grow one code earlier than
// in the GIF flavor. The output decodes with golang.org/x/image/tiff/lzw.
func encodeLZW(src []byte) []byte {
	w := &bitWriter{buf: make([]byte, 0, len(src)/2+16)}
	width := uint(9)
	hi := uint32(lzwEOI) // last assigned code
	overflow := uint32(1) << width
	table := make(map[uint32]uint32, 1<<12)

	w.writeCode(lzwClear, width)
	if len(src) == 0 {
		w.writeCode(lzwEOI, width)
		w.flush()
		return w.buf
	}

	code := uint32(src[0])
	for _, x := range src[1:] {
		key := code<<8 | uint32(x)
		if c, ok := table[key]; ok {
			code = c
			continue
		}
		w.writeCode(code, width)
		code = uint32(x)

		hi++
		if hi+1 == overflow && width < 12 {
			width++
			overflow <<= 1
		}
		if hi == lzwMaxCode {
			// Out of codes. The decoder stops building entries at this
			// point, so start over with a fresh table.
			w.writeCode(lzwClear, width)
			width = 9
			hi = lzwEOI
			overflow = 1 << width
			table = make(map[uint32]uint32, 1<<12)
			continue
		}
		table[key] = hi
	}

	w.writeCode(code, width)
	hi++
	if hi+1 == overflow && width < 12 {
		width++
	}
	if hi == lzwMaxCode {
		w.writeCode(lzwClear, width)
		width = 9
	}
	w.writeCode(lzwEOI, width)
	w.flush()
	return w.buf
}
