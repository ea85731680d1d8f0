package tiffwriter

import (
	"encoding/binary"
	"sort"
)

// TIFF tags used by the container.
const (
	tagNewSubfileType   = 254
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagXResolution      = 282
	tagYResolution      = 283
	tagPlanarConfig     = 284
	tagResolutionUnit   = 296
	tagSoftware         = 305
	tagTileWidth        = 322
	tagTileLength       = 323
	tagTileOffsets      = 324
	tagTileByteCounts   = 325
)

// Field types.
const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeLong8    = 16
)

type entry struct {
	tag        uint16
	typ        uint16
	count      uint64
	data       []byte // encoded value; inlined when it fits in 8 bytes
	dataOffset uint64 // assigned during layout for out of line values
}

type directory struct {
	entries []entry
}

func (d *directory) add(e entry) {
	d.entries = append(d.entries, e)
}

// sortEntries orders entries ascending by tag, as the format requires.
func (d *directory) sortEntries() {
	sort.Slice(d.entries, func(i, j int) bool {
		return d.entries[i].tag < d.entries[j].tag
	})
}

func entryShorts(tag uint16, vs ...uint16) entry {
	data := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return entry{tag: tag, typ: typeShort, count: uint64(len(vs)), data: data}
}

func entryLong(tag uint16, v uint32) entry {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	return entry{tag: tag, typ: typeLong, count: 1, data: data}
}

func entryLong8s(tag uint16, vs []uint64) entry {
	data := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(data[8*i:], v)
	}
	return entry{tag: tag, typ: typeLong8, count: uint64(len(vs)), data: data}
}

func entryASCII(tag uint16, s string) entry {
	data := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint64(len(data)), data: data}
}

func entryRational(tag uint16, num, den uint32) entry {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, num)
	binary.LittleEndian.PutUint32(data[4:], den)
	return entry{tag: tag, typ: typeRational, count: 1, data: data}
}
