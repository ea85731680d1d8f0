// Package tiffwriter writes pyramidal tiled BigTIFF containers. All image
// payloads stream to disk as they arrive; the directory chain is assembled
// in memory and written once by Finish. The output appears at its final
// path only after a successful Finish, via a temp file rename.
package tiffwriter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"isyntax2tiff/codec"
)

const softwareName = "isyntax2tiff 1.0"

// LevelInfo describes one pyramid level directory.
type LevelInfo struct {
	Width       int64
	Height      int64
	TileSize    int
	Compression codec.Compression
	Subfile     uint32 // 0 full resolution, 1 reduced
	Description string // ImageDescription, normally set on the first level only
}

type Writer struct {
	f  *os.File
	cw *countingWriter
	bw *bufio.Writer

	tmpPath   string
	finalPath string

	pixelSizeX float64 // micrometers per pixel
	pixelSizeY float64

	dirs     []*directory
	finished bool
}

type countingWriter struct {
	w      io.Writer
	offset uint64
}

func (cw *countingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	if err == nil {
		cw.offset += uint64(n)
	}
	return n, err
}

// Create opens a temp file next to path and writes the BigTIFF header.
// Pixel sizes are in micrometers per pixel; non-positive values fall back
// to 1.0.
func Create(path string, pixelSizeX, pixelSizeY float64) (*Writer, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("error creating output file: %v", err)
	}
	cw := &countingWriter{w: f}
	w := &Writer{
		f:          f,
		cw:         cw,
		bw:         bufio.NewWriterSize(cw, 8*1024*1024),
		tmpPath:    tmpPath,
		finalPath:  path,
		pixelSizeX: pixelSizeX,
		pixelSizeY: pixelSizeY,
	}

	// BigTIFF header: byte order, version 43, offset size 8, then a
	// placeholder for the first directory offset that Finish patches in.
	var hdr [16]byte
	hdr[0], hdr[1] = 'I', 'I'
	binary.LittleEndian.PutUint16(hdr[2:], 43)
	binary.LittleEndian.PutUint16(hdr[4:], 8)
	binary.LittleEndian.PutUint16(hdr[6:], 0)
	if _, err := w.bw.Write(hdr[:]); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("error writing header: %v", err)
	}
	return w, nil
}

func (w *Writer) getOffset() uint64 {
	return w.cw.offset + uint64(w.bw.Buffered())
}

// pad advances the stream to an even offset. Word alignment keeps the
// container friendly to strict readers.
func (w *Writer) pad() {
	if w.getOffset()%2 != 0 {
		w.bw.WriteByte(0)
	}
}

// WriteLevel streams one level's tile payloads and queues its directory.
// Tiles are row major and must cover the level grid completely; levels
// must arrive finest first.
func (w *Writer) WriteLevel(info LevelInfo, tiles [][]byte) error {
	if w.finished {
		return fmt.Errorf("writer already finished")
	}
	if info.Width <= 0 || info.Height <= 0 || info.TileSize <= 0 {
		return fmt.Errorf("invalid level geometry %dx%d tile %d", info.Width, info.Height, info.TileSize)
	}
	t := int64(info.TileSize)
	across := (info.Width + t - 1) / t
	down := (info.Height + t - 1) / t
	if int64(len(tiles)) != across*down {
		return fmt.Errorf("level %dx%d needs %d tiles, got %d", info.Width, info.Height, across*down, len(tiles))
	}

	offsets := make([]uint64, len(tiles))
	counts := make([]uint64, len(tiles))
	for i, data := range tiles {
		if len(data) == 0 {
			return fmt.Errorf("tile %d has no payload", i)
		}
		w.pad()
		offsets[i] = w.getOffset()
		counts[i] = uint64(len(data))
		if _, err := w.bw.Write(data); err != nil {
			return fmt.Errorf("error writing tile %d: %v", i, err)
		}
	}

	photometric := uint16(2) // RGB
	if info.Compression == codec.JPEG {
		photometric = 6 // YCbCr inside the JPEG streams
	}
	xr := resolutionRational(w.pixelSizeX)
	yr := resolutionRational(w.pixelSizeY)

	d := &directory{}
	d.add(entryLong(tagNewSubfileType, info.Subfile))
	d.add(entryLong(tagImageWidth, uint32(info.Width)))
	d.add(entryLong(tagImageLength, uint32(info.Height)))
	d.add(entryShorts(tagBitsPerSample, 8, 8, 8))
	d.add(entryShorts(tagCompression, info.Compression.TIFFTag()))
	d.add(entryShorts(tagPhotometric, photometric))
	if info.Description != "" {
		d.add(entryASCII(tagImageDescription, info.Description))
	}
	d.add(entryShorts(tagSamplesPerPixel, 3))
	d.add(entryRational(tagXResolution, xr[0], xr[1]))
	d.add(entryRational(tagYResolution, yr[0], yr[1]))
	d.add(entryShorts(tagPlanarConfig, 1))
	d.add(entryShorts(tagResolutionUnit, 3)) // centimeters
	d.add(entryASCII(tagSoftware, softwareName))
	d.add(entryLong(tagTileWidth, uint32(info.TileSize)))
	d.add(entryLong(tagTileLength, uint32(info.TileSize)))
	d.add(entryLong8s(tagTileOffsets, offsets))
	d.add(entryLong8s(tagTileByteCounts, counts))
	w.dirs = append(w.dirs, d)
	return nil
}

// WriteAuxiliary appends a single strip JPEG directory for an associated
// image such as a macro or label.
func (w *Writer) WriteAuxiliary(description string, width, height int, jpegData []byte) error {
	if w.finished {
		return fmt.Errorf("writer already finished")
	}
	if width <= 0 || height <= 0 || len(jpegData) == 0 {
		return fmt.Errorf("invalid auxiliary image %q", description)
	}
	w.pad()
	stripOffset := w.getOffset()
	if _, err := w.bw.Write(jpegData); err != nil {
		return fmt.Errorf("error writing auxiliary image %q: %v", description, err)
	}

	d := &directory{}
	d.add(entryLong(tagNewSubfileType, 1))
	d.add(entryLong(tagImageWidth, uint32(width)))
	d.add(entryLong(tagImageLength, uint32(height)))
	d.add(entryShorts(tagBitsPerSample, 8, 8, 8))
	d.add(entryShorts(tagCompression, codec.JPEG.TIFFTag()))
	d.add(entryShorts(tagPhotometric, 6))
	d.add(entryASCII(tagImageDescription, description))
	d.add(entryLong8s(tagStripOffsets, []uint64{stripOffset}))
	d.add(entryShorts(tagSamplesPerPixel, 3))
	d.add(entryLong(tagRowsPerStrip, uint32(height)))
	d.add(entryLong8s(tagStripByteCounts, []uint64{uint64(len(jpegData))}))
	d.add(entryShorts(tagPlanarConfig, 1))
	d.add(entryASCII(tagSoftware, softwareName))
	w.dirs = append(w.dirs, d)
	return nil
}

// Finish writes the directory chain, patches the header to point at it,
// syncs and renames the temp file into place.
func (w *Writer) Finish() error {
	if w.finished {
		return fmt.Errorf("writer already finished")
	}
	if len(w.dirs) == 0 {
		return fmt.Errorf("no directories written")
	}
	w.finished = true

	for _, d := range w.dirs {
		d.sortEntries()
	}

	// Lay out every directory and its out of line values before writing
	// anything, so each directory can link to the next.
	cur := even(w.getOffset())
	ifdOffsets := make([]uint64, len(w.dirs))
	for i, d := range w.dirs {
		cur = even(cur)
		ifdOffsets[i] = cur
		cur += 8 + 20*uint64(len(d.entries)) + 8
		for j := range d.entries {
			e := &d.entries[j]
			if len(e.data) > 8 {
				cur = even(cur)
				e.dataOffset = cur
				cur += uint64(len(e.data))
			}
		}
	}

	for i, d := range w.dirs {
		w.padTo(ifdOffsets[i])
		var u64 [8]byte
		binary.LittleEndian.PutUint64(u64[:], uint64(len(d.entries)))
		w.bw.Write(u64[:])
		for _, e := range d.entries {
			var ent [20]byte
			binary.LittleEndian.PutUint16(ent[0:], e.tag)
			binary.LittleEndian.PutUint16(ent[2:], e.typ)
			binary.LittleEndian.PutUint64(ent[4:], e.count)
			if len(e.data) <= 8 {
				copy(ent[12:], e.data)
			} else {
				binary.LittleEndian.PutUint64(ent[12:], e.dataOffset)
			}
			w.bw.Write(ent[:])
		}
		next := uint64(0)
		if i+1 < len(w.dirs) {
			next = ifdOffsets[i+1]
		}
		binary.LittleEndian.PutUint64(u64[:], next)
		w.bw.Write(u64[:])

		for _, e := range d.entries {
			if len(e.data) > 8 {
				w.padTo(e.dataOffset)
				w.bw.Write(e.data)
			}
		}
	}

	if err := w.bw.Flush(); err != nil {
		w.cleanup()
		return fmt.Errorf("error flushing output: %v", err)
	}
	var first [8]byte
	binary.LittleEndian.PutUint64(first[:], ifdOffsets[0])
	if _, err := w.f.WriteAt(first[:], 8); err != nil {
		w.cleanup()
		return fmt.Errorf("error patching directory offset: %v", err)
	}
	if err := w.f.Sync(); err != nil {
		w.cleanup()
		return fmt.Errorf("error syncing output: %v", err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("error closing output: %v", err)
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("error moving output into place: %v", err)
	}
	return nil
}

// Discard abandons the conversion and removes the temp file. Safe to call
// after Finish, where it does nothing.
func (w *Writer) Discard() {
	if w.finished {
		return
	}
	w.finished = true
	w.cleanup()
}

func (w *Writer) cleanup() {
	w.f.Close()
	os.Remove(w.tmpPath)
}

func (w *Writer) padTo(target uint64) {
	for w.getOffset() < target {
		w.bw.WriteByte(0)
	}
}

func even(off uint64) uint64 {
	return off + off%2
}

// resolutionRational converts micrometers per pixel into a pixels per
// centimeter rational.
func resolutionRational(micronsPerPixel float64) [2]uint32 {
	if micronsPerPixel <= 0 {
		micronsPerPixel = 1.0
	}
	den := uint32(math.Round(micronsPerPixel * 1000))
	if den == 0 {
		den = 1
	}
	return [2]uint32{10_000_000, den}
}
