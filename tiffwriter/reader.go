package tiffwriter

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/tiff"
	"github.com/google/tiff/bigtiff"
)

// ParsedDirectory is one decoded image directory, read back through
// google/tiff with its BigTIFF extension.
type ParsedDirectory struct {
	ifd tiff.IFD
}

func (d ParsedDirectory) Has(tag uint16) bool {
	return d.ifd.HasField(tag)
}

// Uints decodes a SHORT, LONG or LONG8 tag into its values.
func (d ParsedDirectory) Uints(tag uint16) []uint64 {
	f := d.ifd.GetField(tag)
	if f == nil {
		return nil
	}
	size := f.Type().Size()
	data := f.Value().Bytes()
	if uint64(len(data)) < f.Count()*size {
		return nil
	}
	order := f.Value().Order()
	vs := make([]uint64, f.Count())
	for i := range vs {
		switch f.Type().ID() {
		case typeShort:
			vs[i] = uint64(order.Uint16(data[2*uint64(i):]))
		case typeLong:
			vs[i] = uint64(order.Uint32(data[4*uint64(i):]))
		case typeLong8:
			vs[i] = order.Uint64(data[8*uint64(i):])
		default:
			return nil
		}
	}
	return vs
}

func (d ParsedDirectory) Uint(tag uint16) (uint64, bool) {
	vs := d.Uints(tag)
	if len(vs) == 0 {
		return 0, false
	}
	return vs[0], true
}

func (d ParsedDirectory) ASCII(tag uint16) string {
	f := d.ifd.GetField(tag)
	if f == nil || f.Type().ID() != typeASCII {
		return ""
	}
	data := f.Value().Bytes()
	if uint64(len(data)) > f.Count() {
		data = data[:f.Count()]
	}
	if n := len(data); n > 0 && data[n-1] == 0 {
		data = data[:n-1]
	}
	return string(data)
}

func (d ParsedDirectory) Rational(tag uint16) (num, den uint32, ok bool) {
	f := d.ifd.GetField(tag)
	if f == nil || f.Type().ID() != typeRational {
		return 0, 0, false
	}
	data := f.Value().Bytes()
	if len(data) < 8 {
		return 0, 0, false
	}
	order := f.Value().Order()
	return order.Uint32(data), order.Uint32(data[4:]), true
}

// Parse walks the directory chain of an in-memory BigTIFF.
func Parse(data []byte) ([]ParsedDirectory, error) {
	t, err := tiff.Parse(bytes.NewReader(data), nil, nil)
	if err != nil {
		return nil, err
	}
	if t.Version() != bigtiff.Version {
		return nil, fmt.Errorf("version %#x is not BigTIFF", t.Version())
	}
	ifds := t.IFDs()
	dirs := make([]ParsedDirectory, len(ifds))
	for i, ifd := range ifds {
		dirs[i] = ParsedDirectory{ifd: ifd}
	}
	return dirs, nil
}

// CheckHeader reports whether path holds a BigTIFF with a complete
// directory chain. Used to decide whether an existing output is worth
// keeping.
func CheckHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	t, err := tiff.Parse(f, nil, nil)
	if err != nil {
		return fmt.Errorf("not a finished BigTIFF: %v", err)
	}
	if t.Version() != bigtiff.Version {
		return fmt.Errorf("version %#x is not BigTIFF", t.Version())
	}
	if len(t.IFDs()) == 0 {
		return fmt.Errorf("directory chain never written")
	}
	return nil
}
