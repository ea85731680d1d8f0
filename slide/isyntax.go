package slide

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"isyntax2tiff/contracts"
)

const daemonBinary = "isyntax_daemon"

// daemonConn speaks the decoder daemon protocol: one text request line in,
// one little-endian uint32 length-prefixed binary reply out. Requests are
// serialized; the daemon answers strictly in order.
type daemonConn struct {
	mu     sync.Mutex
	stdin  io.Writer
	stdout io.Reader
}

func (c *daemonConn) request(req string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintln(c.stdin, req); err != nil {
		return nil, fmt.Errorf("write to daemon stdin: %w", err)
	}
	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.stdout, sizeBuf[:]); err != nil {
		return nil, fmt.Errorf("read reply length: %w", err)
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(c.stdout, buf); err != nil {
		return nil, fmt.Errorf("read reply payload: %w", err)
	}
	return buf, nil
}

// isyntaxSource reads iSyntax slides through a vendor decoder subprocess.
// The daemon opens the file on META and serves regions until stdin closes.
type isyntaxSource struct {
	conn *daemonConn
	cmd  *exec.Cmd

	width  int64
	height int64
	levels int
	mppX   float64
	mppY   float64
}

// findDaemon looks next to the executable first, then on PATH.
func findDaemon() (string, error) {
	if exe, err := os.Executable(); err == nil {
		local := filepath.Join(filepath.Dir(exe), "bin", daemonBinary)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}
	path, err := exec.LookPath(daemonBinary)
	if err != nil {
		return "", fmt.Errorf("decoder daemon %q not found: %w", daemonBinary, err)
	}
	return path, nil
}

func openISyntax(path string) (contracts.RegionSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("source file: %w", err)
	}
	bin, err := findDaemon()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(bin)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	go io.Copy(io.Discard, stderr)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("daemon start failed: %w", err)
	}

	src := &isyntaxSource{
		conn: &daemonConn{stdin: stdin, stdout: stdout},
		cmd:  cmd,
	}
	meta, err := src.conn.request("META " + path)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("daemon metadata: %w", err)
	}
	if meta == nil {
		src.Close()
		return nil, fmt.Errorf("daemon could not open %s", path)
	}
	if err := src.parseMetadata(string(meta)); err != nil {
		src.Close()
		return nil, err
	}
	return src, nil
}

// parseMetadata decodes the META reply, a single line of key=value fields:
// width=... height=... levels=... mpp-x=... mpp-y=...
func (s *isyntaxSource) parseMetadata(line string) error {
	for _, field := range strings.Fields(line) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return fmt.Errorf("malformed metadata field %q", field)
		}
		var err error
		switch key {
		case "width":
			s.width, err = strconv.ParseInt(value, 10, 64)
		case "height":
			s.height, err = strconv.ParseInt(value, 10, 64)
		case "levels":
			s.levels, err = strconv.Atoi(value)
		case "mpp-x":
			s.mppX, err = strconv.ParseFloat(value, 64)
		case "mpp-y":
			s.mppY, err = strconv.ParseFloat(value, 64)
		}
		if err != nil {
			return fmt.Errorf("malformed metadata field %q: %v", field, err)
		}
	}
	if s.width <= 0 || s.height <= 0 {
		return fmt.Errorf("metadata reports invalid dimensions %dx%d", s.width, s.height)
	}
	if s.levels <= 0 {
		s.levels = 1
	}
	return nil
}

func (s *isyntaxSource) Dimensions(level int) (int64, int64) {
	return ceilHalve(s.width, s.height, level)
}

func (s *isyntaxSource) NumLevels() int {
	return s.levels
}

func (s *isyntaxSource) PixelSize() (float64, float64) {
	return s.mppX, s.mppY
}

func (s *isyntaxSource) ReadRegion(ctx context.Context, level int, x, y, w, h int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validRegion(w, h); err != nil {
		return nil, err
	}
	req := fmt.Sprintf("READ %d %d %d %d %d", level, x, y, w, h)
	buf, err := s.conn.request(req)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, fmt.Errorf("level %d region %d,%d %dx%d: %w", level, x, y, w, h, contracts.ErrRegionUnavailable)
	}
	if int64(len(buf)) != w*h*3 {
		return nil, fmt.Errorf("daemon returned %d bytes for a %dx%d region, want %d", len(buf), w, h, w*h*3)
	}
	return buf, nil
}

func (s *isyntaxSource) AuxImage(kind contracts.AuxKind) (*contracts.AuxImage, error) {
	buf, err := s.conn.request("AUX " + string(kind))
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	img, err := jpeg.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %v", kind, err)
	}
	return auxFromImage(img), nil
}

func (s *isyntaxSource) Close() error {
	if c, ok := s.conn.stdin.(io.Closer); ok {
		c.Close()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

// auxFromImage flattens a decoded image into an interleaved RGB buffer.
func auxFromImage(img image.Image) *contracts.AuxImage {
	b := img.Bounds()
	aux := &contracts.AuxImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		RGB:    make([]byte, b.Dx()*b.Dy()*3),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			aux.RGB[i+0] = byte(r >> 8)
			aux.RGB[i+1] = byte(g >> 8)
			aux.RGB[i+2] = byte(bl >> 8)
			i += 3
		}
	}
	return aux
}
