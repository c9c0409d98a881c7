// Package exrfile reads scanline OpenEXR images into caller-provided buffers.
//
// Reading follows the frame buffer model: the caller inspects header,
// registers a Slice per channel it wants and then reads a range of scanlines.
// Tiled, deep and multi-part files are not supported.
package exrfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const magic = 20000630

const (
	versionTiled     = 0x00000200
	versionNonImage  = 0x00000800
	versionMultiPart = 0x00001000
)

// InputFile is an in-memory scanline OpenEXR file.
type InputFile struct {
	data    []byte
	header  *Header
	offsets []uint64
	fb      *FrameBuffer
}

// IsOpenEXR checks whether file at path starts with OpenEXR magic number.
func IsOpenEXR(path string) bool {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return false
	}
	defer f.Close()

	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return false
	}
	return IsOpenEXRData(buf[:])
}

// IsOpenEXRData checks whether data starts with OpenEXR magic number.
func IsOpenEXRData(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == magic
}

// Open reads file at path and parses its header.
func Open(path string) (*InputFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return NewInputFile(data)
}

// NewInputFile parses header and offset table of an OpenEXR image held in data.
func NewInputFile(data []byte) (*InputFile, error) {
	r := bytes.NewReader(data)
	m, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, errors.New("not an OpenEXR file")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version&0xff != 2 {
		return nil, fmt.Errorf("unsupported OpenEXR version %d", version&0xff)
	}
	if version&versionTiled != 0 {
		return nil, errors.New("tiled OpenEXR not supported")
	}
	if version&versionMultiPart != 0 {
		return nil, errors.New("multipart OpenEXR not supported")
	}
	if version&versionNonImage != 0 {
		return nil, errors.New("deep OpenEXR not supported")
	}

	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	lpb := h.Compression.LinesPerBlock()
	blockCount := (h.DataWindow.Height() + lpb - 1) / lpb
	if int64(blockCount) > int64(r.Len())/8 {
		return nil, fmt.Errorf("offset table of %d blocks exceeds file size", blockCount)
	}
	offsets := make([]uint64, blockCount)
	for i := range offsets {
		v, err := readU64(r)
		if err != nil {
			return nil, fmt.Errorf("read offset table: %w", err)
		}
		offsets[i] = v
	}

	return &InputFile{
		data:    data,
		header:  h,
		offsets: offsets,
	}, nil
}

func readHeader(r *bytes.Reader) (*Header, error) {
	h := &Header{}
	var hasChannels, hasDataWindow, hasCompression bool

	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, errors.New("invalid OpenEXR attribute size")
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return nil, errors.New("unexpected channels attribute type")
			}
			ch, err := parseChannels(payload)
			if err != nil {
				return nil, err
			}
			h.Channels = ch
			hasChannels = true
		case "dataWindow", "displayWindow":
			if typ != "box2i" || len(payload) != 16 {
				return nil, fmt.Errorf("invalid %s attribute", name)
			}
			b := parseBox2i(payload)
			if name == "dataWindow" {
				h.DataWindow = b
				hasDataWindow = true
			} else {
				h.DisplayWindow = b
			}
		case "compression":
			if typ != "compression" || len(payload) < 1 {
				return nil, errors.New("invalid compression attribute")
			}
			h.Compression = Compression(payload[0])
			hasCompression = true
		case "lineOrder":
			if typ != "lineOrder" || len(payload) < 1 {
				return nil, errors.New("invalid lineOrder attribute")
			}
			h.LineOrder = LineOrder(payload[0])
		case "tiles":
			return nil, errors.New("tiled OpenEXR not supported")
		}
	}

	if !hasChannels || len(h.Channels) == 0 {
		return nil, errors.New("OpenEXR missing channels")
	}
	if !hasDataWindow {
		return nil, errors.New("OpenEXR missing dataWindow")
	}
	if !hasCompression {
		return nil, errors.New("OpenEXR missing compression")
	}
	if !h.Compression.Supported() {
		return nil, fmt.Errorf("unsupported OpenEXR compression %s", h.Compression)
	}
	if h.DataWindow.Width() <= 0 || h.DataWindow.Height() <= 0 {
		return nil, errors.New("invalid OpenEXR dimensions")
	}
	for _, ch := range h.Channels {
		if _, err := BufferSize(ch.Type, h.DataWindow.Width(), h.DataWindow.Height()); err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
	}
	return h, nil
}

func parseBox2i(payload []byte) Box2i {
	var b Box2i
	b.Min.X = int(int32(binary.LittleEndian.Uint32(payload[0:4])))
	b.Min.Y = int(int32(binary.LittleEndian.Uint32(payload[4:8])))
	b.Max.X = int(int32(binary.LittleEndian.Uint32(payload[8:12])))
	b.Max.Y = int(int32(binary.LittleEndian.Uint32(payload[12:16])))
	return b
}

func parseChannels(data []byte) ([]Channel, error) {
	r := bytes.NewReader(data)
	var channels []Channel
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		pixelType, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if !PixelType(pixelType).Valid() {
			return nil, fmt.Errorf("unsupported OpenEXR pixel type %d", pixelType)
		}
		pLinear, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if _, err := r.Seek(3, io.SeekCurrent); err != nil {
			return nil, err
		}
		xSampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		ySampling, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if xSampling <= 0 || ySampling <= 0 {
			return nil, fmt.Errorf("invalid sampling %dx%d for channel %q", xSampling, ySampling, name)
		}
		channels = append(channels, Channel{
			Name:      name,
			Type:      PixelType(pixelType),
			PLinear:   pLinear != 0,
			XSampling: int(xSampling),
			YSampling: int(ySampling),
		})
	}
	return channels, nil
}

// Header returns parsed header.
func (f *InputFile) Header() *Header { return f.header }

// DataWindow returns the rectangle of stored pixels.
func (f *InputFile) DataWindow() Box2i { return f.header.DataWindow }

// Channels returns channel list in file order.
func (f *InputFile) Channels() []Channel { return f.header.Channels }

// SetFrameBuffer sets targets for subsequent ReadPixels.
func (f *InputFile) SetFrameBuffer(fb *FrameBuffer) { f.fb = fb }

// Close releases file data.
func (f *InputFile) Close() error {
	f.data = nil
	f.fb = nil
	return nil
}

// ReadPixels decodes scanlines y1 to y2 inclusive into frame buffer slices.
func (f *InputFile) ReadPixels(y1, y2 int) error {
	if f.fb == nil {
		return errors.New("no frame buffer set")
	}
	if f.data == nil {
		return errors.New("file is closed")
	}
	dw := f.header.DataWindow
	if y1 > y2 || y1 < dw.Min.Y || y2 > dw.Max.Y {
		return fmt.Errorf("scanline range [%d, %d] outside of data window [%d, %d]", y1, y2, dw.Min.Y, dw.Max.Y)
	}

	present := make(map[string]bool, len(f.header.Channels))
	for _, ch := range f.header.Channels {
		present[ch.Name] = true
	}
	for _, name := range f.fb.Names() {
		if present[name] {
			continue
		}
		s, _ := f.fb.Slice(name)
		if err := f.fillSlice(s, y1, y2); err != nil {
			return fmt.Errorf("fill %s: %w", name, err)
		}
	}

	lpb := f.header.Compression.LinesPerBlock()
	first := (y1 - dw.Min.Y) / lpb
	last := (y2 - dw.Min.Y) / lpb
	for block := first; block <= last; block++ {
		if err := f.readBlock(block, y1, y2); err != nil {
			return err
		}
	}
	return nil
}

func (f *InputFile) fillSlice(s Slice, y1, y2 int) error {
	dw := f.header.DataWindow
	cols := NumSamples(s.XSampling, dw.Min.X, dw.Max.X)
	firstRow := ceilDiv(dw.Min.Y, s.YSampling)
	for y := y1; y <= y2; y++ {
		if mod(y, s.YSampling) != 0 {
			continue
		}
		row := floorDiv(y, s.YSampling) - firstRow
		for col := 0; col < cols; col++ {
			if err := s.put(col*s.XStride+row*s.YStride, s.Fill); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *InputFile) readBlock(block, y1, y2 int) error {
	dw := f.header.DataWindow
	off := f.offsets[block]
	if off == 0 || off >= uint64(len(f.data)) {
		return fmt.Errorf("invalid offset %d of OpenEXR block %d", off, block)
	}

	r := bytes.NewReader(f.data)
	if _, err := r.Seek(int64(off), io.SeekStart); err != nil {
		return err
	}
	y, err := readI32(r)
	if err != nil {
		return err
	}
	dataSize, err := readI32(r)
	if err != nil {
		return err
	}
	if dataSize < 0 || int64(dataSize) > int64(r.Len()) {
		return errors.New("invalid OpenEXR block size")
	}
	raw := make([]byte, dataSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return err
	}

	startY := int(y)
	lpb := f.header.Compression.LinesPerBlock()
	if startY != dw.Min.Y+block*lpb {
		return fmt.Errorf("OpenEXR block %d starts at scanline %d, expected %d", block, startY, dw.Min.Y+block*lpb)
	}
	endY := startY + lpb - 1
	if endY > dw.Max.Y {
		endY = dw.Max.Y
	}

	unpacked, err := decompress(f.header.Compression, raw, f.blockBytes(startY, endY))
	if err != nil {
		return err
	}

	return f.decodeBlock(startY, endY, y1, y2, unpacked)
}

func (f *InputFile) blockBytes(startY, endY int) int {
	dw := f.header.DataWindow
	total := 0
	for y := startY; y <= endY; y++ {
		for _, ch := range f.header.Channels {
			if mod(y, ch.YSampling) != 0 {
				continue
			}
			total += NumSamples(ch.XSampling, dw.Min.X, dw.Max.X) * ch.Type.Size()
		}
	}
	return total
}

func (f *InputFile) decodeBlock(startY, endY, y1, y2 int, data []byte) error {
	dw := f.header.DataWindow
	offset := 0
	for y := startY; y <= endY; y++ {
		for _, ch := range f.header.Channels {
			if mod(y, ch.YSampling) != 0 {
				continue
			}
			size := ch.Type.Size()
			cols := NumSamples(ch.XSampling, dw.Min.X, dw.Max.X)
			lineBytes := cols * size
			if offset+lineBytes > len(data) {
				return errors.New("OpenEXR block truncated")
			}
			line := data[offset : offset+lineBytes]
			offset += lineBytes

			if y < y1 || y > y2 {
				continue
			}
			s, ok := f.fb.Slice(ch.Name)
			if !ok {
				continue
			}
			row := floorDiv(y, ch.YSampling) - ceilDiv(dw.Min.Y, ch.YSampling)
			for col := 0; col < cols; col++ {
				if err := s.putRaw(col*s.XStride+row*s.YStride, ch.Type, line[col*size:(col+1)*size]); err != nil {
					return fmt.Errorf("channel %s: %w", ch.Name, err)
				}
			}
		}
	}
	return nil
}

func readNullString(r *bytes.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
		if len(buf) > 255 {
			return "", errors.New("OpenEXR name too long")
		}
	}
	return string(buf), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readI32(r *bytes.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}
