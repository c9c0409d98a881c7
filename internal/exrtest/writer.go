// Package exrtest synthesizes scanline OpenEXR files for tests.
package exrtest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/vearutop/exrlayers/exrfile"
)

// Channel is a channel to be written with samples in row-major order of sampled grid.
type Channel struct {
	Name      string
	Type      exrfile.PixelType
	XSampling int
	YSampling int
	Values    []float32
}

// Image describes the file to synthesize.
type Image struct {
	MinX, MinY    int
	Width, Height int
	Compression   exrfile.Compression
	Channels      []Channel
	// VersionFlags are OR-ed into version field.
	VersionFlags uint32
}

// Fill creates a channel with every sample set to v.
func Fill(name string, t exrfile.PixelType, width, height int, v float32) Channel {
	values := make([]float32, width*height)
	for i := range values {
		values[i] = v
	}
	return Channel{Name: name, Type: t, XSampling: 1, YSampling: 1, Values: values}
}

// Encode renders img as OpenEXR bytes.
func Encode(img Image) ([]byte, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, errors.New("invalid dimensions")
	}
	channels := append([]Channel(nil), img.Channels...)
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	maxX := img.MinX + img.Width - 1
	maxY := img.MinY + img.Height - 1
	for i := range channels {
		ch := &channels[i]
		if ch.XSampling == 0 {
			ch.XSampling = 1
		}
		if ch.YSampling == 0 {
			ch.YSampling = 1
		}
		want := exrfile.NumSamples(ch.XSampling, img.MinX, maxX) * exrfile.NumSamples(ch.YSampling, img.MinY, maxY)
		if len(ch.Values) != want {
			return nil, fmt.Errorf("channel %s has %d values, want %d", ch.Name, len(ch.Values), want)
		}
	}

	var hdr bytes.Buffer
	writeU32(&hdr, 20000630)
	writeU32(&hdr, 2|img.VersionFlags)

	var chlist bytes.Buffer
	for _, ch := range channels {
		chlist.WriteString(ch.Name)
		chlist.WriteByte(0)
		writeU32(&chlist, uint32(ch.Type))
		chlist.Write([]byte{0, 0, 0, 0})
		writeU32(&chlist, uint32(ch.XSampling))
		writeU32(&chlist, uint32(ch.YSampling))
	}
	chlist.WriteByte(0)

	box := func(minX, minY, maxX, maxY int) []byte {
		var b bytes.Buffer
		writeU32(&b, uint32(int32(minX)))
		writeU32(&b, uint32(int32(minY)))
		writeU32(&b, uint32(int32(maxX)))
		writeU32(&b, uint32(int32(maxY)))
		return b.Bytes()
	}
	f32 := func(v float32) []byte {
		var b bytes.Buffer
		writeU32(&b, math.Float32bits(v))
		return b.Bytes()
	}

	writeAttr(&hdr, "channels", "chlist", chlist.Bytes())
	writeAttr(&hdr, "compression", "compression", []byte{byte(img.Compression)})
	writeAttr(&hdr, "dataWindow", "box2i", box(img.MinX, img.MinY, maxX, maxY))
	writeAttr(&hdr, "displayWindow", "box2i", box(img.MinX, img.MinY, maxX, maxY))
	writeAttr(&hdr, "lineOrder", "lineOrder", []byte{0})
	writeAttr(&hdr, "pixelAspectRatio", "float", f32(1))
	writeAttr(&hdr, "screenWindowCenter", "v2f", append(f32(0), f32(0)...))
	writeAttr(&hdr, "screenWindowWidth", "float", f32(1))
	hdr.WriteByte(0)

	lpb := img.Compression.LinesPerBlock()
	blockCount := (img.Height + lpb - 1) / lpb

	var chunks [][]byte
	for block := 0; block < blockCount; block++ {
		startY := img.MinY + block*lpb
		endY := startY + lpb - 1
		if endY > maxY {
			endY = maxY
		}

		var raw bytes.Buffer
		for y := startY; y <= endY; y++ {
			for _, ch := range channels {
				if mod(y, ch.YSampling) != 0 {
					continue
				}
				cols := exrfile.NumSamples(ch.XSampling, img.MinX, maxX)
				row := exrfile.NumSamples(ch.YSampling, img.MinY, y) - 1
				sample := make([]byte, ch.Type.Size())
				for col := 0; col < cols; col++ {
					exrfile.EncodeSample(ch.Type, sample, ch.Values[row*cols+col])
					raw.Write(sample)
				}
			}
		}

		packed, err := compress(img.Compression, raw.Bytes())
		if err != nil {
			return nil, err
		}

		var chunk bytes.Buffer
		writeU32(&chunk, uint32(int32(startY)))
		writeU32(&chunk, uint32(len(packed)))
		chunk.Write(packed)
		chunks = append(chunks, chunk.Bytes())
	}

	offset := uint64(hdr.Len() + 8*blockCount)
	out := bytes.NewBuffer(hdr.Bytes())
	for _, c := range chunks {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], offset)
		out.Write(b[:])
		offset += uint64(len(c))
	}
	for _, c := range chunks {
		out.Write(c)
	}
	return out.Bytes(), nil
}

// WriteFile encodes img into a file in a temporary directory and returns its path.
func WriteFile(t testing.TB, img Image) string {
	t.Helper()

	data, err := Encode(img)
	if err != nil {
		t.Fatalf("encode exr: %v", err)
	}
	p := filepath.Join(t.TempDir(), "image.exr")
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write exr: %v", err)
	}
	return p
}

func compress(c exrfile.Compression, raw []byte) ([]byte, error) {
	switch c {
	case exrfile.CompressionNone:
		return raw, nil
	case exrfile.CompressionRLE:
		packed := rleCompress(predict(shuffleBytes(raw)))
		if len(packed) >= len(raw) {
			return raw, nil
		}
		return packed, nil
	case exrfile.CompressionZIPS, exrfile.CompressionZIP:
		var b bytes.Buffer
		zw := zlib.NewWriter(&b)
		if _, err := zw.Write(predict(shuffleBytes(raw))); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		if b.Len() >= len(raw) {
			return raw, nil
		}
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("compression %s is not supported by writer", c)
	}
}

func shuffleBytes(data []byte) []byte {
	half := (len(data) + 1) / 2
	out := make([]byte, len(data))
	for i, b := range data {
		if i%2 == 0 {
			out[i/2] = b
		} else {
			out[half+i/2] = b
		}
	}
	return out
}

func predict(data []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		if i == 0 {
			out[i] = data[i]
			continue
		}
		out[i] = byte(int(data[i]) - int(data[i-1]) + 128)
	}
	return out
}

func rleCompress(data []byte) []byte {
	var out []byte
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && data[i+run] == data[i] && run < 128 {
			run++
		}
		if run >= 3 {
			out = append(out, byte(run-1), data[i])
			i += run
			continue
		}

		start := i
		for i < len(data) && i-start < 127 {
			if i+2 < len(data) && data[i] == data[i+1] && data[i] == data[i+2] {
				break
			}
			i++
		}
		out = append(out, byte(int8(-(i - start))))
		out = append(out, data[start:i]...)
	}
	return out
}

func writeAttr(b *bytes.Buffer, name, typ string, payload []byte) {
	b.WriteString(name)
	b.WriteByte(0)
	b.WriteString(typ)
	b.WriteByte(0)
	writeU32(b, uint32(len(payload)))
	b.Write(payload)
}

func writeU32(b *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.Write(buf[:])
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
