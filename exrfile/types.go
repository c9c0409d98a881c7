package exrfile

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/x448/float16"
)

// PixelType is the numeric type of channel samples, numbered as in the file format.
type PixelType int32

const (
	PixelTypeUint  PixelType = 0
	PixelTypeHalf  PixelType = 1
	PixelTypeFloat PixelType = 2
)

// String returns a short name of pixel type.
func (t PixelType) String() string {
	switch t {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Size returns the number of bytes of one sample, 0 for unknown types.
func (t PixelType) Size() int {
	switch t {
	case PixelTypeHalf:
		return 2
	case PixelTypeFloat, PixelTypeUint:
		return 4
	default:
		return 0
	}
}

// Valid reports whether t is one of supported pixel types.
func (t PixelType) Valid() bool {
	return t.Size() != 0
}

// DecodeSample reads one little-endian sample of type t from b.
func DecodeSample(t PixelType, b []byte) float32 {
	switch t {
	case PixelTypeHalf:
		return float16.Frombits(binary.LittleEndian.Uint16(b)).Float32()
	case PixelTypeFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case PixelTypeUint:
		return float32(binary.LittleEndian.Uint32(b))
	default:
		return 0
	}
}

// EncodeSample writes v as one little-endian sample of type t into b.
// Values outside of uint range are clamped for PixelTypeUint, NaN becomes 0.
func EncodeSample(t PixelType, b []byte, v float32) {
	switch t {
	case PixelTypeHalf:
		binary.LittleEndian.PutUint16(b, float16.Fromfloat32(v).Bits())
	case PixelTypeFloat:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	case PixelTypeUint:
		var u uint32
		switch {
		case v != v || v <= 0:
			u = 0
		case float64(v) >= math.MaxUint32:
			u = math.MaxUint32
		default:
			u = uint32(v)
		}
		binary.LittleEndian.PutUint32(b, u)
	}
}

// Compression identifies block compression method.
type Compression uint8

const (
	CompressionNone  Compression = 0
	CompressionRLE   Compression = 1
	CompressionZIPS  Compression = 2
	CompressionZIP   Compression = 3
	CompressionPIZ   Compression = 4
	CompressionPXR24 Compression = 5
	CompressionB44   Compression = 6
	CompressionB44A  Compression = 7
	CompressionDWAA  Compression = 8
	CompressionDWAB  Compression = 9
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionRLE:
		return "rle"
	case CompressionZIPS:
		return "zips"
	case CompressionZIP:
		return "zip"
	case CompressionPIZ:
		return "piz"
	case CompressionPXR24:
		return "pxr24"
	case CompressionB44:
		return "b44"
	case CompressionB44A:
		return "b44a"
	case CompressionDWAA:
		return "dwaa"
	case CompressionDWAB:
		return "dwab"
	default:
		return "unknown"
	}
}

// LinesPerBlock returns the number of scanlines stored in one chunk.
func (c Compression) LinesPerBlock() int {
	switch c {
	case CompressionZIP, CompressionPXR24:
		return 16
	case CompressionPIZ, CompressionB44, CompressionB44A, CompressionDWAA:
		return 32
	case CompressionDWAB:
		return 256
	default:
		return 1
	}
}

// Supported reports whether blocks with this compression can be decoded.
func (c Compression) Supported() bool {
	switch c {
	case CompressionNone, CompressionRLE, CompressionZIPS, CompressionZIP:
		return true
	default:
		return false
	}
}

// LineOrder is the order of scanline blocks in file.
type LineOrder uint8

const (
	LineOrderIncreasing LineOrder = 0
	LineOrderDecreasing LineOrder = 1
	LineOrderRandom     LineOrder = 2
)

// Box2i is an inclusive integer rectangle.
type Box2i struct {
	Min, Max image.Point
}

// Width returns Max.X - Min.X + 1.
func (b Box2i) Width() int { return b.Max.X - b.Min.X + 1 }

// Height returns Max.Y - Min.Y + 1.
func (b Box2i) Height() int { return b.Max.Y - b.Min.Y + 1 }

// MaxChannelBytes limits the size of a full resolution buffer of one channel.
var MaxChannelBytes int64 = 1 << 30

// BufferSize returns the number of bytes taken by width x height samples of type t.
// It fails for empty dimensions and for sizes above MaxChannelBytes.
func BufferSize(t PixelType, width, height int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	row := int64(width) * int64(t.Size())
	if row > MaxChannelBytes || int64(height) > MaxChannelBytes/row {
		return 0, fmt.Errorf("%dx%d %s samples exceed %d bytes", width, height, t, MaxChannelBytes)
	}
	return int(row * int64(height)), nil
}

// Channel describes a channel as declared in file header.
type Channel struct {
	Name      string
	Type      PixelType
	PLinear   bool
	XSampling int
	YSampling int
}

// Header holds the attributes needed to decode scanline images.
type Header struct {
	Channels      []Channel
	DataWindow    Box2i
	DisplayWindow Box2i
	Compression   Compression
	LineOrder     LineOrder
}

// NumSamples returns the count of integers in [a, b] divisible by s.
func NumSamples(s, a, b int) int {
	if s <= 0 || b < a {
		return 0
	}
	return floorDiv(b, s) - ceilDiv(a, s) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}

func mod(a, b int) int {
	return a - floorDiv(a, b)*b
}
