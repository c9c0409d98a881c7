package exrlayers

import "github.com/vearutop/exrlayers/exrfile"

// PixelType is the numeric type of channel samples.
type PixelType = exrfile.PixelType

// Supported pixel types.
const (
	PixelTypeUint  = exrfile.PixelTypeUint
	PixelTypeHalf  = exrfile.PixelTypeHalf
	PixelTypeFloat = exrfile.PixelTypeFloat
)

// Channel is a dense row-major plane of samples of one type, one sample per pixel.
//
// Strides are derived from type and width: sample (x, y) is stored at
// x*XStride() + y*YStride() in Data().
type Channel struct {
	name   string
	typ    PixelType
	width  int
	height int
	data   []byte

	xSampling int
	ySampling int

	// layer is a lookup-only back reference, the layer owns the channel.
	layer *Layer
}

// NewChannel allocates a zeroed channel of width x height samples.
func NewChannel(name string, typ PixelType, width, height int) *Channel {
	c := &Channel{
		name:   name,
		typ:    typ,
		width:  width,
		height: height,

		xSampling: 1,
		ySampling: 1,
	}
	c.data = make([]byte, c.ByteSize())
	return c
}

// Name returns local name of channel within its layer.
func (c *Channel) Name() string { return c.name }

// PixelType returns sample type.
func (c *Channel) PixelType() PixelType { return c.typ }

// Layer returns the layer that contains this channel, nil for detached channels.
func (c *Channel) Layer() *Layer { return c.layer }

// Sampling returns subsampling factors declared for channel in file, 1 for full resolution.
// Subsampled samples are stored at the top-left of the buffer with full row pitch.
func (c *Channel) Sampling() (x, y int) { return c.xSampling, c.ySampling }

func (c *Channel) setSampling(x, y int) {
	c.xSampling, c.ySampling = max(x, 1), max(y, 1)
}

// Width returns number of samples per row.
func (c *Channel) Width() int { return c.width }

// Height returns number of rows.
func (c *Channel) Height() int { return c.height }

// XStride returns the size of one sample in bytes.
func (c *Channel) XStride() int { return c.typ.Size() }

// YStride returns the size of one row in bytes.
func (c *Channel) YStride() int { return c.XStride() * c.width }

// ByteSize returns the size of sample data in bytes.
func (c *Channel) ByteSize() int { return c.YStride() * c.height }

// PixelCount returns the number of samples.
func (c *Channel) PixelCount() int { return c.width * c.height }

// Offset returns byte offset of sample (x, y).
func (c *Channel) Offset(x, y int) int { return x*c.XStride() + y*c.YStride() }

// Data returns raw little-endian sample data, it must not be modified.
func (c *Channel) Data() []byte { return c.data }

// Sample returns sample (x, y) converted to float32.
func (c *Channel) Sample(x, y int) float32 {
	off := c.Offset(x, y)
	return exrfile.DecodeSample(c.typ, c.data[off:off+c.XStride()])
}

// Plane returns a read-only view of channel data for tone mapping.
func (c *Channel) Plane() Plane {
	return Plane{
		Data:      c.data,
		Type:      c.typ,
		Stride:    c.width,
		XSampling: c.xSampling,
		YSampling: c.ySampling,
	}
}
