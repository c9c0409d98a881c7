package exrlayers

import "image"

// CanvasID identifies a canvas created by Sink.
type CanvasID int

// LayerID identifies a drawable layer created by Sink.
type LayerID int

// BaseType is the color model of a canvas.
type BaseType int

const (
	BaseRGB BaseType = iota
	BaseGray
)

func (b BaseType) String() string {
	if b == BaseGray {
		return "gray"
	}
	return "rgb"
}

// DrawableType is the pixel layout of an 8-bit sink layer.
type DrawableType int

const (
	DrawableRGB DrawableType = iota
	DrawableRGBA
	DrawableGray
	DrawableGrayA
)

func (d DrawableType) String() string {
	switch d {
	case DrawableRGBA:
		return "rgba"
	case DrawableGray:
		return "gray"
	case DrawableGrayA:
		return "graya"
	default:
		return "rgb"
	}
}

// Components returns bytes per pixel.
func (d DrawableType) Components() int {
	switch d {
	case DrawableRGBA:
		return 4
	case DrawableGray:
		return 1
	case DrawableGrayA:
		return 2
	default:
		return 3
	}
}

// BlendMode is the compositing mode of a sink layer.
type BlendMode int

const (
	BlendNormal BlendMode = iota
)

// Sink receives converted layers, typically an image editor host.
type Sink interface {
	NewCanvas(width, height int, base BaseType) (CanvasID, error)
	NewLayer(canvas CanvasID, name string, width, height int, typ DrawableType, opacity float64, mode BlendMode) (LayerID, error)
	// InsertLayer puts layer into canvas stack, position 0 is the top.
	InsertLayer(canvas CanvasID, layer LayerID, position int) error
	// WritePixels stores interleaved 8-bit components of rect.
	WritePixels(layer LayerID, rect image.Rectangle, pix []byte) error
	FinalizeLayer(layer LayerID) error
}
