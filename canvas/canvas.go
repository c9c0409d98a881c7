// Package canvas is an in-memory exrlayers.Sink that assembles converted layers into Go images.
package canvas

import (
	"errors"
	"fmt"
	"image"

	"github.com/vearutop/exrlayers"
)

// ErrEmptyLayer is returned when image of a layer without pixels is requested.
var ErrEmptyLayer = errors.New("empty layer")

// Layer is a drawable created by Store.
type Layer struct {
	ID        exrlayers.LayerID
	Name      string
	Width     int
	Height    int
	Type      exrlayers.DrawableType
	Opacity   float64
	Mode      exrlayers.BlendMode
	Pix       []byte
	Finalized bool

	canvas *Canvas
}

// Canvas is a stack of layers, index 0 is the top.
type Canvas struct {
	ID     exrlayers.CanvasID
	Width  int
	Height int
	Base   exrlayers.BaseType
	Layers []*Layer
}

// Store implements exrlayers.Sink, it is not safe for concurrent use.
type Store struct {
	canvases []*Canvas
	layers   []*Layer
}

var _ exrlayers.Sink = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// NewCanvas implements exrlayers.Sink.
func (s *Store) NewCanvas(width, height int, base exrlayers.BaseType) (exrlayers.CanvasID, error) {
	if width <= 0 || height <= 0 {
		return -1, fmt.Errorf("invalid canvas dimensions %dx%d", width, height)
	}
	c := &Canvas{
		ID:     exrlayers.CanvasID(len(s.canvases)),
		Width:  width,
		Height: height,
		Base:   base,
	}
	s.canvases = append(s.canvases, c)
	return c.ID, nil
}

// NewLayer implements exrlayers.Sink.
func (s *Store) NewLayer(canvas exrlayers.CanvasID, name string, width, height int, typ exrlayers.DrawableType,
	opacity float64, mode exrlayers.BlendMode,
) (exrlayers.LayerID, error) {
	c, err := s.Canvas(canvas)
	if err != nil {
		return -1, err
	}
	if width <= 0 || height <= 0 {
		return -1, fmt.Errorf("invalid layer dimensions %dx%d", width, height)
	}
	gray := typ == exrlayers.DrawableGray || typ == exrlayers.DrawableGrayA
	if gray != (c.Base == exrlayers.BaseGray) {
		return -1, fmt.Errorf("%s layer does not fit %s canvas", typ, c.Base)
	}
	if opacity < 0 || opacity > 100 {
		return -1, fmt.Errorf("opacity %v out of range [0, 100]", opacity)
	}

	l := &Layer{
		ID:      exrlayers.LayerID(len(s.layers)),
		Name:    name,
		Width:   width,
		Height:  height,
		Type:    typ,
		Opacity: opacity,
		Mode:    mode,
		Pix:     make([]byte, width*height*typ.Components()),
	}
	s.layers = append(s.layers, l)
	return l.ID, nil
}

// InsertLayer implements exrlayers.Sink.
func (s *Store) InsertLayer(canvas exrlayers.CanvasID, layer exrlayers.LayerID, position int) error {
	c, err := s.Canvas(canvas)
	if err != nil {
		return err
	}
	l, err := s.Layer(layer)
	if err != nil {
		return err
	}
	if l.canvas != nil {
		return fmt.Errorf("layer %d is already inserted", layer)
	}
	if position < 0 || position > len(c.Layers) {
		position = len(c.Layers)
	}

	c.Layers = append(c.Layers, nil)
	copy(c.Layers[position+1:], c.Layers[position:])
	c.Layers[position] = l
	l.canvas = c
	return nil
}

// WritePixels implements exrlayers.Sink.
func (s *Store) WritePixels(layer exrlayers.LayerID, rect image.Rectangle, pix []byte) error {
	l, err := s.Layer(layer)
	if err != nil {
		return err
	}
	if l.Finalized {
		return fmt.Errorf("layer %d is finalized", layer)
	}
	bounds := image.Rect(0, 0, l.Width, l.Height)
	if rect.Empty() || !rect.In(bounds) {
		return fmt.Errorf("rectangle %v is outside of layer bounds %v", rect, bounds)
	}
	comps := l.Type.Components()
	if len(pix) != rect.Dx()*rect.Dy()*comps {
		return fmt.Errorf("got %d bytes for %v with %d components", len(pix), rect, comps)
	}

	rowBytes := rect.Dx() * comps
	for y := 0; y < rect.Dy(); y++ {
		dst := ((rect.Min.Y+y)*l.Width + rect.Min.X) * comps
		copy(l.Pix[dst:dst+rowBytes], pix[y*rowBytes:(y+1)*rowBytes])
	}
	return nil
}

// FinalizeLayer implements exrlayers.Sink.
func (s *Store) FinalizeLayer(layer exrlayers.LayerID) error {
	l, err := s.Layer(layer)
	if err != nil {
		return err
	}
	l.Finalized = true
	return nil
}

// Canvas returns canvas by id.
func (s *Store) Canvas(id exrlayers.CanvasID) (*Canvas, error) {
	if id < 0 || int(id) >= len(s.canvases) {
		return nil, fmt.Errorf("unknown canvas %d", id)
	}
	return s.canvases[id], nil
}

// Layer returns layer by id.
func (s *Store) Layer(id exrlayers.LayerID) (*Layer, error) {
	if id < 0 || int(id) >= len(s.layers) {
		return nil, fmt.Errorf("unknown layer %d", id)
	}
	return s.layers[id], nil
}
