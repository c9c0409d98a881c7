package exrlayers

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/vearutop/exrlayers/exrfile"
)

// Options configures Image.
type Options struct {
	// Source defaults to FileSource.
	Source Source
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Image is an OpenEXR file loaded into memory as layers of channels.
// Load is a one-shot operation, accessors are meaningful only after it succeeds.
type Image struct {
	path   string
	source Source
	logger *slog.Logger

	loaded bool
	width  int
	height int
	layers []*Layer
	index  map[string]int
}

// New creates an Image for path, file is not read until Load.
func New(path string, opts ...func(o *Options)) *Image {
	o := Options{}
	for _, applyOpt := range opts {
		applyOpt(&o)
	}
	if o.Source == nil {
		o.Source = FileSource{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Image{
		path:   path,
		source: o.Source,
		logger: o.Logger,
		index:  make(map[string]int),
	}
}

// WithSource sets a custom codec source.
func WithSource(s Source) func(o *Options) {
	return func(o *Options) {
		o.Source = s
	}
}

// WithLogger sets logger for load diagnostics.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// Load reads all channels of file into memory.
// On failure no layers are retained and the image stays not loaded.
func (img *Image) Load() (err error) {
	if img.loaded {
		return ErrAlreadyLoaded
	}

	if !img.source.IsOpenEXR(img.path) {
		return fmt.Errorf("%w: %s", ErrInvalidContainer, img.path)
	}

	f, err := img.source.Open(img.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrDecode, cerr)
		}
		if err != nil {
			img.reset()
		}
	}()

	dw := f.DataWindow()
	img.width = dw.Width()
	img.height = dw.Height()
	if img.width <= 0 || img.height <= 0 {
		return fmt.Errorf("%w: invalid data window %v-%v", ErrDecode, dw.Min, dw.Max)
	}

	fb := exrfile.NewFrameBuffer()
	for _, desc := range f.Channels() {
		layerName, channelName := SplitChannelName(desc.Name)
		layer := img.layerFor(layerName)

		if _, err := exrfile.BufferSize(desc.Type, img.width, img.height); err != nil {
			return fmt.Errorf("%w: channel %s: %w", ErrDecode, desc.Name, err)
		}

		ch := NewChannel(channelName, desc.Type, img.width, img.height)
		ch.setSampling(desc.XSampling, desc.YSampling)
		if err := layer.add(ch); err != nil {
			return err
		}

		fb.Insert(desc.Name, exrfile.Slice{
			Type:      ch.PixelType(),
			Base:      ch.data,
			XStride:   ch.XStride(),
			YStride:   ch.YStride(),
			XSampling: desc.XSampling,
			YSampling: desc.YSampling,
			Fill:      0,
		})
	}

	img.logger.Debug("reading pixels",
		"path", img.path,
		"width", img.width,
		"height", img.height,
		"channels", fb.Len(),
		"layers", len(img.layers),
	)

	f.SetFrameBuffer(fb)
	if err := f.ReadPixels(dw.Min.Y, dw.Max.Y); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img.loaded = true
	return nil
}

func (img *Image) layerFor(name string) *Layer {
	if i, ok := img.index[name]; ok {
		return img.layers[i]
	}
	l := newLayer(name)
	img.index[name] = len(img.layers)
	img.layers = append(img.layers, l)
	return l
}

func (img *Image) reset() {
	img.loaded = false
	img.width = 0
	img.height = 0
	img.layers = nil
	img.index = make(map[string]int)
}

// Path returns source path.
func (img *Image) Path() string { return img.path }

// Loaded reports whether Load has succeeded.
func (img *Image) Loaded() bool { return img.loaded }

// Width returns width of data window in pixels.
func (img *Image) Width() int { return img.width }

// Height returns height of data window in pixels.
func (img *Image) Height() int { return img.height }

// Layers returns layers in order of first appearance, the slice must not be modified.
func (img *Image) Layers() []*Layer { return img.layers }

// LayerAt returns layer at index or nil if index is out of range.
func (img *Image) LayerAt(i int) *Layer {
	if i < 0 || i >= len(img.layers) {
		return nil
	}
	return img.layers[i]
}

// Layer finds layer by name, the default layer has empty name.
func (img *Image) Layer(name string) (*Layer, bool) {
	i, ok := img.index[name]
	if !ok {
		return nil, false
	}
	return img.layers[i], true
}
