package exrlayers

import (
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/samber/lo"
)

// ConvertOptions controls Convert.
type ConvertOptions struct {
	Settings Settings
	// Opacity of created layers in percent, default 100.
	Opacity float64
	Logger  *slog.Logger
}

// Convert tone maps every layer of a loaded image into 8-bit drawables of a new sink canvas.
//
// Canvas is grayscale when all layers are Y or YA, otherwise luminance layers
// are expanded to RGB. Layers are inserted in image order, the first one on top.
// Conversion stops at the first unsupported layer or sink error, layers that
// were already emitted are left to the sink.
func Convert(img *Image, sink Sink, opts ...func(o *ConvertOptions)) (CanvasID, error) {
	o := ConvertOptions{
		Settings: DefaultSettings(),
		Opacity:  defaultOpacity,
	}
	for _, applyOpt := range opts {
		applyOpt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if img == nil || !img.Loaded() {
		return -1, ErrNotLoaded
	}
	if err := o.Settings.Validate(); err != nil {
		return -1, err
	}

	layers := img.Layers()
	types := lo.Map(layers, func(l *Layer, _ int) LayerType { return Classify(l) })
	gray := lo.EveryBy(types, LayerType.Gray)

	base := BaseRGB
	if gray {
		base = BaseGray
	}

	w, h := img.Width(), img.Height()
	canvas, err := sink.NewCanvas(w, h, base)
	if err != nil {
		return -1, fmt.Errorf("%w: failed to create image: %w", ErrSinkFailure, err)
	}

	for i, layer := range layers {
		typ := types[i]

		pix, err := renderLayer(o.Settings, layer, typ, w, h)
		if err != nil {
			return canvas, err
		}

		drawable := drawableType(typ, gray)
		if typ.Gray() && !gray {
			pix = expandGray(pix, typ.HasAlpha())
		}

		if err := emitLayer(sink, canvas, i, layer.Name(), w, h, drawable, o.Opacity, pix); err != nil {
			return canvas, err
		}

		o.Logger.Debug("converted layer",
			"name", layer.Name(),
			"type", typ.String(),
			"drawable", drawable.String(),
			"position", i,
		)
	}

	return canvas, nil
}

// WithSettings sets tone mapping settings.
func WithSettings(s Settings) func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.Settings = s
	}
}

// WithConvertLogger sets logger for conversion diagnostics.
func WithConvertLogger(l *slog.Logger) func(o *ConvertOptions) {
	return func(o *ConvertOptions) {
		o.Logger = l
	}
}

func emitLayer(sink Sink, canvas CanvasID, position int, name string, w, h int, typ DrawableType, opacity float64, pix []byte) error {
	id, err := sink.NewLayer(canvas, name, w, h, typ, opacity, BlendNormal)
	if err != nil {
		return fmt.Errorf("%w: failed to create layer %q: %w", ErrSinkFailure, name, err)
	}
	if err := sink.InsertLayer(canvas, id, position); err != nil {
		return fmt.Errorf("%w: failed to add layer %q: %w", ErrSinkFailure, name, err)
	}
	if err := sink.WritePixels(id, image.Rect(0, 0, w, h), pix); err != nil {
		return fmt.Errorf("%w: failed to write pixels of layer %q: %w", ErrSinkFailure, name, err)
	}
	if err := sink.FinalizeLayer(id); err != nil {
		return fmt.Errorf("%w: failed to finalize layer %q: %w", ErrSinkFailure, name, err)
	}
	return nil
}

// layerChannels lists channel names in output component order.
var layerChannels = map[LayerType][]string{
	LayerY:    {ChannelY},
	LayerYA:   {ChannelY, ChannelA},
	LayerYC:   {ChannelY, ChannelRY, ChannelBY},
	LayerYCA:  {ChannelY, ChannelRY, ChannelBY, ChannelA},
	LayerRGB:  {ChannelR, ChannelG, ChannelB},
	LayerRGBA: {ChannelR, ChannelG, ChannelB, ChannelA},
}

func renderLayer(s Settings, layer *Layer, typ LayerType, w, h int) ([]byte, error) {
	names, ok := layerChannels[typ]
	if !ok {
		return nil, fmt.Errorf("%w %s: layer %q with channels %v", ErrUnclassifiedLayer, typ, layer.Name(), layer.Names())
	}

	planes := make([]Plane, 0, len(names))
	for _, name := range names {
		ch, ok := layer.Channel(name)
		if !ok {
			return nil, fmt.Errorf("%w %s: layer %q has no channel %q", ErrUnclassifiedLayer, typ, layer.Name(), name)
		}
		planes = append(planes, ch.Plane())
	}

	var (
		pix []byte
		err error
	)
	switch typ {
	case LayerYC, LayerYCA:
		var alpha *Plane
		if typ == LayerYCA {
			alpha = &planes[3]
		}
		pix, err = ToneMapChroma(s, w, h, planes[0], planes[1], planes[2], alpha)
	default:
		pix, err = ToneMap(s, w*h, planes...)
	}
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", layer.Name(), err)
	}
	return pix, nil
}

func drawableType(typ LayerType, gray bool) DrawableType {
	switch {
	case gray && typ.HasAlpha():
		return DrawableGrayA
	case gray:
		return DrawableGray
	case typ.HasAlpha():
		return DrawableRGBA
	default:
		return DrawableRGB
	}
}

// expandGray replicates luminance into RGB keeping alpha if present.
func expandGray(pix []byte, alpha bool) []byte {
	src, dst := 1, 3
	if alpha {
		src, dst = 2, 4
	}
	n := len(pix) / src
	out := make([]byte, n*dst)
	for i := 0; i < n; i++ {
		v := pix[i*src]
		out[i*dst], out[i*dst+1], out[i*dst+2] = v, v, v
		if alpha {
			out[i*dst+3] = pix[i*src+1]
		}
	}
	return out
}
