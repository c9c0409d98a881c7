package exrlayers

import (
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vearutop/exrlayers/exrfile"
	"github.com/vearutop/exrlayers/internal/exrtest"
)

type sinkLayer struct {
	Name     string
	Type     DrawableType
	Opacity  float64
	Position int
	Pix      []byte
	Final    bool
}

type recordingSink struct {
	base   BaseType
	width  int
	height int
	layers []*sinkLayer
	calls  []string

	failOn string
}

func (s *recordingSink) fail(call string) error {
	s.calls = append(s.calls, call)
	if s.failOn == call {
		return errors.New(call + " rejected")
	}
	return nil
}

func (s *recordingSink) NewCanvas(width, height int, base BaseType) (CanvasID, error) {
	if err := s.fail("NewCanvas"); err != nil {
		return -1, err
	}
	s.width, s.height, s.base = width, height, base
	return 7, nil
}

func (s *recordingSink) NewLayer(canvas CanvasID, name string, width, height int, typ DrawableType, opacity float64, mode BlendMode) (LayerID, error) {
	if err := s.fail("NewLayer"); err != nil {
		return -1, err
	}
	s.layers = append(s.layers, &sinkLayer{Name: name, Type: typ, Opacity: opacity, Position: -1})
	return LayerID(len(s.layers) - 1), nil
}

func (s *recordingSink) InsertLayer(canvas CanvasID, layer LayerID, position int) error {
	if err := s.fail("InsertLayer"); err != nil {
		return err
	}
	s.layers[layer].Position = position
	return nil
}

func (s *recordingSink) WritePixels(layer LayerID, rect image.Rectangle, pix []byte) error {
	if err := s.fail("WritePixels"); err != nil {
		return err
	}
	if rect != image.Rect(0, 0, s.width, s.height) {
		return errors.New("unexpected rect")
	}
	s.layers[layer].Pix = append([]byte(nil), pix...)
	return nil
}

func (s *recordingSink) FinalizeLayer(layer LayerID) error {
	if err := s.fail("FinalizeLayer"); err != nil {
		return err
	}
	s.layers[layer].Final = true
	return nil
}

func loadFake(t *testing.T, w, h int, value func(name string, x, y int) float32, names ...string) *Image {
	t.Helper()

	img := New("fake.exr", WithSource(&fakeSource{
		valid:    true,
		window:   window(w, h),
		channels: channels(PixelTypeFloat, names...),
		value:    value,
	}))
	if err := img.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	return img
}

func constant(v float32) func(string, int, int) float32 {
	return func(string, int, int) float32 { return v }
}

func TestConvert_rgba(t *testing.T) {
	img := loadFake(t, 2, 2, constant(0.5), "R", "G", "B", "A")
	sink := &recordingSink{}

	canvas, err := Convert(img, sink)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if canvas != 7 || sink.base != BaseRGB || sink.width != 2 || sink.height != 2 {
		t.Fatalf("unexpected canvas %d: %s %dx%d", canvas, sink.base, sink.width, sink.height)
	}
	if len(sink.layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(sink.layers))
	}

	l := sink.layers[0]
	if l.Name != "" || l.Type != DrawableRGBA || l.Opacity != 100 || l.Position != 0 || !l.Final {
		t.Fatalf("unexpected layer %+v", l)
	}
	if len(l.Pix) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(l.Pix))
	}
	for i, v := range l.Pix {
		if v != 127 && v != 128 {
			t.Fatalf("byte %d: got %d", i, v)
		}
	}
	if diff := cmp.Diff([]string{"NewCanvas", "NewLayer", "InsertLayer", "WritePixels", "FinalizeLayer"}, sink.calls); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}
}

func TestConvert_unclassified(t *testing.T) {
	img := loadFake(t, 2, 2, constant(1), "R", "G", "B", "A", "Z")
	sink := &recordingSink{}

	_, err := Convert(img, sink)
	if !errors.Is(err, ErrUnclassifiedLayer) {
		t.Fatalf("expected unclassified layer error, got %v", err)
	}
	if len(sink.layers) != 0 {
		t.Fatalf("no layers must be created, got %d", len(sink.layers))
	}
}

func TestConvert_grayCanvas(t *testing.T) {
	img := loadFake(t, 3, 1, func(name string, x, _ int) float32 {
		if name == "mask.A" {
			return 1
		}
		return float32(x) / 2
	}, "Y", "mask.A", "mask.Y")
	sink := &recordingSink{}

	if _, err := Convert(img, sink); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if sink.base != BaseGray {
		t.Fatalf("expected gray canvas, got %s", sink.base)
	}

	want := []*sinkLayer{
		{Name: "", Type: DrawableGray, Opacity: 100, Position: 0, Pix: []byte{0, 128, 255}, Final: true},
		{Name: "mask", Type: DrawableGrayA, Opacity: 100, Position: 1, Pix: []byte{0, 255, 128, 255, 255, 255}, Final: true},
	}
	if diff := cmp.Diff(want, sink.layers); diff != "" {
		t.Fatalf("unexpected layers (-want +got):\n%s", diff)
	}
}

func TestConvert_mixedCanvas(t *testing.T) {
	img := loadFake(t, 2, 1, func(name string, x, _ int) float32 {
		if name == "beauty.R" {
			return 1
		}
		return float32(x)
	}, "Y", "A", "beauty.R", "beauty.G", "beauty.B")
	sink := &recordingSink{}

	s := DefaultSettings()
	s.Exposure = -1
	if _, err := Convert(img, sink, WithSettings(s)); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if sink.base != BaseRGB {
		t.Fatalf("expected rgb canvas, got %s", sink.base)
	}

	want := []*sinkLayer{
		{Name: "", Type: DrawableRGBA, Opacity: 100, Position: 0, Pix: []byte{0, 0, 0, 0, 128, 128, 128, 128}, Final: true},
		{Name: "beauty", Type: DrawableRGB, Opacity: 100, Position: 1, Pix: []byte{128, 0, 0, 128, 128, 128}, Final: true},
	}
	if diff := cmp.Diff(want, sink.layers); diff != "" {
		t.Fatalf("unexpected layers (-want +got):\n%s", diff)
	}
}

func TestConvert_chroma(t *testing.T) {
	const w, h = 4, 2

	p := exrtest.WriteFile(t, exrtest.Image{
		Width:       w,
		Height:      h,
		Compression: exrfile.CompressionRLE,
		Channels: []exrtest.Channel{
			exrtest.Fill("Y", exrfile.PixelTypeHalf, w, h, 0.5),
			{Name: "RY", Type: exrfile.PixelTypeHalf, XSampling: 2, YSampling: 2, Values: []float32{1, 0}},
			{Name: "BY", Type: exrfile.PixelTypeHalf, XSampling: 2, YSampling: 2, Values: []float32{0, 0.25}},
		},
	})

	img := New(p)
	if err := img.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	sink := &recordingSink{}
	if _, err := Convert(img, sink); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(sink.layers) != 1 || sink.layers[0].Type != DrawableRGB {
		t.Fatalf("unexpected layers %+v", sink.layers)
	}

	// Components are Y, RY, BY, chroma replicated over 2x2 blocks.
	want := []byte{
		128, 255, 0, 128, 255, 0, 128, 0, 64, 128, 0, 64,
		128, 255, 0, 128, 255, 0, 128, 0, 64, 128, 0, 64,
	}
	if diff := cmp.Diff(want, sink.layers[0].Pix); diff != "" {
		t.Fatalf("unexpected pixels (-want +got):\n%s", diff)
	}
}

func TestConvert_fullResolutionChroma(t *testing.T) {
	const w, h = 4, 2

	ry := make([]float32, w*h)
	for i := range ry {
		ry[i] = float32(i) / 8
	}
	p := exrtest.WriteFile(t, exrtest.Image{
		Width:  w,
		Height: h,
		Channels: []exrtest.Channel{
			exrtest.Fill("Y", exrfile.PixelTypeFloat, w, h, 0),
			{Name: "RY", Type: exrfile.PixelTypeFloat, XSampling: 1, YSampling: 1, Values: ry},
			exrtest.Fill("BY", exrfile.PixelTypeFloat, w, h, 0),
		},
	})

	img := New(p)
	if err := img.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	sink := &recordingSink{}
	if _, err := Convert(img, sink); err != nil {
		t.Fatalf("convert: %v", err)
	}

	got := make([]byte, 0, w*h)
	for i := 0; i < w*h; i++ {
		got = append(got, sink.layers[0].Pix[i*3+1])
	}
	// Every pixel keeps its own chroma sample: i/8*255 rounded.
	want := []byte{0, 32, 64, 96, 128, 159, 191, 223}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected RY components (-want +got):\n%s", diff)
	}
}

func TestConvert_subsampledRGB(t *testing.T) {
	const w, h = 4, 2

	p := exrtest.WriteFile(t, exrtest.Image{
		Width:  w,
		Height: h,
		Channels: []exrtest.Channel{
			exrtest.Fill("R", exrfile.PixelTypeHalf, w, h, 1),
			exrtest.Fill("G", exrfile.PixelTypeHalf, w, h, 1),
			{Name: "B", Type: exrfile.PixelTypeHalf, XSampling: 2, YSampling: 2, Values: []float32{1, 1}},
		},
	})

	img := New(p)
	if err := img.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	sink := &recordingSink{}
	if _, err := Convert(img, sink); err == nil {
		t.Fatal("expected error for subsampled B")
	}
	if len(sink.layers) != 0 {
		t.Fatalf("no layers must be created, got %d", len(sink.layers))
	}
}

func TestConvert_errors(t *testing.T) {
	if _, err := Convert(New("fake.exr"), &recordingSink{}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded error, got %v", err)
	}
	if _, err := Convert(nil, &recordingSink{}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded error, got %v", err)
	}

	img := loadFake(t, 1, 1, constant(1), "R", "G", "B")
	if _, err := Convert(img, &recordingSink{}, WithSettings(Settings{})); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected invalid settings error, got %v", err)
	}

	for _, call := range []string{"NewCanvas", "NewLayer", "InsertLayer", "WritePixels", "FinalizeLayer"} {
		sink := &recordingSink{failOn: call}
		_, err := Convert(img, sink)
		if !errors.Is(err, ErrSinkFailure) {
			t.Fatalf("%s: expected sink failure, got %v", call, err)
		}
		if last := sink.calls[len(sink.calls)-1]; last != call {
			t.Fatalf("%s: conversion continued with %s", call, last)
		}
	}
}

func TestExpandGray(t *testing.T) {
	if diff := cmp.Diff([]byte{1, 1, 1, 2, 2, 2}, expandGray([]byte{1, 2}, false)); diff != "" {
		t.Fatalf("unexpected rgb (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{1, 1, 1, 9, 2, 2, 2, 8}, expandGray([]byte{1, 9, 2, 8}, true)); diff != "" {
		t.Fatalf("unexpected rgba (-want +got):\n%s", diff)
	}
}
