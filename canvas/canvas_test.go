package canvas_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vearutop/exrlayers"
	"github.com/vearutop/exrlayers/canvas"
	"golang.org/x/image/tiff"
)

func newLayer(t *testing.T, s *canvas.Store, c exrlayers.CanvasID, name string, typ exrlayers.DrawableType) exrlayers.LayerID {
	t.Helper()

	id, err := s.NewLayer(c, name, 2, 2, typ, 100, exrlayers.BlendNormal)
	if err != nil {
		t.Fatalf("new layer %s: %v", name, err)
	}
	return id
}

func TestStore_InsertLayer(t *testing.T) {
	s := canvas.New()
	c, err := s.NewCanvas(2, 2, exrlayers.BaseRGB)
	if err != nil {
		t.Fatal(err)
	}

	a := newLayer(t, s, c, "a", exrlayers.DrawableRGB)
	b := newLayer(t, s, c, "b", exrlayers.DrawableRGBA)
	d := newLayer(t, s, c, "d", exrlayers.DrawableRGB)

	for _, ins := range []struct {
		id  exrlayers.LayerID
		pos int
	}{{a, 0}, {b, 0}, {d, 99}} {
		if err := s.InsertLayer(c, ins.id, ins.pos); err != nil {
			t.Fatalf("insert %d: %v", ins.id, err)
		}
	}
	if err := s.InsertLayer(c, a, 0); err == nil {
		t.Fatal("expected error on repeated insert")
	}

	cv, _ := s.Canvas(c)
	var names []string
	for _, l := range cv.Layers {
		names = append(names, l.Name)
	}
	if diff := cmp.Diff([]string{"b", "a", "d"}, names); diff != "" {
		t.Fatalf("unexpected stack (-want +got):\n%s", diff)
	}
}

func TestStore_errors(t *testing.T) {
	s := canvas.New()
	if _, err := s.NewCanvas(0, 2, exrlayers.BaseGray); err == nil {
		t.Fatal("expected error for empty canvas")
	}

	c, _ := s.NewCanvas(2, 2, exrlayers.BaseGray)
	if _, err := s.NewLayer(c, "rgb", 2, 2, exrlayers.DrawableRGB, 100, exrlayers.BlendNormal); err == nil {
		t.Fatal("expected error for rgb layer in gray canvas")
	}
	if _, err := s.NewLayer(c, "op", 2, 2, exrlayers.DrawableGray, 101, exrlayers.BlendNormal); err == nil {
		t.Fatal("expected error for opacity")
	}
	if _, err := s.NewLayer(c+1, "none", 2, 2, exrlayers.DrawableGray, 100, exrlayers.BlendNormal); err == nil {
		t.Fatal("expected error for unknown canvas")
	}

	id := newLayer(t, s, c, "g", exrlayers.DrawableGray)
	if err := s.WritePixels(id, image.Rect(0, 0, 3, 2), make([]byte, 6)); err == nil {
		t.Fatal("expected error for rect out of bounds")
	}
	if err := s.WritePixels(id, image.Rect(0, 0, 2, 2), make([]byte, 3)); err == nil {
		t.Fatal("expected error for short pixels")
	}
	if err := s.WritePixels(id, image.Rect(1, 1, 2, 2), []byte{9}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.FinalizeLayer(id); err != nil {
		t.Fatal(err)
	}
	if err := s.WritePixels(id, image.Rect(0, 0, 1, 1), []byte{1}); err == nil {
		t.Fatal("expected error for finalized layer")
	}

	l, _ := s.Layer(id)
	if diff := cmp.Diff([]byte{0, 0, 0, 9}, l.Pix); diff != "" {
		t.Fatalf("unexpected pixels (-want +got):\n%s", diff)
	}
	if _, err := s.Layer(id + 1); err == nil {
		t.Fatal("expected error for unknown layer")
	}
}

func TestLayer_Image(t *testing.T) {
	for _, tc := range []struct {
		typ  exrlayers.DrawableType
		pix  []byte
		want color.Color
	}{
		{exrlayers.DrawableGray, []byte{10, 20, 30, 40}, color.Gray{Y: 40}},
		{exrlayers.DrawableGrayA, []byte{1, 2, 3, 4, 5, 6, 7, 8}, color.NRGBA{R: 7, G: 7, B: 7, A: 8}},
		{exrlayers.DrawableRGB, bytes.Repeat([]byte{1, 2, 3}, 4), color.RGBA{R: 1, G: 2, B: 3, A: 255}},
		{exrlayers.DrawableRGBA, bytes.Repeat([]byte{4, 5, 6, 7}, 4), color.NRGBA{R: 4, G: 5, B: 6, A: 7}},
	} {
		l := &canvas.Layer{Width: 2, Height: 2, Type: tc.typ, Pix: tc.pix}
		img, err := l.Image()
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		if img.Bounds() != image.Rect(0, 0, 2, 2) {
			t.Fatalf("%s: unexpected bounds %v", tc.typ, img.Bounds())
		}
		if got := img.At(1, 1); got != tc.want {
			t.Errorf("%s: got %#v want %#v", tc.typ, got, tc.want)
		}
	}

	if _, err := (&canvas.Layer{}).Image(); err != canvas.ErrEmptyLayer {
		t.Fatalf("expected empty layer error, got %v", err)
	}
}

func TestEncode(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = byte(i * 10)
	}

	for _, f := range []canvas.Format{canvas.FormatPNG, canvas.FormatTIFF} {
		var buf bytes.Buffer
		if err := canvas.Encode(&buf, src, f); err != nil {
			t.Fatalf("%s: %v", f, err)
		}

		var (
			got image.Image
			err error
		)
		if f == canvas.FormatPNG {
			got, err = png.Decode(&buf)
		} else {
			got, err = tiff.Decode(&buf)
		}
		if err != nil {
			t.Fatalf("%s decode: %v", f, err)
		}
		if got.Bounds() != src.Bounds() {
			t.Fatalf("%s: unexpected bounds %v", f, got.Bounds())
		}
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				want := color.NRGBAModel.Convert(src.At(x, y))
				if c := color.NRGBAModel.Convert(got.At(x, y)); c != want {
					t.Fatalf("%s (%d,%d): got %v want %v", f, x, y, c, want)
				}
			}
		}
	}

	if err := canvas.Encode(&bytes.Buffer{}, src, "bmp"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPreview(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))

	if got := canvas.Preview(src, 0); got != image.Image(src) {
		t.Fatal("zero size must keep image")
	}
	if got := canvas.Preview(src, 64); got != image.Image(src) {
		t.Fatal("small image must be kept")
	}
	if b := canvas.Preview(src, 10).Bounds(); b.Dx() != 10 || b.Dy() != 5 {
		t.Fatalf("unexpected preview bounds %v", b)
	}
}
