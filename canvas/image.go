package canvas

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/nfnt/resize"
	"github.com/vearutop/exrlayers"
	"golang.org/x/image/tiff"
)

// Image returns layer pixels as *image.Gray, *image.RGBA (opaque RGB) or *image.NRGBA.
// Gray with alpha is expanded to NRGBA as Go has no gray-alpha model.
func (l *Layer) Image() (image.Image, error) {
	if l.Width <= 0 || l.Height <= 0 || len(l.Pix) == 0 {
		return nil, ErrEmptyLayer
	}
	r := image.Rect(0, 0, l.Width, l.Height)
	n := l.Width * l.Height

	switch l.Type {
	case exrlayers.DrawableGray:
		img := image.NewGray(r)
		copy(img.Pix, l.Pix)
		return img, nil
	case exrlayers.DrawableGrayA:
		img := image.NewNRGBA(r)
		for i := 0; i < n; i++ {
			v, a := l.Pix[2*i], l.Pix[2*i+1]
			copy(img.Pix[4*i:4*i+4], []byte{v, v, v, a})
		}
		return img, nil
	case exrlayers.DrawableRGB:
		img := image.NewRGBA(r)
		for i := 0; i < n; i++ {
			copy(img.Pix[4*i:4*i+3], l.Pix[3*i:3*i+3])
			img.Pix[4*i+3] = 0xff
		}
		return img, nil
	case exrlayers.DrawableRGBA:
		img := image.NewNRGBA(r)
		copy(img.Pix, l.Pix)
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported drawable type %d", l.Type)
	}
}

// Format is an output file format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
)

// Encode writes img in given format, TIFF is deflate compressed.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// Preview downscales img to fit into maxSize x maxSize keeping aspect ratio,
// images that already fit and zero maxSize are returned as is.
func Preview(img image.Image, maxSize uint) image.Image {
	b := img.Bounds()
	if maxSize == 0 || (uint(b.Dx()) <= maxSize && uint(b.Dy()) <= maxSize) {
		return img
	}
	return resize.Thumbnail(maxSize, maxSize, img, resize.Lanczos3)
}
