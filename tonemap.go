package exrlayers

import (
	"errors"
	"fmt"
	"math"

	"github.com/vearutop/exrlayers/exrfile"
)

// Curve selects the tone mapping curve.
type Curve int

const (
	// CurveLinear scales samples by 255 (and exposure), then rounds and clamps.
	CurveLinear Curve = iota
	// CurveFilmic applies defog, exposure, knee compression and gamma the way exrdisplay does.
	CurveFilmic
)

func (c Curve) String() string {
	if c == CurveFilmic {
		return "filmic"
	}
	return "linear"
}

// Settings controls tone mapping.
type Settings struct {
	Gamma float32
	// Exposure is in stops.
	Exposure float32
	// KneeLow and KneeHigh are in stops, values above KneeLow are compressed
	// so that KneeHigh reaches display white.
	KneeLow  float32
	KneeHigh float32
	// Defog is subtracted from samples before exposure.
	Defog float32
	Curve Curve
}

// DefaultSettings returns gamma 2.2, exposure 0, knee 0..5, no defog and linear curve.
func DefaultSettings() Settings {
	return Settings{
		Gamma:    defaultGamma,
		Exposure: defaultExposure,
		KneeLow:  defaultKneeLow,
		KneeHigh: defaultKneeHigh,
		Defog:    defaultDefog,
		Curve:    CurveLinear,
	}
}

// Validate checks that settings can be applied.
func (s Settings) Validate() error {
	for _, v := range []struct {
		name  string
		value float32
	}{
		{"gamma", s.Gamma},
		{"exposure", s.Exposure},
		{"knee low", s.KneeLow},
		{"knee high", s.KneeHigh},
		{"defog", s.Defog},
	} {
		if f := float64(v.value); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidSettings, v.name)
		}
	}
	if s.Gamma <= 0 {
		return fmt.Errorf("%w: gamma must be positive, %v given", ErrInvalidSettings, s.Gamma)
	}
	if s.Curve == CurveFilmic && s.KneeHigh <= s.KneeLow {
		return fmt.Errorf("%w: knee high %v must exceed knee low %v", ErrInvalidSettings, s.KneeHigh, s.KneeLow)
	}
	if s.Defog < 0 {
		return fmt.Errorf("%w: defog must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Plane is a read-only view of samples of one type.
type Plane struct {
	Data []byte
	Type PixelType
	// Stride is the number of samples per row, it is only used by ToneMapChroma.
	Stride int
	// XSampling and YSampling are subsampling factors of plane, zero means
	// full resolution for ToneMap and luminance, 2 for chroma planes.
	XSampling int
	YSampling int
}

// Len returns the number of samples in plane.
func (p Plane) Len() int {
	size := p.Type.Size()
	if size == 0 {
		return 0
	}
	return len(p.Data) / size
}

func (p Plane) sampling(def int) (x, y int) {
	x, y = p.XSampling, p.YSampling
	if x <= 0 {
		x = def
	}
	if y <= 0 {
		y = def
	}
	return x, y
}

func (p Plane) fullResolution() bool {
	x, y := p.sampling(1)
	return x == 1 && y == 1
}

func (p Plane) at(i int) float32 {
	size := p.Type.Size()
	return exrfile.DecodeSample(p.Type, p.Data[i*size:(i+1)*size])
}

const (
	// whiteStops is the knee target that maps to display white.
	whiteStops = 3.5
	// middleGrayEV brings 0.18 to 1.0.
	middleGrayEV = 2.47393
)

type toneMapper struct {
	curve    Curve
	exposure float64
	defog    float64
	kneeLow  float64
	kneeF    float64
	invGamma float64
	scale    float64
}

func newToneMapper(s Settings) (*toneMapper, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	tm := &toneMapper{curve: s.Curve}
	if s.Curve != CurveFilmic {
		tm.exposure = math.Exp2(float64(s.Exposure))
		return tm, nil
	}

	white := math.Exp2(whiteStops)
	tm.exposure = math.Exp2(float64(s.Exposure) + middleGrayEV)
	tm.defog = float64(s.Defog)
	tm.kneeLow = math.Exp2(float64(s.KneeLow))
	tm.kneeF = findKneeF(math.Exp2(float64(s.KneeHigh))-tm.kneeLow, white-tm.kneeLow)
	tm.invGamma = 1 / float64(s.Gamma)
	tm.scale = 255 / math.Pow(white, tm.invGamma)
	return tm, nil
}

// Map converts a sample to a display value, it is monotone non-decreasing.
func (tm *toneMapper) Map(v float32) uint8 {
	x := float64(v)
	if math.IsNaN(x) {
		return 0
	}

	if tm.curve != CurveFilmic {
		return clampByte(x * tm.exposure * 255)
	}

	x = math.Max(0, x-tm.defog) * tm.exposure
	if x > tm.kneeLow {
		x = tm.kneeLow + knee(x-tm.kneeLow, tm.kneeF)
	}
	return clampByte(math.Pow(x, tm.invGamma) * tm.scale)
}

func clampByte(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func knee(x, f float64) float64 {
	if f <= 0 {
		return x
	}
	return math.Log1p(x*f) / f
}

// findKneeF finds f such that knee(x, f) == y, 0 disables compression.
func findKneeF(x, y float64) float64 {
	if y <= 0 || x <= y {
		return 0
	}
	f0, f1 := 0.0, 1.0
	for knee(x, f1) > y {
		f0 = f1
		f1 *= 2
	}
	for i := 0; i < 30; i++ {
		f2 := (f0 + f1) / 2
		if knee(x, f2) < y {
			f1 = f2
		} else {
			f0 = f2
		}
	}
	return (f0 + f1) / 2
}

// ToneMap converts planes of pixelCount samples into interleaved 8-bit buffer,
// component j of pixel i is stored at out[len(planes)*i+j].
func ToneMap(s Settings, pixelCount int, planes ...Plane) ([]byte, error) {
	tm, err := newToneMapper(s)
	if err != nil {
		return nil, err
	}
	if len(planes) == 0 {
		return nil, errors.New("no planes to tone map")
	}
	for j, p := range planes {
		if !p.fullResolution() {
			return nil, fmt.Errorf("plane %d is subsampled %dx%d", j, p.XSampling, p.YSampling)
		}
		if p.Len() < pixelCount {
			return nil, fmt.Errorf("plane %d has %d samples, %d expected", j, p.Len(), pixelCount)
		}
	}

	n := len(planes)
	out := make([]byte, pixelCount*n)
	for i := 0; i < pixelCount; i++ {
		for j, p := range planes {
			out[n*i+j] = tm.Map(p.at(i))
		}
	}
	return out, nil
}

// ToneMapChroma converts a luminance/chroma image into interleaved Y, RY, BY and optional A components.
//
// Luminance and alpha are read at (x, y), chroma planes are read at
// (x/XSampling, y/YSampling), sampling defaults to 2x2. Components are mapped
// independently, no RGB matrix is applied. Zero plane stride means tightly packed rows.
func ToneMapChroma(s Settings, width, height int, y, ry, by Plane, a *Plane) ([]byte, error) {
	tm, err := newToneMapper(s)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}

	if !y.fullResolution() {
		return nil, fmt.Errorf("%s plane is subsampled %dx%d", ChannelY, y.XSampling, y.YSampling)
	}
	y.Stride = defaultStride(y.Stride, width)
	ry = chromaPlane(ry, width)
	by = chromaPlane(by, width)

	check := func(name string, p Plane) error {
		xs, ys := p.sampling(1)
		w, h := (width+xs-1)/xs, (height+ys-1)/ys
		if need := (h-1)*p.Stride + w; p.Len() < need {
			return fmt.Errorf("%s plane has %d samples, %d expected", name, p.Len(), need)
		}
		return nil
	}
	if err := check(ChannelY, y); err != nil {
		return nil, err
	}
	if err := check(ChannelRY, ry); err != nil {
		return nil, err
	}
	if err := check(ChannelBY, by); err != nil {
		return nil, err
	}

	comps := 3
	var alpha Plane
	if a != nil {
		comps = 4
		alpha = *a
		if !alpha.fullResolution() {
			return nil, fmt.Errorf("%s plane is subsampled %dx%d", ChannelA, alpha.XSampling, alpha.YSampling)
		}
		alpha.Stride = defaultStride(alpha.Stride, width)
		if err := check(ChannelA, alpha); err != nil {
			return nil, err
		}
	}

	out := make([]byte, width*height*comps)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			o := (row*width + col) * comps

			out[o] = tm.Map(y.at(row*y.Stride + col))
			out[o+1] = tm.Map(ry.at(sampleIndex(col, row, ry)))
			out[o+2] = tm.Map(by.at(sampleIndex(col, row, by)))
			if comps == 4 {
				out[o+3] = tm.Map(alpha.at(row*alpha.Stride + col))
			}
		}
	}
	return out, nil
}

// sampleIndex returns sample index in a subsampled plane for full resolution pixel (x, y).
func sampleIndex(x, y int, p Plane) int {
	return (y/p.YSampling)*p.Stride + x/p.XSampling
}

// chromaPlane resolves default 2x2 sampling and packed stride of a chroma plane.
func chromaPlane(p Plane, width int) Plane {
	p.XSampling, p.YSampling = p.sampling(2)
	p.Stride = defaultStride(p.Stride, (width+p.XSampling-1)/p.XSampling)
	return p
}

func defaultStride(stride, width int) int {
	if stride <= 0 {
		return width
	}
	return stride
}
