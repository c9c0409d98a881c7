package exrfile

import (
	"fmt"
	"sort"
)

// Slice is a write target for samples of one channel.
//
// Sample (sx, sy), counted from the first sampled column and row of data window,
// is stored at Base[sx*XStride+sy*YStride]. Samples are converted to Type.
type Slice struct {
	Type      PixelType
	Base      []byte
	XStride   int
	YStride   int
	XSampling int
	YSampling int
	// Fill is written to every sample when the file has no channel with slice name.
	Fill float32
}

func (s Slice) put(off int, v float32) error {
	size := s.Type.Size()
	if off < 0 || off+size > len(s.Base) {
		return fmt.Errorf("slice offset %d out of buffer bounds %d", off, len(s.Base))
	}
	EncodeSample(s.Type, s.Base[off:off+size], v)
	return nil
}

func (s Slice) putRaw(off int, t PixelType, raw []byte) error {
	if t != s.Type {
		return s.put(off, DecodeSample(t, raw))
	}
	if off < 0 || off+len(raw) > len(s.Base) {
		return fmt.Errorf("slice offset %d out of buffer bounds %d", off, len(s.Base))
	}
	copy(s.Base[off:], raw)
	return nil
}

// FrameBuffer maps channel names to slices.
type FrameBuffer struct {
	slices map[string]Slice
}

// NewFrameBuffer creates an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{slices: make(map[string]Slice)}
}

// Insert adds or replaces slice for a full channel name.
func (fb *FrameBuffer) Insert(name string, s Slice) {
	if s.XSampling <= 0 {
		s.XSampling = 1
	}
	if s.YSampling <= 0 {
		s.YSampling = 1
	}
	fb.slices[name] = s
}

// Slice returns slice registered for name.
func (fb *FrameBuffer) Slice(name string) (Slice, bool) {
	s, ok := fb.slices[name]
	return s, ok
}

// Names returns sorted names of registered slices.
func (fb *FrameBuffer) Names() []string {
	names := make([]string, 0, len(fb.slices))
	for name := range fb.slices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered slices.
func (fb *FrameBuffer) Len() int {
	return len(fb.slices)
}
