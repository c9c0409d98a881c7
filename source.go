package exrlayers

import "github.com/vearutop/exrlayers/exrfile"

// Source opens image files for decoding.
type Source interface {
	// IsOpenEXR probes whether path holds a supported container.
	IsOpenEXR(path string) bool
	Open(path string) (InputFile, error)
}

// InputFile is an opened file that fills registered buffers on ReadPixels.
type InputFile interface {
	DataWindow() exrfile.Box2i
	Channels() []exrfile.Channel
	SetFrameBuffer(fb *exrfile.FrameBuffer)
	ReadPixels(y1, y2 int) error
	Close() error
}

// FileSource reads OpenEXR files with package exrfile.
type FileSource struct{}

// IsOpenEXR implements Source.
func (FileSource) IsOpenEXR(path string) bool {
	return exrfile.IsOpenEXR(path)
}

// Open implements Source.
func (FileSource) Open(path string) (InputFile, error) {
	f, err := exrfile.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
