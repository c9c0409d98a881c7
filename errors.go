package exrlayers

import "errors"

var (
	// ErrInvalidContainer is returned when source is not an OpenEXR file.
	ErrInvalidContainer = errors.New("file is not a valid OpenEXR file")
	// ErrDecode wraps failures of the codec during open or pixel read.
	ErrDecode = errors.New("decode failed")
	// ErrNotLoaded is returned when conversion is attempted before successful load.
	ErrNotLoaded = errors.New("file not loaded in memory")
	// ErrAlreadyLoaded is returned by a repeated Load.
	ErrAlreadyLoaded = errors.New("file already loaded")
	// ErrDuplicateChannel is returned when two channels map to the same layer and local name.
	ErrDuplicateChannel = errors.New("duplicate channel")
	// ErrUnclassifiedLayer is returned for layers with unsupported channel sets.
	ErrUnclassifiedLayer = errors.New("not implemented for layer type")
	// ErrSinkFailure wraps errors of the output sink.
	ErrSinkFailure = errors.New("sink failure")
	// ErrInvalidSettings is returned for tone mapping settings that can not be applied.
	ErrInvalidSettings = errors.New("invalid tone mapping settings")
)
