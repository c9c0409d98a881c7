// Package exrlayers loads layered OpenEXR images and converts them to 8-bit rasters.
//
// Channels of a file are grouped into layers by the part of their name before the
// last dot ("AO.G" belongs to layer "AO"), each layer is classified by its channel
// names and tone mapped into an interleaved 8-bit buffer that is handed to a Sink.
//
// Luminance/chroma layers are not converted to RGB: Y, RY and BY components are
// scaled and clamped independently, chroma being upsampled with nearest neighbor.
package exrlayers
