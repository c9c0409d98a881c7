package exrlayers

import (
	"sort"
	"strings"
)

// LayerType is the semantic image type of a layer.
type LayerType int

const (
	LayerUndefined LayerType = iota
	LayerY
	LayerYA
	LayerYC
	LayerYCA
	LayerRGB
	LayerRGBA
)

func (t LayerType) String() string {
	switch t {
	case LayerY:
		return "Y"
	case LayerYA:
		return "YA"
	case LayerYC:
		return "YC"
	case LayerYCA:
		return "YCA"
	case LayerRGB:
		return "RGB"
	case LayerRGBA:
		return "RGBA"
	default:
		return "undefined"
	}
}

// Components returns the number of 8-bit components produced for the layer type.
func (t LayerType) Components() int {
	switch t {
	case LayerY:
		return 1
	case LayerYA:
		return 2
	case LayerYC, LayerRGB:
		return 3
	case LayerYCA, LayerRGBA:
		return 4
	default:
		return 0
	}
}

// HasAlpha reports whether layer type carries alpha component.
func (t LayerType) HasAlpha() bool {
	return t == LayerYA || t == LayerYCA || t == LayerRGBA
}

// Gray reports whether layer type is luminance only.
func (t LayerType) Gray() bool {
	return t == LayerY || t == LayerYA
}

// layerTypes is keyed by byte-sorted concatenation of channel names.
var layerTypes = map[string]LayerType{
	sortedKey(ChannelY):                                 LayerY,
	sortedKey(ChannelY, ChannelA):                       LayerYA,
	sortedKey(ChannelY, ChannelRY, ChannelBY):           LayerYC,
	sortedKey(ChannelY, ChannelRY, ChannelBY, ChannelA): LayerYCA,
	sortedKey(ChannelR, ChannelG, ChannelB):             LayerRGB,
	sortedKey(ChannelR, ChannelG, ChannelB, ChannelA):   LayerRGBA,
}

// Classify returns layer type by names of layer channels.
func Classify(l *Layer) LayerType {
	if l == nil {
		return LayerUndefined
	}
	return ClassifyNames(l.Names())
}

// ClassifyNames returns layer type for a set of local channel names, order is ignored.
func ClassifyNames(names []string) LayerType {
	if len(names) > maxLayerChannels {
		return LayerUndefined
	}
	return layerTypes[sortedKey(names...)]
}

func sortedKey(names ...string) string {
	b := []byte(strings.Join(names, ""))
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}
