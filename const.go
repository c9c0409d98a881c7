package exrlayers

const (
	defaultGamma    = 2.2
	defaultExposure = 0.0
	defaultKneeLow  = 0.0
	defaultKneeHigh = 5.0
	defaultDefog    = 0.0
	defaultOpacity  = 100.0
)

const (
	// maxLayerChannels is the largest channel count of a classifiable layer.
	maxLayerChannels = 4
	layerSeparator   = "."
)

// Well-known local channel names.
const (
	ChannelR  = "R"
	ChannelG  = "G"
	ChannelB  = "B"
	ChannelA  = "A"
	ChannelY  = "Y"
	ChannelRY = "RY"
	ChannelBY = "BY"
)
