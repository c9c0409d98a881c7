package exrlayers

import (
	"fmt"
	"strings"
)

// Layer is a named group of channels that share a name prefix.
// An empty name denotes the default layer of channels without prefix.
type Layer struct {
	name     string
	channels []*Channel
	index    map[string]int
}

func newLayer(name string) *Layer {
	return &Layer{
		name:  name,
		index: make(map[string]int),
	}
}

// Name returns layer name.
func (l *Layer) Name() string { return l.name }

// Len returns the number of channels.
func (l *Layer) Len() int { return len(l.channels) }

// Channels returns channels in insertion order, the slice must not be modified.
func (l *Layer) Channels() []*Channel { return l.channels }

// Channel returns channel by local name.
func (l *Layer) Channel(name string) (*Channel, bool) {
	i, ok := l.index[name]
	if !ok {
		return nil, false
	}
	return l.channels[i], true
}

// ChannelAt returns channel at index or nil if index is out of range.
func (l *Layer) ChannelAt(i int) *Channel {
	if i < 0 || i >= len(l.channels) {
		return nil
	}
	return l.channels[i]
}

// Names returns local channel names in insertion order.
func (l *Layer) Names() []string {
	names := make([]string, len(l.channels))
	for i, c := range l.channels {
		names[i] = c.name
	}
	return names
}

func (l *Layer) add(c *Channel) error {
	if _, ok := l.index[c.name]; ok {
		return fmt.Errorf("%w: %q in layer %q", ErrDuplicateChannel, c.name, l.name)
	}
	l.index[c.name] = len(l.channels)
	l.channels = append(l.channels, c)
	c.layer = l
	return nil
}

// SplitChannelName splits full channel name on the last dot into layer and local channel name.
// A name without dot belongs to the default layer with empty name.
func SplitChannelName(full string) (layer, channel string) {
	i := strings.LastIndex(full, layerSeparator)
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}
