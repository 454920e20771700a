package channel

import (
	"github.com/einherij/cockpit/pkg/telemetry"
)

// Subscription receives everything the channel publishes. Slow consumers do
// not block the read loop, publishes they cannot keep up with are dropped.
type Subscription struct {
	snapshots chan *telemetry.Snapshot
	frames    chan *telemetry.VideoFrame
	states    chan State

	channel *Channel
}

func (c *Channel) Subscribe() *Subscription {
	sub := &Subscription{
		snapshots: make(chan *telemetry.Snapshot, 16),
		frames:    make(chan *telemetry.VideoFrame, 16),
		states:    make(chan State, 4),
		channel:   c,
	}
	c.subMux.Lock()
	c.subs = append(c.subs, sub)
	c.subMux.Unlock()
	return sub
}

func (s *Subscription) Snapshots() <-chan *telemetry.Snapshot { return s.snapshots }

func (s *Subscription) Frames() <-chan *telemetry.VideoFrame { return s.frames }

func (s *Subscription) States() <-chan State { return s.states }

// Close detaches the subscription from the channel.
func (s *Subscription) Close() {
	c := s.channel
	c.subMux.Lock()
	defer c.subMux.Unlock()
	for i, sub := range c.subs {
		if sub == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}
