package client

import (
	"github.com/rcrowley/go-metrics"
	"io"
	"time"
)

// Stats are the session statistics of a client
type Stats struct {
	registry metrics.Registry
	sent     metrics.Meter
	received metrics.Meter
	illegal  metrics.Counter
	deltas   metrics.Counter
	snapshot metrics.Timer
}

func newStats() *Stats {
	r := metrics.NewRegistry()
	return &Stats{
		registry: r,
		sent:     metrics.NewRegisteredMeter("messages.sent", r),
		received: metrics.NewRegisteredMeter("messages.received", r),
		illegal:  metrics.NewRegisteredCounter("notices.illegal", r),
		deltas:   metrics.NewRegisteredCounter("claims.deltas", r),
		snapshot: metrics.NewRegisteredTimer("snapshot.roundtrip", r),
	}
}

// Sent returns the number of messages sent to the server
func (s *Stats) Sent() int64 { return s.sent.Count() }

// Received returns the number of messages received from the server
func (s *Stats) Received() int64 { return s.received.Count() }

// Illegal returns the number of illegal action notices
func (s *Stats) Illegal() int64 { return s.illegal.Count() }

// Write writes all statistics in a human readable form
func (s *Stats) Write(w io.Writer) {
	metrics.WriteOnce(s.registry, w)
}

func (s *Stats) snapshotSince(start time.Time) {
	s.snapshot.UpdateSince(start)
}

func (s *Stats) stop() {
	s.sent.Stop()
	s.received.Stop()
}
