package server

import (
	"fmt"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"time"
)

// serverMetrics are the metrics of one server, exposed on the admin endpoint
type serverMetrics struct {
	set            *metrics.Set
	decodeErrors   *metrics.Counter
	handleDuration *metrics.Histogram
}

func newServerMetrics() *serverMetrics {
	set := metrics.NewSet()
	return &serverMetrics{
		set:            set,
		decodeErrors:   set.NewCounter("dsync_decode_errors_total"),
		handleDuration: set.NewHistogram("dsync_handle_duration_seconds"),
	}
}

// gauge registers a gauge computed on every scrape
func (m *serverMetrics) gauge(name string, f func() int) {
	m.set.NewGauge(name, func() float64 { return float64(f()) })
}

// received counts an inbound message and how long it took to handle
func (m *serverMetrics) received(msg *common.Message, start time.Time) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dsync_messages_received_total{type=%q}`, msg.MsgType)).Inc()
	m.handleDuration.UpdateDuration(start)
}

// sent counts an outbound message, transfer steps are labeled with their step
func (m *serverMetrics) sent(msg *common.Message) {
	switch {
	case msg.Claim != nil:
		m.set.GetOrCreateCounter(fmt.Sprintf(`dsync_messages_sent_total{type=%q,step=%q}`, msg.MsgType, msg.Claim.StepMode)).Inc()
	case msg.Transfer != nil:
		m.set.GetOrCreateCounter(fmt.Sprintf(`dsync_messages_sent_total{type=%q,step=%q}`, msg.MsgType, msg.Transfer.StepMode)).Inc()
	default:
		m.set.GetOrCreateCounter(fmt.Sprintf(`dsync_messages_sent_total{type=%q}`, msg.MsgType)).Inc()
	}
}

// WritePrometheus writes the server and process metrics in the prometheus text format
func (m *serverMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}
