package events

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the event bus's Prometheus counters. A nil *Metrics is
// safe to use everywhere it is accepted: every method degrades to a no-op,
// so metrics remain genuinely optional for callers that do not register a
// collector registry.
type Metrics struct {
	published    prometheus.Counter
	processed    prometheus.Counter
	failed       prometheus.Counter
	deadLettered prometheus.Counter
}

// NewMetrics registers the event bus's counters against reg and returns a
// Metrics ready to pass to NewRedisStreamBus. Registering against the same
// reg twice returns an error from reg.Register that callers should treat
// as fatal only in tests exercising multiple buses against one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_events_published_total",
			Help: "Total events published to the stream.",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_events_processed_total",
			Help: "Total events successfully processed and acknowledged.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_events_handler_failures_total",
			Help: "Total handler invocations that returned an error, leaving the event unacknowledged.",
		}),
		deadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titan_events_dead_lettered_total",
			Help: "Total events moved to the dead-letter stream after exceeding their retry budget.",
		}),
	}
	for _, c := range []prometheus.Collector{m.published, m.processed, m.failed, m.deadLettered} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordPublished() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *Metrics) recordProcessed() {
	if m == nil {
		return
	}
	m.processed.Inc()
}

func (m *Metrics) recordFailed() {
	if m == nil {
		return
	}
	m.failed.Inc()
}

func (m *Metrics) recordDeadLettered() {
	if m == nil {
		return
	}
	m.deadLettered.Inc()
}
