package poller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager runs one polling task per readable Mapping and one event
// subscription per writable Mapping, against a named set of Transports
// (one per field protocol).
type Manager struct {
	registry   *Registry
	transports map[string]Transport
	debounce   *DebounceTracker
	sink       ElementValueSink
	source     ElementValueSource
	logger     *logrus.Entry

	protocolOf func(mapping Mapping) string

	wg     sync.WaitGroup
	cancel context.CancelFunc
	unsubs []func()
}

// NewManager builds a poller Manager. protocolOf selects which transport
// (by name, matching a key in transports) serves a given mapping; callers
// typically key this off mapping.NodeOrAddress's scheme or a parallel
// per-mapping protocol field supplied by configuration.
func NewManager(registry *Registry, transports map[string]Transport, debounce *DebounceTracker, sink ElementValueSink, source ElementValueSource, protocolOf func(Mapping) string, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		registry:   registry,
		transports: transports,
		debounce:   debounce,
		sink:       sink,
		source:     source,
		protocolOf: protocolOf,
		logger:     logger.WithField("component", "poller"),
	}
}

// Start launches every readable mapping's polling task and subscribes
// every writable mapping to element-value change events.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, mapping := range m.registry.Readable() {
		mapping := mapping
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.runReadLoop(ctx, mapping)
		}()
	}

	if m.source != nil {
		for _, mapping := range m.registry.Writable() {
			mapping := mapping
			unsub := m.source.Subscribe(mapping.SubmodelID, mapping.IDShortPath, func(ctx context.Context, value any) {
				m.writeThrough(ctx, mapping, value)
			})
			m.unsubs = append(m.unsubs, unsub)
		}
	}
}

// Stop cancels every polling task and unsubscribes every writable mapping,
// waiting for in-flight read loops to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.wg.Wait()
}

func (m *Manager) runReadLoop(ctx context.Context, mapping Mapping) {
	ticker := time.NewTicker(time.Duration(mapping.IntervalMS) * time.Millisecond)
	defer ticker.Stop()

	transport := m.transports[m.protocolOf(mapping)]
	key := MappingKey(mapping.SubmodelID, mapping.IDShortPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx, mapping, transport, key)
		}
	}
}

func (m *Manager) pollOnce(ctx context.Context, mapping Mapping, transport Transport, key string) {
	if transport == nil {
		return
	}
	raw, err := transport.Read(ctx, mapping.NodeOrAddress)
	if err != nil {
		m.logger.WithError(err).WithField("mapping", key).Warn("field read failed")
		return
	}

	value, err := mapping.FieldToValue(raw)
	if err != nil {
		m.logger.WithError(err).WithField("mapping", key).Warn("field value conversion failed")
		return
	}

	confirmed, committed := m.debounce.Observe(key, value, mapping.DebounceCount)
	if !confirmed {
		return
	}

	if m.sink == nil {
		return
	}
	if err := m.sink.CommitValue(ctx, mapping.SubmodelID, mapping.IDShortPath, committed); err != nil {
		m.logger.WithError(err).WithField("mapping", key).Warn("failed to commit debounced field value")
	}
}

func (m *Manager) writeThrough(ctx context.Context, mapping Mapping, value any) {
	transport := m.transports[m.protocolOf(mapping)]
	if transport == nil {
		return
	}
	raw, err := mapping.ValueToField(value)
	if err != nil {
		m.logger.WithError(err).WithField("mapping", MappingKey(mapping.SubmodelID, mapping.IDShortPath)).Warn("value-to-field conversion failed")
		return
	}
	if err := transport.Write(ctx, mapping.NodeOrAddress, raw); err != nil {
		m.logger.WithError(err).WithField("mapping", MappingKey(mapping.SubmodelID, mapping.IDShortPath)).Warn("field write failed")
	}
}
