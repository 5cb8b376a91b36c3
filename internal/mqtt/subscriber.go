package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Message is a received MQTT publish, decoupled from whatever concrete
// Transport delivered it.
type Message struct {
	Topic   string
	Payload []byte
	QoS     int
	Retain  bool
}

// PayloadJSON unmarshals the message payload into v.
func (m Message) PayloadJSON(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// MessageHandler processes messages whose topic it matches.
type MessageHandler interface {
	Matches(topic string) bool
	Handle(ctx context.Context, msg Message) error
}

// handlerRegistration pairs a compiled MQTT topic pattern with its handler.
// MQTT's "+" matches one topic level and "#" matches the remaining levels;
// both translate directly to a regexp.
type handlerRegistration struct {
	pattern string
	handler MessageHandler
	regex   *regexp.Regexp
}

func newHandlerRegistration(pattern string, handler MessageHandler) handlerRegistration {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\+`, `[^/]+`)
	escaped = strings.ReplaceAll(escaped, `#`, `.*`) // QuoteMeta leaves '#' unescaped
	return handlerRegistration{
		pattern: pattern,
		handler: handler,
		regex:   regexp.MustCompile("^" + escaped + "$"),
	}
}

func (r handlerRegistration) matches(topic string) bool {
	return r.regex.MatchString(topic)
}

// HandlerRegistry dispatches incoming messages to every handler whose
// registered pattern matches the message topic.
type HandlerRegistry struct {
	mu           sync.RWMutex
	registrations []handlerRegistration
}

// NewHandlerRegistry builds an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register adds handler for every topic matching pattern.
func (r *HandlerRegistry) Register(pattern string, handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations = append(r.registrations, newHandlerRegistration(pattern, handler))
}

// HandlersFor returns every handler whose pattern matches topic.
func (r *HandlerRegistry) HandlersFor(topic string) []MessageHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []MessageHandler
	for _, reg := range r.registrations {
		if reg.matches(topic) {
			out = append(out, reg.handler)
		}
	}
	return out
}

// SubscriberMetrics counts inbound message processing outcomes.
type SubscriberMetrics struct {
	MessagesReceived int64
	MessagesProcessed int64
	ProcessingErrors int64
	NoHandlerFound   int64
}

// Subscriber subscribes to a fixed set of topic patterns over a
// ConnectionManager's transport and dispatches each arriving message to
// every registered handler that matches it.
type Subscriber struct {
	conn     *ConnectionManager
	registry *HandlerRegistry
	topics   []string
	logger   *logrus.Entry

	mu      sync.Mutex
	metrics SubscriberMetrics
}

// NewSubscriber builds a subscriber that will subscribe to topics once
// Start is called.
func NewSubscriber(conn *ConnectionManager, registry *HandlerRegistry, topics []string, logger *logrus.Entry) *Subscriber {
	if registry == nil {
		registry = NewHandlerRegistry()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Subscriber{
		conn:     conn,
		registry: registry,
		topics:   topics,
		logger:   logger.WithField("component", "mqtt.subscriber"),
	}
}

// Start subscribes to every configured topic, routing each delivered
// message through dispatch.
func (s *Subscriber) Start(ctx context.Context) error {
	for _, topic := range s.topics {
		topic := topic
		err := s.conn.transport.Subscribe(ctx, topic, s.conn.config.DefaultQoS, func(topic string, payload []byte) {
			s.dispatch(ctx, Message{Topic: topic, Payload: payload, QoS: s.conn.config.DefaultQoS})
		})
		if err != nil {
			return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, msg Message) {
	s.mu.Lock()
	s.metrics.MessagesReceived++
	s.mu.Unlock()

	handlers := s.registry.HandlersFor(msg.Topic)
	if len(handlers) == 0 {
		s.mu.Lock()
		s.metrics.NoHandlerFound++
		s.mu.Unlock()
		s.logger.WithField("topic", msg.Topic).Debug("no handler registered for topic")
		return
	}

	for _, h := range handlers {
		if err := h.Handle(ctx, msg); err != nil {
			s.mu.Lock()
			s.metrics.ProcessingErrors++
			s.mu.Unlock()
			s.logger.WithError(err).WithField("topic", msg.Topic).Warn("mqtt message handler failed")
			continue
		}
		s.mu.Lock()
		s.metrics.MessagesProcessed++
		s.mu.Unlock()
	}
}

// MetricsSnapshot returns a copy of the current subscriber metrics.
func (s *Subscriber) MetricsSnapshot() SubscriberMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}
