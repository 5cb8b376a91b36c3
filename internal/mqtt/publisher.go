package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"titan-aas/internal/events"
	"titan-aas/internal/ident"
	"titan-aas/internal/model"
)

// Publisher turns change-bus events into MQTT publishes, resolving
// per-topic QoS/retain from a TopicRegistry and falling back to the
// connection's configured defaults.
type Publisher struct {
	conn     *ConnectionManager
	registry *TopicRegistry
}

// NewPublisher builds a publisher bound to conn. If registry is nil, a
// registry seeded from conn's own defaults is created.
func NewPublisher(conn *ConnectionManager, registry *TopicRegistry) *Publisher {
	if registry == nil {
		registry = NewTopicRegistry(conn.config.DefaultQoS, conn.config.RetainEvents)
	}
	return &Publisher{conn: conn, registry: registry}
}

// eventEnvelope is the JSON payload published for shell/submodel/concept
// description lifecycle events.
type eventEnvelope struct {
	EventID    string `json:"eventId"`
	EventType  string `json:"eventType"`
	Entity     string `json:"entity"`
	Identifier string `json:"identifier"`
	ETag       string `json:"etag,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// elementEventEnvelope is the JSON payload published for element-level
// change events (not value updates, which use ValuePayload instead).
type elementEventEnvelope struct {
	EventID                string `json:"eventId"`
	EventType              string `json:"eventType"`
	Entity                 string `json:"entity"`
	SubmodelIdentifier     string `json:"submodelIdentifier"`
	SubmodelIdentifierB64  string `json:"submodelIdentifierB64"`
	IDShortPath            string `json:"idShortPath"`
	Timestamp              string `json:"timestamp"`
}

// ValuePayload is the object-only payload published on the element value
// topic: the raw value plus its declared type, never a bare scalar, so
// subscribers can distinguish e.g. the string "42" from the number 42.
type ValuePayload struct {
	Value     any    `json:"value"`
	ValueType string `json:"valueType"`
}

// PublishEvent publishes a shell/submodel/concept-description change as a
// titan/{entity}/{identifierB64}/{action} message.
func (p *Publisher) PublishEvent(ctx context.Context, ev events.Event) error {
	entity := entityName(ev.EntityType)
	idB64 := ident.Encode(ev.EntityID)
	topic := BuildEntityTopic(entity, idB64, string(ev.Operation))

	payload, err := json.Marshal(eventEnvelope{
		EventID:    ev.ID,
		EventType:  string(ev.Operation),
		Entity:     entity,
		Identifier: ev.EntityID,
		ETag:       ev.ETag,
		Timestamp:  ev.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("mqtt: marshal event: %w", err)
	}

	return p.publish(ctx, topic, payload)
}

// PublishElementValue publishes an element's current value to
// titan/element/{submodelIdB64}/{idShortPath}/value.
func (p *Publisher) PublishElementValue(ctx context.Context, submodelID model.Identifier, idShortPath string, value any, valueType string) error {
	topic := BuildElementTopic(ident.Encode(string(submodelID)), idShortPath)
	payload, err := json.Marshal(ValuePayload{Value: value, ValueType: valueType})
	if err != nil {
		return fmt.Errorf("mqtt: marshal element value: %w", err)
	}
	return p.publish(ctx, topic, payload)
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte) error {
	cfg := p.registry.ConfigFor(topic)
	if err := p.conn.transport.Publish(ctx, topic, payload, cfg.QoS, cfg.Retain); err != nil {
		p.conn.recordPublishError()
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	p.conn.recordPublished()
	return nil
}

func entityName(t model.ChangeEntityType) string {
	switch t {
	case model.EntityAas:
		return "aas"
	case model.EntityConceptDescription:
		return "conceptdescription"
	case model.EntityElement:
		return "element"
	default:
		return string(t)
	}
}

// Handler returns an events.Handler that publishes every shell/submodel/
// concept-description event it receives, suitable for events.Bus.Subscribe.
// Element events (which carry value updates rather than lifecycle changes)
// are published via PublishElementValue from the caller that holds the
// resolved value, not from this generic handler.
func (p *Publisher) Handler() events.Handler {
	return func(ctx context.Context, ev events.Event) error {
		if ev.EntityType == model.EntityElement {
			return nil
		}
		return p.PublishEvent(ctx, ev)
	}
}
