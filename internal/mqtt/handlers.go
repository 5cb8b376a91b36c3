package mqtt

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"

	"titan-aas/internal/projection"
	"titan-aas/internal/repository"
)

// elementValueTopicPattern extracts the submodel identifier (base64url) and
// idShortPath from "titan/element/{submodelIdB64}/{idShortPath}/value".
var elementValueTopicPattern = regexp.MustCompile(`^titan/element/([^/]+)/(.+)/value$`)

// ElementValueHandler applies inbound element-value updates to the
// submodel repository. The payload is always the object-only shape
// {"value": ..., "valueType": "..."} published by Publisher.PublishElementValue,
// never a bare scalar, so the valueType always travels with the value.
type ElementValueHandler struct {
	repo   *repository.SubmodelRepository
	logger *logrus.Entry
}

// NewElementValueHandler builds a handler that writes through repo.
func NewElementValueHandler(repo *repository.SubmodelRepository, logger *logrus.Entry) *ElementValueHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ElementValueHandler{repo: repo, logger: logger.WithField("component", "mqtt.element_value_handler")}
}

func (h *ElementValueHandler) Matches(topic string) bool {
	return elementValueTopicPattern.MatchString(topic)
}

func (h *ElementValueHandler) Handle(ctx context.Context, msg Message) error {
	match := elementValueTopicPattern.FindStringSubmatch(msg.Topic)
	if match == nil {
		return fmt.Errorf("mqtt: topic %q does not match element value pattern", msg.Topic)
	}
	submodelIDB64, idShortPath := match[1], match[2]

	var payload ValuePayload
	if err := msg.PayloadJSON(&payload); err != nil {
		return fmt.Errorf("mqtt: decode value payload: %w", err)
	}

	sm, _, err := h.repo.GetTyped(ctx, submodelIDB64)
	if err != nil {
		return fmt.Errorf("mqtt: load submodel %s: %w", submodelIDB64, err)
	}

	stringValue, err := stringifyValue(payload.Value, payload.ValueType)
	if err != nil {
		return fmt.Errorf("mqtt: stringify value: %w", err)
	}

	if err := projection.UpdateElementValue(sm, idShortPath, stringValue); err != nil {
		return fmt.Errorf("mqtt: update element %s/%s: %w", submodelIDB64, idShortPath, err)
	}

	if _, _, err := h.repo.Update(ctx, submodelIDB64, sm); err != nil {
		return fmt.Errorf("mqtt: persist submodel %s: %w", submodelIDB64, err)
	}

	h.logger.WithField("submodel", submodelIDB64).WithField("path", idShortPath).Info("updated element value via mqtt")
	return nil
}

// stringifyValue renders a decoded JSON value as the string form the xsd
// value types use on the wire, matching how Property/Range/Blob values are
// already stored as strings in this model.
func stringifyValue(v any, valueType string) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value kind %T for valueType %q", v, valueType)
	}
}

// commandTopicPattern extracts entity, entity id and action from
// "titan/{entity}/{id}/command/{action}".
var commandTopicPattern = regexp.MustCompile(`^titan/([^/]+)/([^/]+)/command/(.+)$`)

// CommandFunc handles one registered command action.
type CommandFunc func(ctx context.Context, entity, entityID string, payload map[string]any) error

// CommandHandler dispatches generic extension commands published under
// titan/{entity}/{id}/command/{action}, keyed by action name.
type CommandHandler struct {
	commands map[string]CommandFunc
	logger   *logrus.Entry
}

// NewCommandHandler builds an empty command dispatcher.
func NewCommandHandler(logger *logrus.Entry) *CommandHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CommandHandler{
		commands: make(map[string]CommandFunc),
		logger:   logger.WithField("component", "mqtt.command_handler"),
	}
}

// RegisterCommand binds action to fn.
func (h *CommandHandler) RegisterCommand(action string, fn CommandFunc) {
	h.commands[action] = fn
}

func (h *CommandHandler) Matches(topic string) bool {
	return commandTopicPattern.MatchString(topic)
}

func (h *CommandHandler) Handle(ctx context.Context, msg Message) error {
	match := commandTopicPattern.FindStringSubmatch(msg.Topic)
	if match == nil {
		return nil
	}
	entity, entityID, action := match[1], match[2], match[3]

	fn, ok := h.commands[action]
	if !ok {
		h.logger.WithField("action", action).Debug("no handler for command action")
		return nil
	}

	payload := map[string]any{}
	if len(msg.Payload) > 0 {
		if err := msg.PayloadJSON(&payload); err != nil {
			return fmt.Errorf("mqtt: decode command payload: %w", err)
		}
	}

	return fn(ctx, entity, entityID, payload)
}
