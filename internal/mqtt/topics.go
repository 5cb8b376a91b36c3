package mqtt

import "strings"

// TopicPrefix roots every topic this bridge publishes or subscribes to.
const TopicPrefix = "titan"

// BuildEntityTopic returns "titan/{entity}/{identifierB64}/{action}", used
// for shell/submodel lifecycle events.
func BuildEntityTopic(entity, identifierB64, action string) string {
	return TopicPrefix + "/" + entity + "/" + identifierB64 + "/" + action
}

// BuildElementTopic returns "titan/element/{submodelIdentifierB64}/{idShortPath}/value",
// used for element-value publish and subscribe.
func BuildElementTopic(submodelIdentifierB64, idShortPath string) string {
	return TopicPrefix + "/element/" + submodelIdentifierB64 + "/" + idShortPath + "/value"
}

// TopicConfig is the QoS/retain pair applied to a matched topic.
type TopicConfig struct {
	QoS    int
	Retain bool
}

// TopicRegistry resolves per-topic QoS/retain settings, falling back to
// registry-wide defaults. Patterns use MQTT's "+" (single level) and "#"
// (multi-level, trailing) wildcards.
type TopicRegistry struct {
	defaultQoS    int
	defaultRetain bool
	configs       map[string]TopicConfig
}

// NewTopicRegistry builds a registry with the given defaults.
func NewTopicRegistry(defaultQoS int, defaultRetain bool) *TopicRegistry {
	return &TopicRegistry{
		defaultQoS:    defaultQoS,
		defaultRetain: defaultRetain,
		configs:       make(map[string]TopicConfig),
	}
}

// Register assigns config to every topic matching pattern.
func (r *TopicRegistry) Register(pattern string, config TopicConfig) {
	r.configs[pattern] = config
}

// ConfigFor resolves the config for a concrete topic: exact match first,
// then a registered pattern it matches, then the registry default.
// Patterns are held in a map, so when several match, which one applies is
// not defined.
func (r *TopicRegistry) ConfigFor(topic string) TopicConfig {
	if c, ok := r.configs[topic]; ok {
		return c
	}
	for pattern, c := range r.configs {
		if topicMatchesPattern(topic, pattern) {
			return c
		}
	}
	return TopicConfig{QoS: r.defaultQoS, Retain: r.defaultRetain}
}

func topicMatchesPattern(topic, pattern string) bool {
	topicParts := strings.Split(topic, "/")
	patternParts := strings.Split(pattern, "/")

	for i, p := range patternParts {
		if p == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if p != "+" && p != topicParts[i] {
			return false
		}
	}
	return len(topicParts) == len(patternParts)
}
