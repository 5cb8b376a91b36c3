// Package config loads Titan-AAS's configuration from environment
// variables, following the env-loader-plus-validator pattern used across
// the rest of the codebase: a small typed accessor wraps os.Getenv with
// defaults, and a Validator collects every problem before returning one
// combined error instead of failing on the first bad field.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Env provides typed access to environment variables under an optional
// prefix (e.g. "TITAN" turns "PORT" into "TITAN_PORT").
type Env struct {
	prefix string
}

// NewEnv creates an environment accessor scoped to prefix.
func NewEnv(prefix string) *Env {
	return &Env{prefix: prefix}
}

func (e *Env) buildKey(key string) string {
	if e.prefix == "" {
		return key
	}
	return e.prefix + "_" + key
}

// GetString returns the named variable or defaultValue if unset/empty.
func (e *Env) GetString(key, defaultValue string) string {
	if v := os.Getenv(e.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetInt returns the named variable parsed as an int, or defaultValue if
// unset or unparseable.
func (e *Env) GetInt(key string, defaultValue int) int {
	if v := os.Getenv(e.buildKey(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool returns the named variable parsed as a bool, or defaultValue if
// unset or unparseable.
func (e *Env) GetBool(key string, defaultValue bool) bool {
	if v := os.Getenv(e.buildKey(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetFloat returns the named variable parsed as a float64, or defaultValue
// if unset or unparseable.
func (e *Env) GetFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(e.buildKey(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetDuration returns the named variable parsed as a time.Duration, or
// defaultValue if unset or unparseable.
func (e *Env) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(e.buildKey(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetStringSlice returns the named variable split on commas, or
// defaultValue if unset.
func (e *Env) GetStringSlice(key string, defaultValue []string) []string {
	v := os.Getenv(e.buildKey(key))
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// StorageConfig configures the document repository's backing store.
type StorageConfig struct {
	DatabaseURL        string
	ConnectionPoolSize int
}

// CacheConfig configures the Redis document/element-value cache.
type CacheConfig struct {
	RedisURL        string
	CacheTTL        time.Duration
	ElementValueTTL time.Duration
}

// EventsConfig selects and configures the event bus implementation.
type EventsConfig struct {
	Bus           string // "memory" or "redisStreams"
	ConsumerGroup string
	ConsumerID    string
	ClaimIdle     time.Duration
	MaxDeliveries int
}

// MQTTConfig configures the MQTT bridge's broker connection and
// reconnect policy.
type MQTTConfig struct {
	Broker               string
	Port                 int
	UseTLS               bool
	Username             string
	Password             string
	ClientIDPrefix       string
	DefaultQoS           byte
	RetainEvents         bool
	ReconnectInitialMS   int
	ReconnectMaxMS       int
	ReconnectMultiplier  float64
	ReconnectMaxAttempts int
	SubscribeEnabled     bool
	SubscribeTopics      []string
}

// FederationConfig configures peer sync behavior.
type FederationConfig struct {
	Mode             string // "pull", "push", "bidirectional"
	Topology         string // "mesh", "hubSpoke"
	HubPeerID        string
	DeltaSyncEnabled bool
	SyncInterval     time.Duration

	// GraphURI, if set, enables mirroring pulled reference edges into a
	// Neo4j graph for dependency queries. Empty disables the mirror.
	GraphURI      string
	GraphUsername string
	GraphPassword string
}

// JobQueueConfig configures the Redis-list job queue.
type JobQueueConfig struct {
	JobTTL       time.Duration
	ResultTTL    time.Duration
	MaxRetries   int
	ClaimTimeout time.Duration
}

// PollerConfig configures the field-protocol poller's mapping source.
type PollerConfig struct {
	MappingsFile string
	StatePath    string // bbolt file for debounce state persistence
}

// BlobConfig configures the AASX/Blob-element externalized storage
// backend.
type BlobConfig struct {
	Backend   string // "local", "s3", "gcs"
	Bucket    string
	Region    string
	Endpoint  string
	LocalPath string
}

// ServerConfig configures the HTTP listener (owned by the external
// adapter, but read from the same configuration surface).
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       float64 // requests/sec across all routes; 0 disables
}

// ServiceConfig carries process-identity and logging settings.
type ServiceConfig struct {
	Name        string
	Environment string
	LogLevel    string
	LogFormat   string
}

// Config is the fully loaded configuration surface.
type Config struct {
	Server     ServerConfig
	Service    ServiceConfig
	Storage    StorageConfig
	Cache      CacheConfig
	Events     EventsConfig
	MQTT       MQTTConfig
	Federation FederationConfig
	Jobs       JobQueueConfig
	Poller     PollerConfig
	Blob       BlobConfig
}

// Load reads every section of Config from the environment under prefix
// and validates it, returning a combined error listing every problem
// found rather than stopping at the first one.
func Load(prefix string) (*Config, error) {
	env := NewEnv(prefix)

	cfg := &Config{
		Server: ServerConfig{
			Port:            env.GetInt("PORT", 8080),
			Host:            env.GetString("HOST", "0.0.0.0"),
			ReadTimeout:     env.GetDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimit:       env.GetFloat("RATE_LIMIT", 0),
		},
		Service: ServiceConfig{
			Name:        env.GetString("NAME", "titan-aas"),
			Environment: env.GetString("ENVIRONMENT", "development"),
			LogLevel:    env.GetString("LOG_LEVEL", "info"),
			LogFormat:   env.GetString("LOG_FORMAT", "text"),
		},
		Storage: StorageConfig{
			DatabaseURL:        env.GetString("DATABASE_URL", "postgres://localhost:5432/titan"),
			ConnectionPoolSize: env.GetInt("DB_POOL_SIZE", 10),
		},
		Cache: CacheConfig{
			RedisURL:        env.GetString("REDIS_URL", "redis://localhost:6379/0"),
			CacheTTL:        env.GetDuration("CACHE_TTL", 5*time.Minute),
			ElementValueTTL: env.GetDuration("ELEMENT_VALUE_CACHE_TTL", 30*time.Second),
		},
		Events: EventsConfig{
			Bus:           env.GetString("EVENT_BUS", "memory"),
			ConsumerGroup: env.GetString("EVENT_CONSUMER_GROUP", "titan-core"),
			ConsumerID:    env.GetString("EVENT_CONSUMER_ID", ""),
			ClaimIdle:     env.GetDuration("EVENT_CLAIM_IDLE", 30*time.Second),
			MaxDeliveries: env.GetInt("EVENT_MAX_DELIVERIES", 5),
		},
		MQTT: MQTTConfig{
			Broker:               env.GetString("MQTT_BROKER", "localhost"),
			Port:                 env.GetInt("MQTT_PORT", 1883),
			UseTLS:               env.GetBool("MQTT_USE_TLS", false),
			Username:             env.GetString("MQTT_USERNAME", ""),
			Password:             env.GetString("MQTT_PASSWORD", ""),
			ClientIDPrefix:       env.GetString("MQTT_CLIENT_ID_PREFIX", "titan-aas"),
			DefaultQoS:           byte(env.GetInt("MQTT_DEFAULT_QOS", 1)),
			RetainEvents:         env.GetBool("MQTT_RETAIN_EVENTS", false),
			ReconnectInitialMS:   env.GetInt("MQTT_RECONNECT_INITIAL_MS", 1000),
			ReconnectMaxMS:       env.GetInt("MQTT_RECONNECT_MAX_MS", 30000),
			ReconnectMultiplier:  env.GetFloat("MQTT_RECONNECT_MULTIPLIER", 2.0),
			ReconnectMaxAttempts: env.GetInt("MQTT_RECONNECT_MAX_ATTEMPTS", 0),
			SubscribeEnabled:     env.GetBool("MQTT_SUBSCRIBE_ENABLED", true),
			SubscribeTopics:      env.GetStringSlice("MQTT_SUBSCRIBE_TOPICS", []string{"titan/element/+/+/value", "titan/+/+/command/+"}),
		},
		Federation: FederationConfig{
			Mode:             env.GetString("FEDERATION_MODE", "bidirectional"),
			Topology:         env.GetString("FEDERATION_TOPOLOGY", "mesh"),
			HubPeerID:        env.GetString("FEDERATION_HUB_PEER_ID", ""),
			DeltaSyncEnabled: env.GetBool("FEDERATION_DELTA_SYNC_ENABLED", true),
			SyncInterval:     env.GetDuration("FEDERATION_SYNC_INTERVAL", 60*time.Second),
			GraphURI:         env.GetString("FEDERATION_GRAPH_URI", ""),
			GraphUsername:    env.GetString("FEDERATION_GRAPH_USERNAME", ""),
			GraphPassword:    env.GetString("FEDERATION_GRAPH_PASSWORD", ""),
		},
		Jobs: JobQueueConfig{
			JobTTL:       env.GetDuration("JOB_TTL", 24*time.Hour),
			ResultTTL:    env.GetDuration("JOB_RESULT_TTL", 24*time.Hour),
			MaxRetries:   env.GetInt("JOB_MAX_RETRIES", 3),
			ClaimTimeout: env.GetDuration("JOB_CLAIM_TIMEOUT", 5*time.Second),
		},
		Poller: PollerConfig{
			MappingsFile: env.GetString("POLLER_MAPPINGS_FILE", ""),
			StatePath:    env.GetString("POLLER_STATE_PATH", "./data/poller.db"),
		},
		Blob: BlobConfig{
			Backend:   env.GetString("BLOB_BACKEND", "local"),
			Bucket:    env.GetString("BLOB_BUCKET", ""),
			Region:    env.GetString("BLOB_REGION", "us-east-1"),
			Endpoint:  env.GetString("BLOB_ENDPOINT", ""),
			LocalPath: env.GetString("BLOB_LOCAL_PATH", "./data/blobs"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile overlays values from a YAML (or JSON/TOML) file at path
// onto the environment before delegating to Load, so a deployment can
// check in a config file without giving up env-based overrides: any key
// already present in the environment is left untouched, and every other
// key from the file is exported as an env var under prefix before Load
// reads it. File keys follow the same names as their env var, lowercased
// and dotted for nesting (e.g. "mqtt.broker" backs MQTT_BROKER).
func LoadFromFile(path, prefix string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}
		if _, exists := os.LookupEnv(envKey); exists {
			continue
		}
		if err := os.Setenv(envKey, fmt.Sprintf("%v", v.Get(key))); err != nil {
			return nil, fmt.Errorf("config: export %s: %w", envKey, err)
		}
	}

	return Load(prefix)
}

func validate(cfg *Config) error {
	v := NewValidator()

	v.RequireString("Service.Name", cfg.Service.Name)
	v.RequireOneOf("Service.Environment", cfg.Service.Environment, []string{"development", "staging", "production"})
	v.RequireOneOf("Service.LogLevel", cfg.Service.LogLevel, []string{"debug", "info", "warn", "error"})
	v.RequirePositiveInt("Server.Port", cfg.Server.Port)
	v.RequirePositiveInt("Storage.ConnectionPoolSize", cfg.Storage.ConnectionPoolSize)
	v.RequireOneOf("Events.Bus", cfg.Events.Bus, []string{"memory", "redisStreams"})
	v.RequireOneOf("Federation.Mode", cfg.Federation.Mode, []string{"pull", "push", "bidirectional"})
	v.RequireOneOf("Federation.Topology", cfg.Federation.Topology, []string{"mesh", "hubSpoke"})
	if cfg.Federation.Topology == "hubSpoke" {
		// HubPeerID is optional: empty means this instance is the hub.
	}
	v.RequireOneOf("Blob.Backend", cfg.Blob.Backend, []string{"local", "s3", "gcs"})
	if cfg.Blob.Backend == "s3" || cfg.Blob.Backend == "gcs" {
		v.RequireString("Blob.Bucket", cfg.Blob.Bucket)
	}

	return v.Validate()
}

// Validator accumulates configuration problems so every one is reported
// at once instead of one panic per missing field.
type Validator struct {
	errs []string
}

// NewValidator builds an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// RequireString records an error if value is empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errs = append(v.errs, fmt.Sprintf("%s is required", field))
	}
}

// RequirePositiveInt records an error if value is not positive.
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errs = append(v.errs, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireOneOf records an error if value is not among allowed.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errs = append(v.errs, fmt.Sprintf("%s is required", field))
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.errs = append(v.errs, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid reports whether no errors have been recorded.
func (v *Validator) IsValid() bool { return len(v.errs) == 0 }

// Errors returns every recorded problem.
func (v *Validator) Errors() []string { return v.errs }

// Validate returns a combined error if any problems were recorded, or nil.
func (v *Validator) Validate() error {
	if v.IsValid() {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errs, "; "))
}
