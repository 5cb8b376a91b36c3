// Package mqtt bridges AAS change events to an MQTT broker for IoT/SCADA
// consumers, and dispatches incoming element-value messages back into the
// repository. No MQTT client library was available to ground this package
// on, so the broker connection itself is expressed behind a small Transport
// interface; everything around it (the state machine, the reconnect loop,
// the topic registry) follows the coordinator's reconnect-loop shape.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnectionState is the lifecycle of the broker connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateFailed       ConnectionState = "failed"
)

// Transport is the seam between the connection manager and a concrete
// broker client. A real implementation wraps whatever MQTT client package
// a deployment chooses; tests substitute a fake.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte, qos int, retain bool) error
	Subscribe(ctx context.Context, topic string, qos int, handler func(topic string, payload []byte)) error
}

// Config controls broker connection and reconnection behavior.
type Config struct {
	Broker   string
	ClientID string

	ReconnectInitialDelay  time.Duration
	ReconnectMaxDelay      time.Duration
	ReconnectBackoffFactor float64
	ReconnectMaxAttempts   int // 0 means unlimited

	// ReconnectRatePerSecond caps how often connect attempts may be made,
	// independent of the exponential backoff above; it exists to protect
	// the broker from an attempt storm if backoff configuration is ever
	// set too aggressively. 0 means use DefaultConfig's rate.
	ReconnectRatePerSecond float64
	ReconnectBurst         int

	DefaultQoS   int
	RetainEvents bool
}

// DefaultConfig returns sane reconnect defaults, matching the backoff
// shape used elsewhere in this codebase for outbound connections.
func DefaultConfig(broker, clientID string) Config {
	return Config{
		Broker:                 broker,
		ClientID:               clientID,
		ReconnectInitialDelay:  time.Second,
		ReconnectMaxDelay:      60 * time.Second,
		ReconnectBackoffFactor: 2.0,
		ReconnectMaxAttempts:   0,
		ReconnectRatePerSecond: 5,
		ReconnectBurst:         5,
		DefaultQoS:             1,
		RetainEvents:           false,
	}
}

// Metrics counts connection and publish activity for health reporting.
type Metrics struct {
	MessagesPublished    int64
	PublishErrors        int64
	ConnectionAttempts   int64
	SuccessfulConnections int64
	Disconnections       int64
}

// ConnectionManager owns the broker Transport and keeps it connected,
// reconnecting with exponential backoff on failure. Its state machine and
// reconnect loop mirror a WebSocket client's connectionLoop: attempt
// connect, back off on failure, reset backoff on success, and give up
// after ReconnectMaxAttempts (if set) by moving to StateFailed.
type ConnectionManager struct {
	config    Config
	transport Transport
	limiter   *rate.Limiter

	mu      sync.RWMutex
	state   ConnectionState
	metrics Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectionManager builds a manager around transport. transport.Connect
// is not called until Start.
func NewConnectionManager(config Config, transport Transport) *ConnectionManager {
	rps := config.ReconnectRatePerSecond
	if rps <= 0 {
		rps = DefaultConfig("", "").ReconnectRatePerSecond
	}
	burst := config.ReconnectBurst
	if burst <= 0 {
		burst = 1
	}
	return &ConnectionManager{
		config:    config,
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		state:     StateDisconnected,
	}
}

// State returns the current connection state.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the broker connection is currently live.
func (m *ConnectionManager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *ConnectionManager) setState(s ConnectionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start launches the connection loop in the background and returns
// immediately; connection establishment and any subsequent reconnects run
// asynchronously.
func (m *ConnectionManager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.connectionLoop()
	return nil
}

// Stop cancels the connection loop and disconnects the transport.
func (m *ConnectionManager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return m.transport.Disconnect(ctx)
}

func (m *ConnectionManager) connectionLoop() {
	defer m.wg.Done()

	delay := m.config.ReconnectInitialDelay
	attempts := 0

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if err := m.limiter.Wait(m.ctx); err != nil {
			return
		}

		m.setState(StateConnecting)
		m.mu.Lock()
		m.metrics.ConnectionAttempts++
		m.mu.Unlock()

		err := m.transport.Connect(m.ctx)
		if err != nil {
			attempts++
			m.setState(StateReconnecting)

			if m.config.ReconnectMaxAttempts > 0 && attempts >= m.config.ReconnectMaxAttempts {
				m.setState(StateFailed)
				return
			}

			select {
			case <-m.ctx.Done():
				return
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * m.config.ReconnectBackoffFactor)
			if delay > m.config.ReconnectMaxDelay {
				delay = m.config.ReconnectMaxDelay
			}
			continue
		}

		delay = m.config.ReconnectInitialDelay
		attempts = 0
		m.setState(StateConnected)
		m.mu.Lock()
		m.metrics.SuccessfulConnections++
		m.mu.Unlock()

		// Block until the context is cancelled; a real transport would
		// signal disconnects through its own callback, at which point this
		// loop would fall through and reconnect. The seam transport used
		// here treats Connect as idempotent and long-lived.
		<-m.ctx.Done()
		return
	}
}

// EnsureConnected returns nil once the transport reports connected, or an
// error if the state machine has already given up.
func (m *ConnectionManager) EnsureConnected() error {
	switch m.State() {
	case StateConnected:
		return nil
	case StateFailed:
		return fmt.Errorf("mqtt: connection failed after %d attempts", m.config.ReconnectMaxAttempts)
	default:
		return fmt.Errorf("mqtt: not connected, state=%s", m.State())
	}
}

// MetricsSnapshot returns a copy of the current metrics.
func (m *ConnectionManager) MetricsSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

func (m *ConnectionManager) recordPublished() {
	m.mu.Lock()
	m.metrics.MessagesPublished++
	m.mu.Unlock()
}

func (m *ConnectionManager) recordPublishError() {
	m.mu.Lock()
	m.metrics.PublishErrors++
	m.mu.Unlock()
}
