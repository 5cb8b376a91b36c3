// Package wsfanout implements the WebSocket fan-out layer: one
// SubscriptionManager accepts already-upgraded *websocket.Conn values,
// gives each one a bounded outbound queue, and pushes matching events.Event
// notifications to every connection whose subscription filter matches.
//
// A slow client never blocks the publisher: its queue drops the oldest
// buffered event once full, the same backpressure policy the in-memory
// event bus uses for local subscribers.
package wsfanout

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"titan-aas/internal/events"
)

const (
	defaultQueueSize = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
)

// Filter decides whether a connection wants to receive an event.
type Filter func(ev events.Event) bool

// MatchAll subscribes a connection to every event.
func MatchAll(events.Event) bool { return true }

// MatchEntityType subscribes a connection to events of one entity type
// only (shells, submodels, concept descriptions, ...).
func MatchEntityType(entityType string) Filter {
	return func(ev events.Event) bool { return string(ev.EntityType) == entityType }
}

// connection is one subscriber's outbound queue and underlying socket.
type connection struct {
	id     string
	conn   *websocket.Conn
	filter Filter
	outbox chan events.Event
	done   chan struct{}
}

// SubscriptionManager tracks every live WebSocket connection and fans
// published events out to the ones whose filter matches.
type SubscriptionManager struct {
	mu          sync.RWMutex
	connections map[string]*connection
	queueSize   int
	logger      *logrus.Entry
}

// NewSubscriptionManager builds a manager whose per-connection queues hold
// queueSize events before the oldest is dropped.
func NewSubscriptionManager(queueSize int, logger *logrus.Entry) *SubscriptionManager {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SubscriptionManager{
		connections: make(map[string]*connection),
		queueSize:   queueSize,
		logger:      logger.WithField("component", "wsfanout"),
	}
}

// Register adopts an already-upgraded connection under id, subscribing it
// to events matching filter, and starts its write pump. The caller's read
// loop (if any) is unaffected; Register only owns writes.
func (m *SubscriptionManager) Register(id string, conn *websocket.Conn, filter Filter) {
	if filter == nil {
		filter = MatchAll
	}
	c := &connection{
		id:     id,
		conn:   conn,
		filter: filter,
		outbox: make(chan events.Event, m.queueSize),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if existing, ok := m.connections[id]; ok {
		close(existing.done)
	}
	m.connections[id] = c
	m.mu.Unlock()

	go m.writePump(c)
}

// Unregister closes and removes a connection.
func (m *SubscriptionManager) Unregister(id string) {
	m.mu.Lock()
	c, ok := m.connections[id]
	if ok {
		delete(m.connections, id)
	}
	m.mu.Unlock()
	if ok {
		close(c.done)
	}
}

// Broadcast pushes ev to every connection whose filter accepts it.
func (m *SubscriptionManager) Broadcast(ev events.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.connections {
		if !c.filter(ev) {
			continue
		}
		select {
		case c.outbox <- ev:
		default:
			select {
			case <-c.outbox:
			default:
			}
			select {
			case c.outbox <- ev:
			default:
			}
		}
	}
}

// Count returns the number of registered connections.
func (m *SubscriptionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *SubscriptionManager) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.outbox:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(ev)
			if err != nil {
				m.logger.WithError(err).Warn("failed to marshal event for websocket delivery")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				m.logger.WithError(err).WithField("connection", c.id).Warn("websocket write failed, dropping connection")
				m.Unregister(c.id)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.Unregister(c.id)
				return
			}
		}
	}
}
