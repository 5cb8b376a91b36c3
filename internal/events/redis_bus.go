package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"titan-aas/internal/model"
)

const (
	streamName      = "titan:events"
	consumerGroup   = "titan-workers"
	deadLetterStream = "titan:events:dead"
	batchSize       = 10
	blockDuration   = time.Second
	claimIdle       = 30 * time.Second
	maxRetries      = 3
	streamMaxLen    = 100000
)

// RedisStreamBus delivers events at-least-once across processes via a
// Redis Stream consumer group: new entries are read with XREADGROUP,
// entries a crashed consumer left pending are reclaimed with XCLAIM, and
// entries that have exceeded maxRetries are moved to a dead-letter stream
// instead of being retried forever.
type RedisStreamBus struct {
	client     *redis.Client
	consumerID string
	metrics    *Metrics

	mu       sync.RWMutex
	handlers []Handler

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRedisStreamBus builds a bus bound to client, generating a consumer ID
// from the local hostname plus a random suffix so multiple processes on
// the same host never collide within the consumer group. metrics may be
// nil, in which case no counters are recorded.
func NewRedisStreamBus(client *redis.Client, metrics *Metrics) *RedisStreamBus {
	return &RedisStreamBus{
		client:     client,
		consumerID: generateConsumerID(),
		metrics:    metrics,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

func generateConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// Start ensures the consumer group exists and launches the consume loop.
func (b *RedisStreamBus) Start(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, streamName, consumerGroup, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("events: create consumer group: %w", err)
	}

	go b.consumeLoop()
	return nil
}

func (b *RedisStreamBus) Stop(ctx context.Context) error {
	close(b.stopCh)
	select {
	case <-b.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// HealthCheck confirms the stream exists and is readable, mirroring an
// XINFO STREAM existence probe.
func (b *RedisStreamBus) HealthCheck(ctx context.Context) error {
	_, err := b.client.XInfoStream(ctx, streamName).Result()
	if err != nil {
		return fmt.Errorf("events: stream health check: %w", err)
	}
	return nil
}

// Publish appends ev to the stream, letting Redis self-trim it to
// approximately streamMaxLen entries.
func (b *RedisStreamBus) Publish(ctx context.Context, ev Event) error {
	fields, err := serializeEvent(ev)
	if err != nil {
		return fmt.Errorf("events: serialize: %w", err)
	}
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: fields,
	}).Err()
	if err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}
	b.metrics.recordPublished()
	return nil
}

// Subscribe registers handler to be invoked for every event this process's
// consume loop claims. Unlike InMemoryBus, unsubscribing a single handler
// out of several sharing one consumer loop is not supported; the returned
// function is a no-op placeholder for interface symmetry.
func (b *RedisStreamBus) Subscribe(handler Handler) func() {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	return func() {}
}

func (b *RedisStreamBus) consumeLoop() {
	defer close(b.doneCh)
	ctx := context.Background()

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		if err := b.claimPendingMessages(ctx); err != nil {
			time.Sleep(time.Second)
			continue
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: b.consumerID,
			Streams:  []string{streamName, ">"},
			Count:    batchSize,
			Block:    blockDuration,
		}).Result()
		if err != nil && err != redis.Nil {
			time.Sleep(time.Second)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.processMessage(ctx, msg)
			}
		}
	}
}

// claimPendingMessages reclaims entries idle for longer than claimIdle,
// redelivering them to this consumer unless they have already exceeded
// maxRetries, in which case they are moved to the dead-letter stream.
func (b *RedisStreamBus) claimPendingMessages(ctx context.Context) error {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamName,
		Group:  consumerGroup,
		Start:  "-",
		End:    "+",
		Count:  batchSize,
		Idle:   claimIdle,
	}).Result()
	if err != nil {
		return fmt.Errorf("events: xpending: %w", err)
	}

	for _, p := range pending {
		if p.RetryCount >= maxRetries {
			if err := b.moveToDeadLetter(ctx, p.ID); err != nil {
				continue
			}
			continue
		}

		claimed, err := b.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   streamName,
			Group:    consumerGroup,
			Consumer: b.consumerID,
			MinIdle:  claimIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			continue
		}
		for _, msg := range claimed {
			b.processMessage(ctx, msg)
		}
	}
	return nil
}

func (b *RedisStreamBus) processMessage(ctx context.Context, msg redis.XMessage) {
	ev, err := deserializeEvent(msg.Values)
	if err != nil {
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			// Leave unacknowledged; claimPendingMessages will retry or
			// dead-letter it once idle long enough.
			b.metrics.recordFailed()
			return
		}
	}

	_ = b.client.XAck(ctx, streamName, consumerGroup, msg.ID).Err()
	b.metrics.recordProcessed()
}

// moveToDeadLetter copies a message that exhausted its retries into the
// dead-letter stream with provenance fields, then acknowledges the
// original so it stops being reclaimed.
func (b *RedisStreamBus) moveToDeadLetter(ctx context.Context, id string) error {
	msgs, err := b.client.XRangeN(ctx, streamName, id, id, 1).Result()
	if err != nil {
		return fmt.Errorf("events: read for dead-letter: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make(map[string]any, len(msgs[0].Values)+2)
	for k, v := range msgs[0].Values {
		values[k] = v
	}
	values["original_id"] = id
	values["original_stream"] = streamName

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: deadLetterStream,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("events: write dead letter: %w", err)
	}

	if err := b.client.XAck(ctx, streamName, consumerGroup, id).Err(); err != nil {
		return err
	}
	b.metrics.recordDeadLettered()
	return nil
}

func serializeEvent(ev Event) (map[string]any, error) {
	fields := map[string]any{
		"_event_type": string(ev.EntityType),
		"id":          ev.ID,
		"entityType":  string(ev.EntityType),
		"entityId":    ev.EntityID,
		"operation":   string(ev.Operation),
		"etag":        ev.ETag,
		"timestamp":   ev.Timestamp.Format(time.RFC3339Nano),
	}
	if len(ev.DocBytes) > 0 {
		fields["doc_bytes"] = base64.StdEncoding.EncodeToString(ev.DocBytes)
	}
	if len(ev.ValueBytes) > 0 {
		fields["value_bytes"] = base64.StdEncoding.EncodeToString(ev.ValueBytes)
	}
	return fields, nil
}

func deserializeEvent(values map[string]any) (Event, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	ts, err := time.Parse(time.RFC3339Nano, str("timestamp"))
	if err != nil {
		ts = time.Time{}
	}

	ev := Event{
		ID:         str("id"),
		EntityType: entityTypeFromString(str("entityType")),
		EntityID:   str("entityId"),
		Operation:  operationFromString(str("operation")),
		ETag:       str("etag"),
		Timestamp:  ts,
	}
	if raw := str("doc_bytes"); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err == nil {
			ev.DocBytes = decoded
		}
	}
	if raw := str("value_bytes"); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err == nil {
			ev.ValueBytes = decoded
		}
	}
	return ev, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func entityTypeFromString(s string) model.ChangeEntityType {
	return model.ChangeEntityType(s)
}

func operationFromString(s string) model.ChangeOp {
	return model.ChangeOp(s)
}
