// Package cache implements the Redis-backed document and element-value
// cache sitting in front of the document repository. Entries are stored as
// already-canonical bytes (never re-marshaled) so a cache hit is a single
// GET with no JSON decoding.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent, distinct from a
// transport error.
var ErrMiss = errors.New("cache: miss")

const (
	docKeyPrefix     = "doc:"
	elementKeyPrefix = "elem:"
)

// Cache wraps a Redis client with the key-space conventions used for cached
// AAS documents (doc:<entityType>:<identifierB64>) and individual element
// values (elem:<submodelId>:<idShortPath>).
type Cache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// New builds a Cache from a pre-configured Redis client.
func New(client *redis.Client, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Cache{client: client, defaultTTL: defaultTTL}
}

// NewFromURL parses a redis:// connection URL and pings it before returning,
// the way the rest of the stack's Redis-backed components do.
func NewFromURL(url string, defaultTTL time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}
	return New(client, defaultTTL), nil
}

// GetDocument returns the cached canonical bytes and ETag for an entity, or
// ErrMiss.
func (c *Cache) GetDocument(ctx context.Context, entityType, idB64 string) (docBytes []byte, etag string, err error) {
	key := docKeyPrefix + entityType + ":" + idB64
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, "", fmt.Errorf("cache: get document: %w", err)
	}
	if len(fields) == 0 {
		return nil, "", ErrMiss
	}
	return []byte(fields["doc"]), fields["etag"], nil
}

// PutDocument caches a document's canonical bytes and ETag with the given
// TTL (0 uses the cache's default).
func (c *Cache) PutDocument(ctx context.Context, entityType, idB64 string, docBytes []byte, etag string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := docKeyPrefix + entityType + ":" + idB64
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{"doc": docBytes, "etag": etag})
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cache: put document: %w", err)
	}
	return nil
}

// InvalidateDocument drops a cached document, used on update/delete so
// stale bytes are never served after a write.
func (c *Cache) InvalidateDocument(ctx context.Context, entityType, idB64 string) error {
	key := docKeyPrefix + entityType + ":" + idB64
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: invalidate document: %w", err)
	}
	return nil
}

// GetElementValue returns the cached raw value bytes for one element path
// within a submodel, or ErrMiss.
func (c *Cache) GetElementValue(ctx context.Context, submodelIDB64, idShortPath string) ([]byte, error) {
	key := elementKeyPrefix + submodelIDB64 + ":" + idShortPath
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get element value: %w", err)
	}
	return data, nil
}

// PutElementValue caches one element's value bytes.
func (c *Cache) PutElementValue(ctx context.Context, submodelIDB64, idShortPath string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := elementKeyPrefix + submodelIDB64 + ":" + idShortPath
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: put element value: %w", err)
	}
	return nil
}

// InvalidateElementValue drops one cached element value.
func (c *Cache) InvalidateElementValue(ctx context.Context, submodelIDB64, idShortPath string) error {
	key := elementKeyPrefix + submodelIDB64 + ":" + idShortPath
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: invalidate element value: %w", err)
	}
	return nil
}

// InvalidateSubmodelElements drops every cached element value under a
// submodel, used when the whole submodel document is replaced.
func (c *Cache) InvalidateSubmodelElements(ctx context.Context, submodelIDB64 string) error {
	pattern := elementKeyPrefix + submodelIDB64 + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: scan submodel element keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: invalidate submodel elements: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
