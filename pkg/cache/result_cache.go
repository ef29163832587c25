// Package cache implements the content-addressed, TTL-bound result cache
// for classification output. The cache is an optimization, never a source
// of truth: any store failure degrades to recomputation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
)

// keyPrefix namespaces field-analysis entries in the shared store.
const keyPrefix = "field-analysis:"

// DefaultTTL bounds how long a field-analysis result may be served stale.
const DefaultTTL = time.Hour

// ErrMiss is returned by a Store when a key has no entry.
var ErrMiss = errors.New("cache miss")

// Store is the narrow key-value contract the result cache needs. The redis
// implementation is the default; tests inject in-memory or failing stores.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// redisStore adapts a redis client to the Store interface.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a redis client as a Store. A nil client yields a nil
// Store, which the result cache treats as always-miss.
func NewRedisStore(client *redis.Client) Store {
	if client == nil {
		return nil
	}
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	return raw, err
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// TableResult is the cached classification output for one table group,
// keyed by field name.
type TableResult map[string]models.ClassificationResult

// FieldInput is the per-column portion of a cache fingerprint.
type FieldInput struct {
	Name     string
	DataType string
	Samples  []string
}

// Fingerprint computes a stable hash of the classification input. Two
// requests with the same data source, table identity, column descriptors,
// and sample data share one cache entry.
func Fingerprint(dataSourceID, schema, table string, columns []FieldInput) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s\n", dataSourceID, schema, table)

	sorted := make([]FieldInput, len(columns))
	copy(sorted, columns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, col := range sorted {
		fmt.Fprintf(h, "%s:%s:%s\n", col.Name, col.DataType, sampleDigest(col.Samples))
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

// sampleDigest hashes sample values so the fingerprint tracks data changes
// without embedding raw values in cache keys.
func sampleDigest(samples []string) string {
	if len(samples) == 0 {
		return "empty"
	}
	sorted := make([]string, len(samples))
	copy(sorted, samples)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return fmt.Sprintf("%x", sum[:8])
}

// ResultCache caches table classification results in a Store.
// A nil store is valid and behaves as an always-miss cache.
type ResultCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache creates a result cache. Pass ttl=0 for the default.
func NewResultCache(store Store, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("result-cache"),
	}
}

// Get returns the cached result for a fingerprint. Store errors are treated
// as a miss so the caller always proceeds to compute.
func (c *ResultCache) Get(ctx context.Context, fingerprint string) (TableResult, bool) {
	if c.store == nil {
		return nil, false
	}

	raw, err := c.store.Get(ctx, keyPrefix+fingerprint)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("Cache read failed, treating as miss", zap.Error(err))
		}
		return nil, false
	}

	var result TableResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("Cache entry corrupt, treating as miss", zap.Error(err))
		return nil, false
	}

	return result, true
}

// Set stores a result under a fingerprint. Write failures are logged and
// swallowed; they never fail the caller.
func (c *ResultCache) Set(ctx context.Context, fingerprint string, result TableResult) {
	if c.store == nil {
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Cache serialization failed, skipping write", zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, keyPrefix+fingerprint, raw, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}
