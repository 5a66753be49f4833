package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExposureTracker counts item administrations inside a fixed time window.
// Counters reset when the window rolls over.
type ExposureTracker interface {
	Increment(ctx context.Context, itemID uint) (int64, error)
	Counts(ctx context.Context, itemIDs []uint) (map[uint]int64, error)
}

const exposureKeyPrefix = "cat:exposure"

// windowBucket numbers the window containing t.
func windowBucket(t time.Time, window time.Duration) int64 {
	if window <= 0 {
		return 0
	}
	return t.UnixNano() / int64(window)
}

func exposureKey(bucket int64, itemID uint) string {
	return fmt.Sprintf("%s:%d:%d", exposureKeyPrefix, bucket, itemID)
}

// ===== REDIS =====

type redisExposureTracker struct {
	client *redis.Client
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisExposureTracker keeps one counter per item per window; keys expire
// one window after the window ends.
func NewRedisExposureTracker(client *redis.Client, window time.Duration, logger *slog.Logger) ExposureTracker {
	return &redisExposureTracker{
		client: client,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

func (r *redisExposureTracker) Increment(ctx context.Context, itemID uint) (int64, error) {
	key := exposureKey(windowBucket(r.now(), r.window), itemID)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if r.window > 0 {
		pipe.Expire(ctx, key, 2*r.window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("Exposure increment failed", "item_id", itemID, "error", err)
		return 0, fmt.Errorf("failed to increment exposure: %w", err)
	}
	return incr.Val(), nil
}

func (r *redisExposureTracker) Counts(ctx context.Context, itemIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return counts, nil
	}

	bucket := windowBucket(r.now(), r.window)
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = exposureKey(bucket, id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read exposure counts: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		counts[itemIDs[i]] = n
	}
	return counts, nil
}

// ===== IN-MEMORY =====

type memoryExposureTracker struct {
	mu     sync.Mutex
	window time.Duration
	bucket int64
	counts map[uint]int64
	now    func() time.Time
}

// NewMemoryExposureTracker is the single-process tracker used without Redis.
func NewMemoryExposureTracker(window time.Duration) ExposureTracker {
	return newMemoryExposureTracker(window, time.Now)
}

func newMemoryExposureTracker(window time.Duration, now func() time.Time) *memoryExposureTracker {
	return &memoryExposureTracker{
		window: window,
		bucket: windowBucket(now(), window),
		counts: make(map[uint]int64),
		now:    now,
	}
}

// roll drops the counters of a finished window. Caller holds mu.
func (m *memoryExposureTracker) roll() {
	if b := windowBucket(m.now(), m.window); b != m.bucket {
		m.bucket = b
		m.counts = make(map[uint]int64)
	}
}

func (m *memoryExposureTracker) Increment(ctx context.Context, itemID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	m.counts[itemID]++
	return m.counts[itemID], nil
}

func (m *memoryExposureTracker) Counts(ctx context.Context, itemIDs []uint) (map[uint]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	out := make(map[uint]int64, len(itemIDs))
	for _, id := range itemIDs {
		if n := m.counts[id]; n > 0 {
			out[id] = n
		}
	}
	return out, nil
}
