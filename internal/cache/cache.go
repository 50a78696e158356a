// Package cache implements spec.md §4.9: a Cache Manager that prefers a
// remote backend (Redis) and transparently falls back to a local in-process
// map when the remote is unavailable. The teacher's go.mod configures
// redis/go-redis/v9 but only the dropped HTTP rate-limit middleware ever
// imported it; this package and ratelimit are its first real consumers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ncecere-raito/scrapeengine/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Backend is the remote cache backend contract spec.md §6 names: get,
// set, del, keys, ping. Any call may fail; failures trigger local fallback.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
}

// RedisBackend adapts *redis.Client to Backend.
type RedisBackend struct {
	Client *redis.Client
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return val, err
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.Client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Del(ctx context.Context, key string) error {
	return b.Client.Del(ctx, key).Err()
}

func (b *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	return b.Client.Keys(ctx, pattern).Result()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.Client.Ping(ctx).Err()
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// Manager is the Cache Manager. A nil Remote runs local-only.
type Manager struct {
	Remote Backend
	Log    zerolog.Logger

	mu    sync.Mutex
	local map[string]localEntry
}

// New builds a Manager. remote may be nil.
func New(remote Backend, log zerolog.Logger) *Manager {
	return &Manager{
		Remote: remote,
		Log:    log,
		local:  make(map[string]localEntry),
	}
}

// Lookup is what Get returns: the decoded value (nil on miss), whether it
// came from cache, and remaining TTL when known.
type Lookup struct {
	Data         []byte
	FromCache    bool
	RemainingTTL *time.Duration
}

// Get tries the remote backend first; on remote error it falls back to the
// local map, checking per-entry expiry on read.
func (m *Manager) Get(ctx context.Context, key string) (Lookup, error) {
	if m.Remote != nil {
		val, err := m.Remote.Get(ctx, key)
		if err == nil {
			if val == nil {
				metrics.RecordCacheLookup("remote", "miss")
				return Lookup{}, nil
			}
			metrics.RecordCacheLookup("remote", "hit")
			return Lookup{Data: val, FromCache: true}, nil
		}
		metrics.RecordCacheLookup("remote", "error")
		m.Log.Warn().Err(err).Str("key", key).Msg("cache remote get failed, falling back to local")
	}

	m.mu.Lock()
	entry, ok := m.local[key]
	m.mu.Unlock()
	if !ok {
		metrics.RecordCacheLookup("local", "miss")
		return Lookup{}, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.local, key)
		m.mu.Unlock()
		metrics.RecordCacheLookup("local", "miss")
		return Lookup{}, nil
	}
	remaining := time.Until(entry.expiresAt)
	metrics.RecordCacheLookup("local", "hit")
	return Lookup{Data: entry.value, FromCache: true, RemainingTTL: &remaining}, nil
}

// Set writes to the remote backend when available, and always mirrors into
// the local map so a later remote outage still serves recently-set keys.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.Remote != nil {
		if err := m.Remote.Set(ctx, key, value, ttl); err != nil {
			m.Log.Warn().Err(err).Str("key", key).Msg("cache remote set failed, using local only")
		}
	}
	m.mu.Lock()
	m.local[key] = localEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes key from both backends.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if m.Remote != nil {
		if err := m.Remote.Del(ctx, key); err != nil {
			m.Log.Warn().Err(err).Str("key", key).Msg("cache remote delete failed")
		}
	}
	m.mu.Lock()
	delete(m.local, key)
	m.mu.Unlock()
	return nil
}

// Clear empties the local map. The remote backend is left untouched since
// it may be shared by other processes.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.local = make(map[string]localEntry)
	m.mu.Unlock()
}

// GetJSON and SetJSON are convenience wrappers around Get/Set for callers
// storing structured values (the Scrape Service's ScrapedResult, the
// Content Validator's cached verdicts).
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	lookup, err := m.Get(ctx, key)
	if err != nil || !lookup.FromCache {
		return false, err
	}
	if err := json.Unmarshal(lookup.Data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, encoded, ttl)
}

// ScrapeKey builds the exact cache key format spec.md §6 fixes:
// scrape:<url>:<scraper_tag>:<8-hex> where the hex suffix is the first 8
// hex characters of SHA-256(task_description), or SHA-256("default") when
// task_description is empty.
func ScrapeKey(url, scraperTag, taskDescription string) string {
	fingerprintInput := taskDescription
	if fingerprintInput == "" {
		fingerprintInput = "default"
	}
	sum := sha256.Sum256([]byte(fingerprintInput))
	return fmt.Sprintf("scrape:%s:%s:%x", url, scraperTag, sum[:4])
}
