package llm

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheConfig configures the completion cache.
type CacheConfig struct {
	LocalMaxSize int           `json:"local_max_size"`
	LocalTTL     time.Duration `json:"local_ttl"`
	RedisTTL     time.Duration `json:"redis_ttl"`
}

// DefaultCacheConfig returns sensible defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		LocalMaxSize: 1000,
		LocalTTL:     5 * time.Minute,
		RedisTTL:     time.Hour,
	}
}

// Cache provides local LRU + optional Redis caching of tool-free
// completions. The Redis tier is skipped when no client is configured.
type Cache struct {
	local  *lruCache
	redis  *redis.Client
	config CacheConfig
	logger *zap.Logger
}

// NewCache creates a completion cache. rdb may be nil for local-only.
func NewCache(rdb *redis.Client, config CacheConfig, logger *zap.Logger) *Cache {
	if config.LocalMaxSize <= 0 {
		config.LocalMaxSize = DefaultCacheConfig().LocalMaxSize
	}
	if config.LocalTTL <= 0 {
		config.LocalTTL = DefaultCacheConfig().LocalTTL
	}
	if config.RedisTTL <= 0 {
		config.RedisTTL = DefaultCacheConfig().RedisTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		local:  newLRUCache(config.LocalMaxSize, config.LocalTTL),
		redis:  rdb,
		config: config,
		logger: logger,
	}
}

// Get returns a cached response for the request, if any.
func (c *Cache) Get(ctx context.Context, req *ChatRequest) (*ChatResponse, bool) {
	key := cacheKey(req)
	if resp, ok := c.local.get(key); ok {
		return resp, true
	}
	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisKey(key)).Bytes()
		if err == nil {
			var resp ChatResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				c.local.set(key, &resp)
				return &resp, true
			}
		} else if err != redis.Nil {
			c.logger.Warn("redis cache get failed", zap.Error(err))
		}
	}
	return nil, false
}

// Set stores a response for the request in both tiers.
func (c *Cache) Set(ctx context.Context, req *ChatRequest, resp *ChatResponse) {
	key := cacheKey(req)
	c.local.set(key, resp)
	if c.redis != nil {
		data, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, redisKey(key), data, c.config.RedisTTL).Err(); err != nil {
			c.logger.Warn("redis cache set failed", zap.Error(err))
		}
	}
}

func redisKey(key string) string { return "openloop:llm:" + key }

// cacheKey hashes the request payload; identical requests share a key.
func cacheKey(req *ChatRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// lruCache is a TTL-aware LRU for the local tier.
type lruCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	entries map[string]*list.Element
}

type lruEntry struct {
	key     string
	resp    *ChatResponse
	expires time.Time
}

func newLRUCache(maxSize int, ttl time.Duration) *lruCache {
	return &lruCache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (*ChatResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*lruEntry)
	if time.Now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.resp, true
}

func (c *lruCache) set(key string, resp *ChatResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.resp = resp
		entry.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&lruEntry{key: key, resp: resp, expires: time.Now().Add(c.ttl)})
	c.entries[key] = el
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}
