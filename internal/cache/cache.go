// Package cache is the namespaced, TTL-bounded key-value store shared by
// every stage of the pipeline. Redis is the primary backend; an in-process
// map takes over transparently whenever Redis cannot be reached.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "counsel"

// Namespace groups cache entries. Sub-namespaces such as
// "agent_response:market_compass" inherit the TTL of their base.
type Namespace string

const (
	NamespaceSystemPrompt  Namespace = "system_prompt"
	NamespaceUserContext   Namespace = "user_context"
	NamespaceAgentResponse Namespace = "agent_response"
	NamespaceModelOutput   Namespace = "model_output"
	NamespaceSynthesis     Namespace = "chief_of_staff_synthesis"
)

var defaultTTLs = map[Namespace]time.Duration{
	NamespaceSystemPrompt:  time.Hour,
	NamespaceUserContext:   5 * time.Minute,
	NamespaceAgentResponse: 15 * time.Minute,
	NamespaceModelOutput:   30 * time.Minute,
	NamespaceSynthesis:     15 * time.Minute,
}

// Namespaces lists the known base namespaces.
func Namespaces() []Namespace {
	return []Namespace{
		NamespaceSystemPrompt,
		NamespaceUserContext,
		NamespaceAgentResponse,
		NamespaceModelOutput,
		NamespaceSynthesis,
	}
}

// Known reports whether n or its base is a known namespace.
func Known(n Namespace) bool {
	_, ok := defaultTTLs[n.Base()]
	return ok
}

// Sub returns a child namespace, e.g. NamespaceAgentResponse.Sub("market_compass").
func (n Namespace) Sub(name string) Namespace {
	return Namespace(string(n) + ":" + name)
}

// Base strips any sub-namespace suffix.
func (n Namespace) Base() Namespace {
	if i := strings.IndexByte(string(n), ':'); i >= 0 {
		return n[:i]
	}
	return n
}

// DefaultTTL returns the configured lifetime for a namespace, zero if none.
func DefaultTTL(n Namespace) time.Duration {
	return defaultTTLs[n.Base()]
}

// Store is the subset of cache behaviour consumers depend on.
type Store interface {
	Get(ctx context.Context, ns Namespace, id string) (string, bool)
	Set(ctx context.Context, ns Namespace, id, value string, ttl time.Duration)
	GetJSON(ctx context.Context, ns Namespace, id string, dst any) bool
	SetJSON(ctx context.Context, ns Namespace, id string, v any, ttl time.Duration)
	Delete(ctx context.Context, ns Namespace, id string)
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Stats summarises backend state.
type Stats struct {
	Backend   string  `json:"backend"`
	TotalKeys int64   `json:"total_keys"`
	Hits      int64   `json:"hits,omitempty"`
	Misses    int64   `json:"misses,omitempty"`
	HitRate   float64 `json:"hit_rate,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type Cache struct {
	rdb      *redis.Client
	fallback *memoryStore
	logger   *slog.Logger
}

// New connects to Redis. When the ping fails the cache runs purely on the
// in-process fallback; the error is logged, never returned.
func New(ctx context.Context, opts Options, logger *slog.Logger) *Cache {
	c := &Cache{fallback: newMemoryStore(time.Now), logger: logger}
	if opts.Addr == "" {
		logger.Warn("redis not configured, using in-memory cache")
		return c
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory cache", "addr", opts.Addr, "error", err)
		_ = rdb.Close()
		return c
	}
	logger.Info("redis cache connected", "addr", opts.Addr)
	c.rdb = rdb
	return c
}

// NewMemory returns a cache with no Redis backend.
func NewMemory(logger *slog.Logger) *Cache {
	return &Cache{fallback: newMemoryStore(time.Now), logger: logger}
}

// Backend names the active primary backend.
func (c *Cache) Backend() string {
	if c.rdb != nil {
		return "redis"
	}
	return "memory"
}

// Key builds the storage key for an identifier. Identifiers are hashed so
// keys have a fixed length.
func Key(ns Namespace, id string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, ns, Hash(id))
}

// Hash returns the md5 hex digest of the parts. Each part is length
// prefixed so different splits of the same text never collide.
func Hash(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Get(ctx context.Context, ns Namespace, id string) (string, bool) {
	key := Key(ns, id)
	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			c.logger.Debug("cache hit", "namespace", ns)
			return val, true
		case errors.Is(err, redis.Nil):
			c.logger.Debug("cache miss", "namespace", ns)
			return "", false
		default:
			c.logger.Error("redis get failed", "namespace", ns, "error", err)
		}
	}
	return c.fallback.get(key)
}

// Set stores value; ttl of zero uses the namespace default.
func (c *Cache) Set(ctx context.Context, ns Namespace, id, value string, ttl time.Duration) {
	if ttl == 0 {
		ttl = DefaultTTL(ns)
	}
	key := Key(ns, id)
	if c.rdb != nil {
		err := c.rdb.Set(ctx, key, value, ttl).Err()
		if err == nil {
			c.logger.Debug("cache set", "namespace", ns, "ttl", ttl)
			return
		}
		c.logger.Error("redis set failed", "namespace", ns, "error", err)
	}
	c.fallback.set(key, value, ttl)
}

func (c *Cache) GetJSON(ctx context.Context, ns Namespace, id string, dst any) bool {
	raw, ok := c.Get(ctx, ns, id)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.logger.Error("failed to decode cached json", "namespace", ns, "error", err)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, ns Namespace, id string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to encode json for cache", "namespace", ns, "error", err)
		return
	}
	c.Set(ctx, ns, id, string(data), ttl)
}

func (c *Cache) Delete(ctx context.Context, ns Namespace, id string) {
	key := Key(ns, id)
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			c.logger.Error("redis delete failed", "namespace", ns, "error", err)
		}
	}
	c.fallback.delete(key)
}

// ClearNamespace removes every key under ns, including sub-namespaces,
// and returns how many were deleted.
func (c *Cache) ClearNamespace(ctx context.Context, ns Namespace) int {
	prefix := fmt.Sprintf("%s:%s:", keyPrefix, ns)
	deleted := c.fallback.deletePrefix(prefix)
	if c.rdb == nil {
		return deleted
	}

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			c.logger.Error("redis scan failed", "namespace", ns, "error", err)
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				c.logger.Error("redis delete failed", "namespace", ns, "error", err)
				return deleted
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Info("cleared cache namespace", "namespace", ns, "deleted", deleted)
	return deleted
}

func (c *Cache) Stats(ctx context.Context) Stats {
	if c.rdb == nil {
		return Stats{Backend: "memory", TotalKeys: int64(c.fallback.len())}
	}

	st := Stats{Backend: "redis"}
	size, err := c.rdb.DBSize(ctx).Result()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.TotalKeys = size

	info, err := c.rdb.Info(ctx, "stats").Result()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Hits = infoField(info, "keyspace_hits")
	st.Misses = infoField(info, "keyspace_misses")
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}

func (c *Cache) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func infoField(info, field string) int64 {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, field+":"); ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			return n
		}
	}
	return 0
}
