// Package cache memoizes taxonomy searches in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/skill-mapper/internal/logger"
	"github.com/spigell/skill-mapper/internal/taxonomy"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "skill-mapper:taxonomy:"
)

type Config struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password" json:"-"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// Observer is notified about every lookup.
type Observer func(source string, hit bool)

// Client wraps a taxonomy.Client with a Redis read-through cache. Redis
// failures are logged and the upstream client is queried directly.
type Client struct {
	next     taxonomy.Client
	redis    *redis.Client
	ttl      time.Duration
	prefix   string
	observer Observer
	logger   *zap.Logger
}

func New(next taxonomy.Client, cfg Config, observer Observer, log *zap.Logger) (*Client, error) {
	if next == nil {
		return nil, errors.New("upstream taxonomy client is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return wrap(next, rdb, cfg, observer, log), nil
}

func wrap(next taxonomy.Client, rdb *redis.Client, cfg Config, observer Observer, log *zap.Logger) *Client {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Client{
		next:     next,
		redis:    rdb,
		ttl:      ttl,
		prefix:   prefix,
		observer: observer,
		logger:   logger.Component(log, "taxonomy-cache"),
	}
}

func (c *Client) Name() string { return c.next.Name() }

func (c *Client) Close() error { return c.redis.Close() }

// Search implements taxonomy.Client.
func (c *Client) Search(ctx context.Context, query, language string, limit int) ([]taxonomy.Candidate, error) {
	key := c.key(query, language, limit)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var candidates []taxonomy.Candidate
		if jsonErr := json.Unmarshal(raw, &candidates); jsonErr == nil {
			c.observe(true)
			return candidates, nil
		}
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("redis get failed, querying upstream", zap.Error(err))
	}

	c.observe(false)
	candidates, err := c.next.Search(ctx, query, language, limit)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(candidates)
	if err != nil {
		return candidates, nil
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.Error(err))
	}

	return candidates, nil
}

func (c *Client) observe(hit bool) {
	if c.observer != nil {
		c.observer(c.next.Name(), hit)
	}
}

func (c *Client) key(query, language string, limit int) string {
	normalized := strings.Join([]string{
		c.next.Name(),
		strings.ToLower(strings.TrimSpace(language)),
		strconv.Itoa(limit),
		strings.ToLower(strings.TrimSpace(query)),
	}, "\x00")
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s%s", c.prefix, hex.EncodeToString(sum[:]))
}
