package conceptcache

import (
	"text2phenotype.com/notex/logger"
	"text2phenotype.com/notex/redis"
	"text2phenotype.com/notex/utils"
	"context"
	"fmt"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"io"
	"strings"
	"time"
)

const DB redis.DB = 3

type Config struct {
	Size         int  `envconfig:"NOTEX_CONCEPT_CACHE_SIZE" default:"4096"`
	TTLHours     int  `envconfig:"NOTEX_CONCEPT_CACHE_TTL_HOURS" default:"720"`
	RedisEnabled bool `envconfig:"NOTEX_CONCEPT_CACHE_REDIS" default:"false"`
}

// store is the shared tier, implemented by *redis.Client.
type store interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cache keeps resolved concept identifiers per (category, term) in process and,
// when a shared store is configured, across processes.
type Cache struct {
	local    *lru.Cache[uint64, string]
	shared   store
	ttl      time.Duration
	ccLogger zerolog.Logger
}

func New(config Config, shared store) (*Cache, error) {
	size := config.Size
	if size <= 0 {
		size = 1
	}
	local, err := lru.New[uint64, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		local:    local,
		shared:   shared,
		ttl:      time.Duration(config.TTLHours) * time.Hour,
		ccLogger: logger.NewLogger("Concept cache"),
	}, nil
}

// FromEnvironment reads Config and connects the Redis tier when enabled.
func FromEnvironment() (*Cache, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}
	if !config.RedisEnabled {
		return New(config, nil)
	}
	client, err := redis.NewClient(DB)
	if err != nil {
		return nil, fmt.Errorf("concept cache redis: %w", err)
	}
	return New(config, client)
}

func key(category, term string) uint64 {
	return utils.HashParts(category, strings.ToLower(strings.TrimSpace(term)))
}

func redisKey(k uint64) string {
	return fmt.Sprintf("notex:cui:%016x", k)
}

func (c *Cache) Lookup(ctx context.Context, category, term string) (string, bool) {
	k := key(category, term)
	if cui, ok := c.local.Get(k); ok {
		return cui, true
	}
	if c.shared == nil {
		return "", false
	}
	cui, ok, err := c.shared.GetString(ctx, redisKey(k))
	if err != nil {
		c.ccLogger.Warn().Err(err).Str("data_class", category).Str("term", term).Msg("Shared cache lookup failed")
		return "", false
	}
	if ok {
		c.local.Add(k, cui)
	}
	return cui, ok
}

func (c *Cache) Store(ctx context.Context, category, term, cui string) {
	k := key(category, term)
	c.local.Add(k, cui)
	if c.shared == nil {
		return
	}
	if err := c.shared.SetString(ctx, redisKey(k), cui, c.ttl); err != nil {
		c.ccLogger.Warn().Err(err).Str("data_class", category).Str("term", term).Msg("Shared cache store failed")
	}
}

func (c *Cache) Len() int {
	return c.local.Len()
}

func (c *Cache) Close() error {
	if closer, ok := c.shared.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
