package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"lukechampine.com/blake3"

	"github.com/yungbote/lecturegen/internal/platform/logger"
)

type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// PlanCache keeps generated lecture plans keyed by a hash of the prompt.
type PlanCache struct {
	log    *logger.Logger
	rdb    kv
	prefix string
	ttl    time.Duration
}

func NewPlanCache(log *logger.Logger, rdb kv, prefix string, ttl time.Duration) *PlanCache {
	if log == nil {
		log = logger.Nop()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "lecturegen:plan:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PlanCache{log: log.With("service", "RedisPlanCache"), rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *PlanCache) Key(prompt string) string {
	sum := blake3.Sum256([]byte(prompt))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *PlanCache) Get(ctx context.Context, prompt string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, c.Key(prompt)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *PlanCache) Set(ctx context.Context, prompt string, planJSON string) error {
	return c.rdb.Set(ctx, c.Key(prompt), planJSON, c.ttl).Err()
}
