package roundcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda o snapshot da rodada corrente no Redis, para réplicas sem o
// motor servirem GET /api/rounds/current.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

const keyCurrent = "round:current"

func (c *Cache) GetCurrent(ctx context.Context, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyCurrent).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetCurrent(ctx context.Context, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyCurrent, b, ttl).Err()
}
