package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Cursor persists a bulk-normalization position so a pass resumes where the
// last replica stopped.
type Cursor struct {
	client *Client
	key    string
}

func NewCursor(client *Client, key string) *Cursor {
	return &Cursor{
		client: client,
		key:    key,
	}
}

// Load returns the stored id, or 0 when no pass has run yet.
func (c *Cursor) Load(ctx context.Context) (int64, error) {
	val, err := c.client.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *Cursor) Save(ctx context.Context, afterID int64) error {
	return c.client.rdb.Set(ctx, c.key, afterID, 0).Err()
}
