package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	onlineUsersKey = "presence:online"
	lastSeenKey    = "presence:last_seen"
)

// RedisCache mirrors presence state into Redis for other services to read.
// The in-process tracker stays authoritative.
type RedisCache struct {
	Client *redis.Client
}

func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{Client: client}, nil
}

func (c *RedisCache) RecordStatus(ctx context.Context, userID int64, online bool, at time.Time) error {
	id := strconv.FormatInt(userID, 10)
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if online {
			pipe.SAdd(ctx, onlineUsersKey, id)
		} else {
			pipe.SRem(ctx, onlineUsersKey, id)
		}
		pipe.HSet(ctx, lastSeenKey, id, at.Unix())
		return nil
	})
	return err
}

func (c *RedisCache) RecordLastSeen(ctx context.Context, userIDs []int64, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(userIDs)*2)
	for _, id := range userIDs {
		values = append(values, strconv.FormatInt(id, 10), at.Unix())
	}
	return c.Client.HSet(ctx, lastSeenKey, values...).Err()
}

// Reset clears the mirrored online set. Called at startup since a fresh
// process has no connections.
func (c *RedisCache) Reset(ctx context.Context) error {
	return c.Client.Del(ctx, onlineUsersKey).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}
