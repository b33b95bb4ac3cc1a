package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
)

type RedisReportCache struct {
	client redis.UniversalClient
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.client.Close()
}

func (c *RedisReportCache) Get(ctx context.Context, key string) (*domain.Report, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	report, err := decodeReport(val)
	if err != nil {
		// An entry that no longer decodes is dropped and rebuilt by the caller.
		if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
			return nil, false, fmt.Errorf("drop undecodable report %s: %w", key, delErr)
		}
		return nil, false, nil
	}
	return report, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, value *domain.Report, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func decodeReport(payload []byte) (*domain.Report, error) {
	var report domain.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, err
	}
	if report.StartDate == "" || report.EndDate == "" {
		return nil, errors.New("report payload without a date range")
	}
	return &report, nil
}
