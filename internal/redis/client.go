// Package redis wraps the go-redis client with the key schemas the engine
// uses: per-minute error counters, event flags set by external systems, and
// campaign metrics read during condition evaluation.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Error counter methods. Counters are bucketed per (category, service) pair
// and minute so the tracker can alert on short bursts; buckets expire after
// an hour, which makes the key scan in ErrorCounts a trailing-hour report.

const errorKeyPrefix = "errors:"

func errorKey(category, service string, minute time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", errorKeyPrefix, category, service, minute.UTC().Format("2006-01-02T15:04"))
}

func (c *Client) IncrErrorCount(ctx context.Context, category, service string, minute time.Time, ttl time.Duration) (int64, error) {
	key := errorKey(category, service, minute)

	pipe := c.rdb.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment error counter: %w", err)
	}

	return incrCmd.Val(), nil
}

func (c *Client) ErrorCount(ctx context.Context, category, service string, minute time.Time) (int64, error) {
	val, err := c.rdb.Get(ctx, errorKey(category, service, minute)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read error counter: %w", err)
	}
	return strconv.ParseInt(val, 10, 64)
}

// ErrorCounts sums all live error counter buckets, keyed "category:service".
func (c *Client) ErrorCounts(ctx context.Context) (map[string]int64, error) {
	totals := make(map[string]int64)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, errorKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan error counters: %w", err)
		}

		for _, key := range keys {
			parts := strings.Split(strings.TrimPrefix(key, errorKeyPrefix), ":")
			if len(parts) < 3 {
				continue
			}
			pair := parts[0] + ":" + parts[1]

			val, err := c.rdb.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read error counter: %w", err)
			}
			count, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				continue
			}
			totals[pair] += count
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return totals, nil
}

// Event flag methods. External systems flag an event for a campaign; the
// condition evaluator consumes the flag on the next poll.

func eventKey(campaignID, eventName string) string {
	return fmt.Sprintf("event:%s:%s", campaignID, eventName)
}

func (c *Client) SetEventFlag(ctx context.Context, campaignID, eventName string, ttl time.Duration) error {
	return c.rdb.Set(ctx, eventKey(campaignID, eventName), "1", ttl).Err()
}

func (c *Client) CheckEventFlag(ctx context.Context, campaignID, eventName string) (bool, error) {
	count, err := c.rdb.Exists(ctx, eventKey(campaignID, eventName)).Result()
	return count > 0, err
}

func (c *Client) ClearEventFlag(ctx context.Context, campaignID, eventName string) error {
	return c.rdb.Del(ctx, eventKey(campaignID, eventName)).Err()
}

// Campaign metric methods. Metrics are written by external analytics
// ingestion and read during metric_threshold condition checks.

func metricKey(campaignID, metric string) string {
	return fmt.Sprintf("metrics:%s:%s", campaignID, metric)
}

func (c *Client) SetMetric(ctx context.Context, campaignID, metric string, value float64) error {
	return c.rdb.Set(ctx, metricKey(campaignID, metric), value, 0).Err()
}

func (c *Client) Metric(ctx context.Context, campaignID, metric string) (float64, bool, error) {
	val, err := c.rdb.Get(ctx, metricKey(campaignID, metric)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read metric: %w", err)
	}

	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("metric %s holds a non-numeric value: %w", metric, err)
	}
	return parsed, true, nil
}

// Key-value operations for configuration and state

func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	var data []byte
	var err error

	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		data, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
	}

	return c.rdb.Set(ctx, key, data, expiration).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.rdb.Exists(ctx, key).Result()
	return count > 0, err
}
