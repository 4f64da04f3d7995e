package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"market-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PutSession stores a session under its token with a TTL.
func (c *Client) PutSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(session.Token), data, ttl).Err()
}

// GetSession retrieves a session by token. Returns (nil, nil) when the
// token is unknown or expired.
func (c *Client) GetSession(ctx context.Context, token string) (*models.Session, error) {
	data, err := c.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session token.
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, sessionKey(token)).Err()
}

// CachePrices stores the market price board with a TTL.
func (c *Client) CachePrices(ctx context.Context, prices []models.MarketPrice, ttl time.Duration) error {
	data, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("failed to marshal prices: %w", err)
	}
	return c.rdb.Set(ctx, "market:prices", data, ttl).Err()
}

// GetCachedPrices retrieves the cached price board. Returns (nil, nil)
// on a cache miss.
func (c *Client) GetCachedPrices(ctx context.Context) ([]models.MarketPrice, error) {
	data, err := c.rdb.Get(ctx, "market:prices").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var prices []models.MarketPrice
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prices: %w", err)
	}
	return prices, nil
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}
