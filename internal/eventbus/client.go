// Package eventbus publishes port lifecycle events (create/close/delete/
// owner-change) to Redis pub/sub: a networked observability hook standing
// in for a kernel debugger's ability to watch table mutations live.
package eventbus

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// client wraps the go-redis client with a named logger.
type client struct {
	*redis.Client
	log *zap.Logger
}

func newClient(addr string, db int, log *zap.Logger) *client {
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}

	c := &client{
		Client: redis.NewClient(opts),
		log:    log.Named("redis"),
	}

	log.Info("redis client initialized", zap.String("addr", addr), zap.Int("db", db))
	c.ping(context.Background())
	return c
}

func (c *client) ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	opts := c.Options()
	log := c.log.With(zap.String("addr", opts.Addr), zap.Int("db", opts.DB))

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
		return
	}
	log.Info("connection established", zap.Duration("ping_rtt", elapsed))
}

func (c *client) Close() error {
	return c.Client.Close()
}
