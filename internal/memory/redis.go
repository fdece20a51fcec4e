package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

const keyPrefix = "cw:memory:"

// RedisConfig describes the external key-value store connection.
type RedisConfig struct {
	Enabled bool
	URL     string
	Token   string
}

type redisGateway struct {
	cfg    RedisConfig
	logger logging.Logger

	once   sync.Once
	client *redis.Client
}

// NewGateway returns a redis-backed gateway, or the no-op gateway when
// memory is disabled or not fully configured. Client construction is lazy,
// happens once, and degrades to no-op behavior on failure.
func NewGateway(cfg RedisConfig, logger logging.Logger) Gateway {
	if logger == nil {
		logger = logging.Nop()
	}
	if !cfg.Enabled {
		return Noop()
	}
	if cfg.URL == "" || cfg.Token == "" {
		logger.Warn("server memory enabled but REDIS_URL/REDIS_TOKEN missing, memory disabled")
		return Noop()
	}
	return &redisGateway{cfg: cfg, logger: logger}
}

func (g *redisGateway) ensureClient() *redis.Client {
	g.once.Do(func() {
		opts, err := redis.ParseURL(g.cfg.URL)
		if err != nil {
			g.logger.Warn("failed to parse redis URL, memory disabled: %v", err)
			return
		}
		if opts.Password == "" {
			opts.Password = g.cfg.Token
		}
		g.client = redis.NewClient(opts)
	})
	return g.client
}

func memoryKey(userID string) string {
	return keyPrefix + userID
}

func (g *redisGateway) Fetch(ctx context.Context, userID string) (string, error) {
	client := g.ensureClient()
	if client == nil {
		return "", nil
	}
	value, err := client.Get(ctx, memoryKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (g *redisGateway) Persist(ctx context.Context, userID, summary string) error {
	client := g.ensureClient()
	if client == nil {
		return nil
	}
	return client.Set(ctx, memoryKey(userID), CapSummary(summary), Expiry).Err()
}
