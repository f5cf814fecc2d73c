package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lekenzi/QuizNexus/internal/config"
)

// redisPingTimeout ограничивает проверку подключения при старте
const redisPingTimeout = 3 * time.Second

// RedisOptions переводит конфигурацию в redis.UniversalOptions.
// Режим: single (первый адрес), sentinel (нужен MasterName), cluster (все адреса).
func RedisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis configuration error: addrs or addr must be provided")
	}

	opts := &redis.UniversalOptions{
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoff) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoff) * time.Millisecond,
	}

	switch cfg.Mode {
	case "", "single":
		// NewUniversalClient выбирает кластер при нескольких адресах
		opts.Addrs = addrs[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("redis sentinel mode requires master_name")
		}
		opts.Addrs = addrs
		opts.MasterName = cfg.MasterName
	case "cluster":
		opts.Addrs = addrs
	default:
		return nil, fmt.Errorf("unsupported redis mode: %s", cfg.Mode)
	}
	return opts, nil
}

// NewUniversalRedisClient создает клиент Redis и проверяет подключение
func NewUniversalRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", cfg.Mode, opts.Addrs, err)
	}
	return client, nil
}
