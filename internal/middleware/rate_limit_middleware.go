package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// redisLimitTimeout ограничивает обращение к Redis из middleware
const redisLimitTimeout = 2 * time.Second

// RateLimitConfig - фиксированное окно: не более MaxRequests за Window на ключ
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
	// PerPath добавляет шаблон маршрута к ключу
	PerPath bool
}

// AuthRateLimitConfig - login/register, ключ по IP и маршруту
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 5, Window: time.Minute, KeyPrefix: "rl:auth", PerPath: true}
}

// AdminJobsRateLimitConfig - ручной запуск задач, ключ по администратору
func AdminJobsRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 10, Window: time.Minute, KeyPrefix: "rl:admin:jobs"}
}

// RateLimiter считает запросы в Redis: INCR и TTL в одной транзакции, EXPIRE при открытии окна.
// Без Redis или при его ошибке запросы пропускаются.
type RateLimiter struct {
	redisClient redis.UniversalClient
}

// NewRateLimiter создает RateLimiter. nil-клиент отключает ограничение.
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// rateLimitSubject - аутентифицированный пользователь, иначе IP клиента
func rateLimitSubject(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.ClientIP()
}

func (cfg RateLimitConfig) key(c *gin.Context) string {
	key := cfg.KeyPrefix + ":" + rateLimitSubject(c)
	if cfg.PerPath {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key += ":" + path
	}
	return key
}

// hit увеличивает счетчик окна и возвращает значение и остаток TTL
func (rl *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	// Первый запрос окна или ключ без срока жизни
	remaining := ttl.Val()
	if incr.Val() == 1 || remaining < 0 {
		if err := rl.redisClient.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		remaining = window
	}
	return incr.Val(), remaining, nil
}

// Limit возвращает gin middleware с заданной конфигурацией
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.redisClient == nil {
			c.Next()
			return
		}

		key := cfg.key(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), redisLimitTimeout)
		defer cancel()

		count, ttl, err := rl.hit(ctx, key, cfg.Window)
		if err != nil {
			log.Printf("[RateLimiter] Redis недоступен (%s), запрос пропущен: %v", key, err)
			c.Next()
			return
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		retryAfter := strconv.Itoa(int(ttl.Round(time.Second).Seconds()))
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > cfg.MaxRequests {
			log.Printf("[RateLimiter] Превышен лимит %s: %d/%d", key, count, cfg.MaxRequests)
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      fmt.Sprintf("Too many requests, retry in %ss", retryAfter),
				"error_type": "rate_limited",
			})
			return
		}
		c.Next()
	}
}
