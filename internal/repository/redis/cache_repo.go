package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// CacheRepo реализует repository.CacheRepository
type CacheRepo struct {
	client redis.UniversalClient
	ctx    context.Context
}

// scanBatchSize - подсказка COUNT для SCAN при удалении по шаблону
const scanBatchSize = 200

// NewCacheRepo создает новый репозиторий кеша и возвращает ошибку при проблемах
func NewCacheRepo(client redis.UniversalClient) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for CacheRepo")
	}
	return &CacheRepo{
		client: client,
		ctx:    context.Background(),
	}, nil
}

// Delete удаляет значение из кеша
func (r *CacheRepo) Delete(key string) error {
	return r.client.Del(r.ctx, key).Err()
}

// SetJSON сохраняет структуру JSON в кеше
func (r *CacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, key, data, expiration).Err()
}

// GetJSON получает структуру JSON из кеша
func (r *CacheRepo) GetJSON(key string, dest interface{}) error {
	data, err := r.client.Get(r.ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperrors.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetNX устанавливает значение ключа, только если ключ не существует.
// Возвращает true, если ключ был установлен, false - если ключ уже существовал.
func (r *CacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	return r.client.SetNX(r.ctx, key, value, expiration).Result()
}

// compareAndDelete атомарно удаляет ключ, если значение совпадает
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DeleteIfValue удаляет ключ, только если в нем лежит value.
// Возвращает false, если ключа нет или им владеет другой.
func (r *CacheRepo) DeleteIfValue(key, value string) (bool, error) {
	n, err := compareAndDelete.Run(r.ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteByPattern удаляет ключи по glob-шаблону. Используется SCAN, а не KEYS,
// чтобы не блокировать Redis на больших базах. В кластере обходятся все master-узлы.
func (r *CacheRepo) DeleteByPattern(pattern string) (int64, error) {
	if cluster, ok := r.client.(*redis.ClusterClient); ok {
		var (
			mu    sync.Mutex
			total int64
		)
		err := cluster.ForEachMaster(r.ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := scanAndDelete(ctx, node, pattern)
			mu.Lock()
			total += n
			mu.Unlock()
			return err
		})
		return total, err
	}
	return scanAndDelete(r.ctx, r.client, pattern)
}

// scanAndDelete сначала собирает все ключи полным проходом SCAN, затем удаляет их пачками.
// Удаление во время обхода сдвигает курсор в некоторых реализациях и теряет ключи.
func scanAndDelete(ctx context.Context, client redis.Cmdable, pattern string) (int64, error) {
	seen := make(map[string]struct{})
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return 0, fmt.Errorf("scan %q: %w", pattern, err)
		}
		for _, k := range batch {
			// SCAN может вернуть ключ повторно
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	var deleted int64
	for start := 0; start < len(keys); start += scanBatchSize {
		end := start + scanBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		n, err := client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("del %d keys for %q: %w", end-start, pattern, err)
		}
		deleted += n
	}
	return deleted, nil
}
