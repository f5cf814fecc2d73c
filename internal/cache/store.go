// Package cache реализует best-effort кеш поверх repository.CacheRepository:
// любая ошибка хранилища логируется и трактуется как промах (Get) или no-op (Set, Invalidate).
package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lekenzi/QuizNexus/internal/domain/repository"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
)

// Store - кеш, который никогда не возвращает ошибок вызывающей стороне
type Store struct {
	repo repository.CacheRepository
}

// NewStore создает Store. repo == nil означает выключенный кеш: все чтения - промахи.
func NewStore(repo repository.CacheRepository) *Store {
	return &Store{repo: repo}
}

// Enabled сообщает, подключено ли хранилище
func (s *Store) Enabled() bool {
	return s != nil && s.repo != nil
}

// Get читает JSON-значение в dest. Возвращает false при промахе или любой ошибке.
func (s *Store) Get(key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	err := s.repo.GetJSON(key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[Cache] Ошибка чтения ключа %s, считаем промахом: %v", key, err)
	}
	return false
}

// Set сохраняет значение как JSON с TTL
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.SetJSON(key, value, ttl); err != nil {
		log.Printf("[Cache] Ошибка записи ключа %s: %v", key, err)
	}
}

// Delete удаляет один ключ
func (s *Store) Delete(key string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(key); err != nil {
		log.Printf("[Cache] Ошибка удаления ключа %s: %v", key, err)
	}
}

// InvalidatePattern удаляет все ключи по glob-шаблону и возвращает их количество
func (s *Store) InvalidatePattern(pattern string) int64 {
	if !s.Enabled() {
		return 0
	}
	n, err := s.repo.DeleteByPattern(pattern)
	if err != nil {
		log.Printf("[Cache] Ошибка инвалидации по шаблону %s (удалено %d): %v", pattern, n, err)
		return n
	}
	if n > 0 {
		log.Printf("[Cache] Инвалидировано %d ключей по шаблону %s", n, pattern)
	}
	return n
}

// Invalidate применяет InvalidatePattern к каждому шаблону
func (s *Store) Invalidate(patterns ...string) {
	for _, p := range patterns {
		s.InvalidatePattern(p)
	}
}

// Remember возвращает значение из кеша или вычисляет его через load и кладет в кеш.
// Ошибка load не кешируется.
func Remember[T any](ctx context.Context, s *Store, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if s.Get(key, &cached) {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(key, value, ttl)
	return value, nil
}
