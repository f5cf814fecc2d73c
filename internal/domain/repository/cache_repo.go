package repository

import (
	"time"
)

// CacheRepository - хранилище кеша и межпроцессных блокировок.
// Отсутствующий ключ в GetJSON возвращает apperrors.ErrNotFound.
type CacheRepository interface {
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
	Delete(key string) error
	// SetNX возвращает true, если ключ был установлен этим вызовом
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
	// DeleteIfValue удаляет ключ, только если его значение равно value (снятие своей блокировки)
	DeleteIfValue(key, value string) (bool, error)
	// DeleteByPattern удаляет все ключи, подходящие под glob-шаблон, и возвращает их количество
	DeleteByPattern(pattern string) (int64, error)
}
