package websocket

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrUnknownSession возвращается для соединения, которого нет в реестре
var ErrUnknownSession = errors.New("unknown websocket session")

const (
	// DefaultCountdownFrom - первое значение отсчета
	DefaultCountdownFrom = 100

	// DefaultCountdownInterval - пауза между значениями
	DefaultCountdownInterval = time.Second
)

// Sender - получатель сообщений отсчета. *Client реализует этот интерфейс.
type Sender interface {
	ID() string
	Send(msg Message) bool
}

// RegistryConfig - параметры отсчета
type RegistryConfig struct {
	CountdownFrom int
	Interval      time.Duration
}

// DefaultRegistryConfig возвращает отсчет 100..1 раз в секунду
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		CountdownFrom: DefaultCountdownFrom,
		Interval:      DefaultCountdownInterval,
	}
}

// RegistryStats - счетчики реестра
type RegistryStats struct {
	Sessions   int   `json:"sessions"`
	Running    int   `json:"running"`
	Started    int64 `json:"countdowns_started"`
	Completed  int64 `json:"countdowns_completed"`
	Cancelled  int64 `json:"countdowns_cancelled"`
	TotalConns int64 `json:"total_connections"`
}

type session struct {
	sender Sender
	// stop и done заданы только пока идет отсчет
	stop chan struct{}
	done chan struct{}
}

// SessionRegistry хранит сессии по ID соединения и управляет их отсчетами.
// На соединение приходится не более одного активного отсчета.
type SessionRegistry struct {
	cfg RegistryConfig

	mu       sync.Mutex
	sessions map[string]*session

	started    atomic.Int64
	completed  atomic.Int64
	cancelled  atomic.Int64
	totalConns atomic.Int64
}

// NewSessionRegistry создает реестр. Нулевые значения конфигурации заменяются значениями по умолчанию.
func NewSessionRegistry(cfg RegistryConfig) *SessionRegistry {
	if cfg.CountdownFrom <= 0 {
		cfg.CountdownFrom = DefaultCountdownFrom
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCountdownInterval
	}
	return &SessionRegistry{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// Register добавляет соединение в реестр
func (r *SessionRegistry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID()]; exists {
		return
	}
	r.sessions[s.ID()] = &session{sender: s}
	r.totalConns.Add(1)
}

// Start запускает отсчет для соединения. Уже идущий отсчет перезапускается.
func (r *SessionRegistry) Start(id string) error {
	r.Stop(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	if sess.done != nil {
		// Параллельный Start успел запустить свой отсчет
		return nil
	}
	sess.stop = make(chan struct{})
	sess.done = make(chan struct{})
	r.started.Add(1)
	go r.countdown(id, sess.sender, sess.stop, sess.done)
	return nil
}

// Stop останавливает отсчет соединения и дожидается завершения горутины.
// Для соединения без отсчета ничего не делает.
func (r *SessionRegistry) Stop(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok || sess.done == nil {
		r.mu.Unlock()
		return
	}
	stop, done := sess.stop, sess.done
	sess.stop, sess.done = nil, nil
	r.mu.Unlock()

	close(stop)
	<-done
	r.cancelled.Add(1)
}

// Remove останавливает отсчет и удаляет соединение из реестра
func (r *SessionRegistry) Remove(id string) {
	r.Stop(id)

	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Close останавливает все отсчеты и очищает реестр
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Remove(id)
	}
	log.Printf("[SessionRegistry] Закрыт, удалено сессий: %d", len(ids))
}

// Running сообщает, идет ли отсчет для соединения
func (r *SessionRegistry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return ok && sess.done != nil
}

// Stats возвращает снимок счетчиков
func (r *SessionRegistry) Stats() RegistryStats {
	r.mu.Lock()
	stats := RegistryStats{Sessions: len(r.sessions)}
	for _, sess := range r.sessions {
		if sess.done != nil {
			stats.Running++
		}
	}
	r.mu.Unlock()

	stats.Started = r.started.Load()
	stats.Completed = r.completed.Load()
	stats.Cancelled = r.cancelled.Load()
	stats.TotalConns = r.totalConns.Load()
	return stats
}

func (r *SessionRegistry) countdown(id string, s Sender, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for n := r.cfg.CountdownFrom; n >= 1; n-- {
		select {
		case <-stop:
			return
		default:
		}

		if !s.Send(Message{Type: TypeCountdown, Count: n}) {
			log.Printf("[SessionRegistry] Отсчет для %s прерван: отправка не удалась", id)
			r.finish(id, done)
			return
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}

	r.completed.Add(1)
	r.finish(id, done)
}

// finish сбрасывает состояние отсчета, если сессия все еще указывает на этот запуск
func (r *SessionRegistry) finish(id string, done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok && sess.done == done {
		sess.stop, sess.done = nil, nil
	}
}
