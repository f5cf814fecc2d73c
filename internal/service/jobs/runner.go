package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lekenzi/QuizNexus/internal/domain/repository"
)

var (
	// ErrUnknownJob - задача с таким именем не зарегистрирована
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning - задача уже выполняется в этом или другом экземпляре
	ErrJobRunning = errors.New("job is already running")
)

// Job - периодическая задача. now передается снаружи, чтобы тики можно было воспроизводить.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

type jobEntry struct {
	job      Job
	interval time.Duration
	due      func(now time.Time) bool // nil - запускать на каждом тике
}

// Runner запускает задачи по таймеру, по одной горутине на задачу.
// Одновременно выполняется не более одного экземпляра задачи: внутри процесса
// это обеспечивает флаг running, между процессами - блокировка SETNX в Redis.
type Runner struct {
	cacheRepo  repository.CacheRepository
	lockTTL    time.Duration
	instanceID string
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*jobEntry
	running map[string]bool
	wg      sync.WaitGroup
}

// NewRunner создает Runner. cacheRepo == nil - межпроцессная блокировка отключена.
func NewRunner(cacheRepo repository.CacheRepository, lockTTL time.Duration) *Runner {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Runner{
		cacheRepo:  cacheRepo,
		lockTTL:    lockTTL,
		instanceID: uuid.NewString(),
		now:        time.Now,
		entries:    make(map[string]*jobEntry),
		running:    make(map[string]bool),
	}
}

// Register добавляет задачу. interval <= 0 - только ручной запуск через RunNow.
func (r *Runner) Register(job Job, interval time.Duration, due func(now time.Time) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[job.Name()] = &jobEntry{job: job, interval: interval, due: due}
}

// Jobs возвращает имена зарегистрированных задач
func (r *Runner) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start запускает тикеры всех периодических задач. Остановка - отменой ctx, затем Wait.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.interval <= 0 {
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, e)
	}
}

// Wait дожидается завершения всех горутин задач
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, e *jobEntry) {
	defer r.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	log.Printf("[Runner] Задача %s запущена с интервалом %s", e.job.Name(), e.interval)
	for {
		select {
		case <-ticker.C:
			if err := r.execute(ctx, e, false); err != nil && !errors.Is(err, ErrJobRunning) {
				log.Printf("[Runner] Задача %s завершилась с ошибкой: %v", e.job.Name(), err)
			}
		case <-ctx.Done():
			log.Printf("[Runner] Задача %s остановлена", e.job.Name())
			return
		}
	}
}

// RunNow выполняет задачу немедленно, игнорируя расписание
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	r.wg.Add(1)
	defer r.wg.Done()
	return r.execute(ctx, e, true)
}

func (r *Runner) execute(ctx context.Context, e *jobEntry, force bool) error {
	name := e.job.Name()
	now := r.now()
	if !force && e.due != nil && !e.due(now) {
		return nil
	}

	r.mu.Lock()
	if r.running[name] {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	r.running[name] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, name)
		r.mu.Unlock()
	}()

	release, err := r.lock(name)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	err = e.job.Run(ctx, now)
	if elapsed := time.Since(start); elapsed > time.Second {
		log.Printf("[Runner] Задача %s выполнялась %s", name, elapsed.Round(time.Millisecond))
	}
	return err
}

// lock берет межпроцессную блокировку. Недоступный Redis не останавливает задачу.
func (r *Runner) lock(name string) (func(), error) {
	noop := func() {}
	if r.cacheRepo == nil {
		return noop, nil
	}

	key := "lock:job:" + name
	acquired, err := r.cacheRepo.SetNX(key, r.instanceID, r.lockTTL)
	if err != nil {
		log.Printf("[Runner] Redis недоступен, задача %s выполняется без блокировки: %v", name, err)
		return noop, nil
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s (locked by another instance)", ErrJobRunning, name)
	}
	return func() {
		// Блокировка могла истечь и перейти к другому экземпляру: снимаем только свою
		released, err := r.cacheRepo.DeleteIfValue(key, r.instanceID)
		if err != nil {
			log.Printf("[Runner] Не удалось снять блокировку %s: %v", key, err)
			return
		}
		if !released {
			log.Printf("[Runner] Блокировка %s истекла до завершения задачи и не снята", key)
		}
	}, nil
}
