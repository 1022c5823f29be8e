package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/pkg/logger"
)

var _ gatepass.AutoCreateQueue = (*WorkerPool)(nil)

// MaxAttempts intento inicial más un reintento.
const MaxAttempts = 2

const keyPrefix = "gatepass:autocreate:"

var (
	ErrQueueFull   = errors.New("cola de creación automática llena")
	ErrQueueClosed = errors.New("cola de creación automática cerrada")
)

// Handler procesa y escala tareas. Lo implementa gatepass.UseCase.
type Handler interface {
	ProcessAutoCreate(ctx context.Context, task *entity.AutoCreateTask, attempt int) error
	EscalateAutoCreate(ctx context.Context, task *entity.AutoCreateTask, attempts int, cause error)
}

// Config parámetros del pool.
type Config struct {
	Workers    int
	Buffer     int
	RetryDelay time.Duration
	LockTTL    time.Duration
	DoneTTL    time.Duration
}

// WorkerPool cola en proceso: canal con buffer y N workers. Con Redis configurado cada tarea se
// serializa entre instancias con un lock por clave de idempotencia y se deja una marca al terminar.
type WorkerPool struct {
	handler Handler
	rdb     *redis.Client
	locker  *redislock.Client
	cfg     Config
	log     *logger.Logger

	mu     sync.RWMutex
	tasks  chan *entity.AutoCreateTask
	closed bool
	wg     sync.WaitGroup
}

// NewWorkerPool construye el pool. rdb puede ser nil (una sola instancia).
func NewWorkerPool(handler Handler, rdb *redis.Client, cfg Config, log *logger.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.DoneTTL <= 0 {
		cfg.DoneTTL = 24 * time.Hour
	}
	p := &WorkerPool{
		handler: handler,
		rdb:     rdb,
		cfg:     cfg,
		log:     log.Named("autocreate-queue"),
		tasks:   make(chan *entity.AutoCreateTask, cfg.Buffer),
	}
	if rdb != nil {
		p.locker = redislock.New(rdb)
	}
	return p
}

// Start lanza los workers. Terminan cuando ctx se cancela o tras Stop.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					p.process(ctx, task)
				}
			}
		}()
	}
	p.log.Info().Int("workers", p.cfg.Workers).Int("buffer", p.cfg.Buffer).Msg("cola de creación automática iniciada")
}

// Enqueue no bloquea: si el buffer está lleno devuelve ErrQueueFull.
func (p *WorkerPool) Enqueue(_ context.Context, task *entity.AutoCreateTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cierra la cola y espera a que los workers vacíen el buffer o a que ctx expire.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) process(ctx context.Context, task *entity.AutoCreateTask) {
	key := task.Key()
	if p.alreadyDone(ctx, key) {
		p.log.Debug().Str("key", key).Msg("tarea ya procesada por otra instancia")
		return
	}
	if p.locker != nil {
		lock, err := p.locker.Obtain(ctx, keyPrefix+"lock:"+key, p.cfg.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			p.log.Debug().Str("key", key).Msg("tarea en curso en otra instancia")
			return
		}
		if err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("no se pudo obtener el lock de redis, se procesa sin lock")
		} else {
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					p.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el lock")
				}
			}()
		}
	}

	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err = p.handler.ProcessAutoCreate(ctx, task, attempt); err == nil {
			p.markDone(ctx, key, task.ID)
			return
		}
		if attempt < MaxAttempts && !p.wait(ctx) {
			break
		}
	}
	if ctx.Err() != nil {
		// queda PENDING y se vuelve a encolar al arrancar
		p.log.Warn().Str("key", key).Msg("cola detenida con la tarea sin terminar")
		return
	}
	p.handler.EscalateAutoCreate(ctx, task, MaxAttempts, err)
}

// wait espera RetryDelay; false si el contexto se canceló.
func (p *WorkerPool) wait(ctx context.Context) bool {
	if p.cfg.RetryDelay == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(p.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *WorkerPool) alreadyDone(ctx context.Context, key string) bool {
	if p.rdb == nil {
		return false
	}
	n, err := p.rdb.Exists(ctx, keyPrefix+"done:"+key).Result()
	if err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("no se pudo consultar la marca de tarea")
		return false
	}
	return n > 0
}

func (p *WorkerPool) markDone(ctx context.Context, key, taskID string) {
	if p.rdb == nil {
		return
	}
	if err := p.rdb.Set(ctx, keyPrefix+"done:"+key, taskID, p.cfg.DoneTTL).Err(); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("no se pudo guardar la marca de tarea")
	}
}
