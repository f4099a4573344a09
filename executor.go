package entitycache

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/goforj/entitycache/logger"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// ErrExecutorClosed is returned by Submit after Close.
var ErrExecutorClosed = errors.New("entitycache: executor closed")

// Executor runs refresh units away from the caller's goroutine.
type Executor interface {
	// Submit schedules fn. It never runs fn inline and never blocks on earlier units.
	Submit(name string, fn func(ctx context.Context)) error
	// Wait blocks until every submitted unit has finished.
	Wait()
	// Close rejects new units and waits for the submitted ones.
	Close()
}

// GoExecutor runs every unit on its own goroutine with panic recovery.
type GoExecutor struct {
	log logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewGoExecutor creates a GoExecutor. A nil logger discards panic reports.
func NewGoExecutor(log logger.Logger) *GoExecutor {
	if log == nil {
		log = logger.NewNop()
	}
	return &GoExecutor{log: log}
}

// Submit implements Executor.
func (e *GoExecutor) Submit(name string, fn func(ctx context.Context)) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		runUnit(e.log, name, fn)
	}()
	return nil
}

// Wait implements Executor.
func (e *GoExecutor) Wait() { e.wg.Wait() }

// Close implements Executor.
func (e *GoExecutor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}

type queuedUnit struct {
	name string
	fn   func(ctx context.Context)
}

// QueueExecutor feeds a fixed set of workers from an unbounded queue.
// With one worker every unit runs in submission order.
type QueueExecutor struct {
	log   logger.Logger
	queue *chanx.UnboundedChan[queuedUnit]

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	workers sync.WaitGroup
}

// NewQueueExecutor starts workers goroutines; values below one mean one.
func NewQueueExecutor(log logger.Logger, workers int) *QueueExecutor {
	if log == nil {
		log = logger.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	e := &QueueExecutor{
		log:   log,
		queue: chanx.NewUnboundedChan[queuedUnit](context.Background(), workers),
	}
	e.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go e.work()
	}
	return e
}

// Submit implements Executor.
func (e *QueueExecutor) Submit(name string, fn func(ctx context.Context)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	e.pending.Add(1)
	e.queue.In <- queuedUnit{name: name, fn: fn}
	return nil
}

// Len reports how many units are queued but not yet started.
func (e *QueueExecutor) Len() int { return e.queue.Len() }

// Wait implements Executor.
func (e *QueueExecutor) Wait() { e.pending.Wait() }

// Close implements Executor. Queued units still run before Close returns.
func (e *QueueExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.workers.Wait()
		return
	}
	e.closed = true
	close(e.queue.In)
	e.mu.Unlock()
	e.workers.Wait()
}

func (e *QueueExecutor) work() {
	defer e.workers.Done()
	for unit := range e.queue.Out {
		runUnit(e.log, unit.name, unit.fn)
		e.pending.Done()
	}
}

// runUnit keeps a panicking unit from taking the process down.
func runUnit(log logger.Logger, name string, fn func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			}
			if name != "" {
				fields = append([]zap.Field{zap.String("unit", name)}, fields...)
			}
			log.Error("refresh unit panicked", fields...)
		}
	}()
	fn(context.Background())
}
