package main

import (
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Task is a unit of work for the pool.
type Task func()

// maxQueueSize bounds how many tasks may wait in the pool's queue.
const maxQueueSize = 5000

// Pool runs tasks on a fixed set of worker goroutines.
//
// Tasks here are long lived client sessions, so the pool size effectively
// caps how many sessions run at once. Enqueueing is non-blocking: callers
// get told when the pool cannot take more work and decide what to do.
type Pool struct {
	logger zerolog.Logger

	mutex   sync.Mutex
	cond    *sync.Cond
	tasks   []Task
	running bool
	active  int

	wg sync.WaitGroup
}

// NewPool creates a pool with the given number of workers and starts them.
func NewPool(workers int, logger zerolog.Logger) (*Pool, error) {
	if workers <= 0 {
		return nil, errors.New("worker count must be greater than 0")
	}

	p := &Pool{
		logger:  logger,
		running: true,
	}
	p.cond = sync.NewCond(&p.mutex)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}

	return p, nil
}

// workerLoop blocks until a task is available or the pool is stopping. A
// stopping pool still drains whatever is queued before the worker exits.
func (p *Pool) workerLoop() {
	defer p.wg.Done()

	for {
		p.mutex.Lock()
		for p.running && len(p.tasks) == 0 {
			p.cond.Wait()
		}

		if !p.running && len(p.tasks) == 0 {
			p.mutex.Unlock()
			return
		}

		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.active++
		poolQueueDepth.Set(float64(len(p.tasks)))
		poolActiveTasks.Set(float64(p.active))
		p.mutex.Unlock()

		p.run(task)

		p.mutex.Lock()
		p.active--
		poolActiveTasks.Set(float64(p.active))
		p.mutex.Unlock()
	}
}

// run executes a single task. A panicking task must not take its worker
// down, so we recover and log.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("recovered panic in pool task")
		}
	}()

	task()
}

// Enqueue queues a task and wakes a worker. It reports false if the pool is
// stopping or the queue is full.
func (p *Pool) Enqueue(task Task) bool {
	p.mutex.Lock()
	if !p.running || len(p.tasks) >= maxQueueSize {
		p.mutex.Unlock()
		return false
	}
	p.tasks = append(p.tasks, task)
	poolQueueDepth.Set(float64(len(p.tasks)))
	p.mutex.Unlock()

	p.cond.Signal()
	return true
}

// Stop tells the workers to finish and waits for them. Queued tasks still
// run. Safe to call more than once.
func (p *Pool) Stop() {
	p.mutex.Lock()
	p.running = false
	p.mutex.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// QueuedTasks reports how many tasks are waiting to run.
func (p *Pool) QueuedTasks() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.tasks)
}

// ActiveTasks reports how many tasks are currently executing.
func (p *Pool) ActiveTasks() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.active
}
