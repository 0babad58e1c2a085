package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// poolTask is one unit of work queued on the pool. Exactly one of run and
// drop is invoked for every submitted task.
type poolTask struct {
	run  func()
	drop func()
}

// workerPool is a bounded pool of worker goroutines for the isolated lane.
// The lane creates it lazily when it has work and tears it down on every
// exit path.
type workerPool struct {
	size   int
	tasks  chan poolTask
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// newWorkerPool creates a pool of the given size. The queue is sized to the
// batch so submission never blocks.
func newWorkerPool(size, capacity int, logger zerolog.Logger) *workerPool {
	return &workerPool{
		size:   size,
		tasks:  make(chan poolTask, capacity),
		logger: logger,
	}
}

// start launches the workers. Each worker drains the queue until it is
// closed; a task taken after cancellation is dropped instead of run.
func (p *workerPool) start(ctx context.Context) {
	for w := 0; w < p.size; w++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				if ctx.Err() != nil {
					task.drop()
					continue
				}
				task.run()
			}
		}()
	}

	p.logger.Debug().Int("workers", p.size).Msg("Worker pool started")
}

// submit queues one unit of work.
func (p *workerPool) submit(t poolTask) {
	p.tasks <- t
}

// seal closes the queue; workers exit once it is drained.
func (p *workerPool) seal() {
	close(p.tasks)
}

// wait blocks until every worker has exited.
func (p *workerPool) wait() {
	p.wg.Wait()
	p.logger.Debug().Msg("Worker pool stopped")
}
