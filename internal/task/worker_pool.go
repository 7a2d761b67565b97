package task

import (
	"context"
	"log/slog"
	"sync"
)

// ProcessFunc handles one task on behalf of a worker.
type ProcessFunc func(ctx context.Context, task Task, workerID int)

// WorkerPool runs a fixed number of goroutines that drain a queue. Each
// worker handles one job at a time; jobs that release themselves are sent
// back through the runner, not the pool.
type WorkerPool struct {
	queue   TaskQueueReader
	size    int
	process ProcessFunc
	logger  *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// WorkerPoolConfig sizes the pool. A WorkerCount below one means one worker.
type WorkerPoolConfig struct {
	WorkerCount int
}

// DefaultWorkerPoolConfig matches the default task.worker_count setting.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{WorkerCount: 2}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(taskQueue TaskQueueReader, config WorkerPoolConfig, process ProcessFunc, logger *slog.Logger) *WorkerPool {
	size := config.WorkerCount
	if size < 1 {
		logger.Warn("worker count below one, starting a single worker", "worker_count", config.WorkerCount)
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:   taskQueue,
		size:    size,
		process: process,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool", "worker_count", p.size)
	p.wg.Add(p.size)
	for id := range p.size {
		go p.worker(id)
	}
}

// Stop signals every worker to exit and waits for in-flight tasks
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	log := p.logger.With("worker_id", id)
	jobs := p.queue.GetChannel()

	for {
		select {
		case <-p.ctx.Done():
			log.Debug("worker stopped")
			return
		case job, ok := <-jobs:
			if !ok {
				log.Debug("queue drained, worker exiting")
				return
			}
			p.process(p.ctx, job, id)
		}
	}
}
