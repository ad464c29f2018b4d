package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vpbank/sensorpipe/models"
)

// RunFunc runs one sensor tick to completion. Implementations (the Sensor
// Pipeline) never return an error past this boundary (§7): every failure
// is logged and absorbed internally.
type RunFunc func(ctx context.Context, sensor models.SensorDescriptor)

// Pool is the fixed worker pool of §5: each worker loops — pop a sensor
// (blocking with timeout), run it, sleep sleep_worker, repeat — until ctx
// is cancelled. Grounded on the teacher's
// pkg/snmpcollector/poller/worker.go worker loop, collapsed from a
// job-channel fan-out (N workers pulling from one jobs channel shared
// process-wide) to N workers each popping directly from the shared Queue,
// since this spec has no separate decode/produce/format pipeline stages
// to fan into — one worker runs the whole Sensor Pipeline per tick.
type Pool struct {
	n           int
	queue       *Queue
	popTimeout  time.Duration
	sleepWorker time.Duration
	run         RunFunc
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewPool creates a Pool of n workers. n defaults to 10 (§6 `threads`
// default) when non-positive. popTimeout bounds how long a worker blocks
// on an empty queue before re-checking ctx.
func NewPool(n int, queue *Queue, popTimeout, sleepWorker time.Duration, run RunFunc, logger *slog.Logger) *Pool {
	if n <= 0 {
		n = 10
	}
	if popTimeout <= 0 {
		popTimeout = time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Pool{
		n:           n,
		queue:       queue,
		popTimeout:  popTimeout,
		sleepWorker: sleepWorker,
		run:         run,
		logger:      logger,
	}
}

// Start launches the n worker goroutines. They run until ctx is
// cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

// Stop waits for every worker goroutine to exit. The caller must cancel
// the context passed to Start first.
func (p *Pool) Stop() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sensor, ok := p.queue.Pop(ctx, p.popTimeout)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue // timed pop with nothing queued: loop and re-check ctx
		}

		p.run(ctx, sensor)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.sleepWorker):
		}
	}
}
