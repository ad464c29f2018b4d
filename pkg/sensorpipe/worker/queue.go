// Package worker implements the concurrency model of §5: a single producer
// task re-enqueuing the sensor list onto a shared bounded FIFO at a fixed
// interval, and a small fixed pool of worker goroutines each popping one
// sensor (blocking with a timeout), running it through the Sensor
// Pipeline, and sleeping before the next pop.
//
// Grounded on the teacher's pkg/snmpcollector/poller/worker.go (worker
// loop) and pkg/snmpcollector/scheduler/scheduler.go (timed re-fire loop),
// collapsed from a fan-out job queue with per-device intervals to the
// simpler "all sensors share one sleep_main tick" model spec.md §5
// describes.
package worker

import (
	"context"
	"time"

	"github.com/vpbank/sensorpipe/models"
)

// Queue is a bounded MPMC FIFO of sensor descriptors with a timed pop,
// matching §5's "Sensor queue: MPMC bounded FIFO with timed pop."
type Queue struct {
	ch chan models.SensorDescriptor
}

// NewQueue creates a Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan models.SensorDescriptor, capacity)}
}

// TryPush enqueues s without blocking, returning false if the queue is
// full. The producer uses this so a slow worker pool never stalls the
// scheduler's own timing loop.
func (q *Queue) TryPush(s models.SensorDescriptor) bool {
	select {
	case q.ch <- s:
		return true
	default:
		return false
	}
}

// Pop blocks until a sensor is available, ctx is cancelled, or timeout
// elapses — the "queue pop (idle wait)" suspension point of §5.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (models.SensorDescriptor, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s := <-q.ch:
		return s, true
	case <-ctx.Done():
		return models.SensorDescriptor{}, false
	case <-timer.C:
		return models.SensorDescriptor{}, false
	}
}

// Len reports the number of sensors currently queued, for monitoring.
func (q *Queue) Len() int { return len(q.ch) }
