package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vpbank/sensorpipe/models"
)

// Scheduler is the single producer task that re-enqueues the entire sensor
// list onto a Queue at a fixed sleep_main interval (§5). Unlike the
// teacher's per-device next-fire scheduler, every sensor here shares one
// interval — spec.md §5 describes no per-sensor scheduling, and
// reconfiguration is an explicit Non-goal (§1), so the sensor list is
// immutable for the Scheduler's lifetime.
type Scheduler struct {
	sensors  []models.SensorDescriptor
	queue    *Queue
	interval time.Duration
	logger   *slog.Logger

	done chan struct{}
}

// New creates a Scheduler. It does not start automatically — call Start.
func New(sensors []models.SensorDescriptor, queue *Queue, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scheduler{
		sensors:  sensors,
		queue:    queue,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start fires immediately, then every interval, enqueuing every sensor
// each time. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	s.fire()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire()
		}
	}
}

// Stop waits for the scheduling loop to exit. The caller must cancel the
// context passed to Start first.
func (s *Scheduler) Stop() {
	<-s.done
}

func (s *Scheduler) fire() {
	dropped := 0
	for _, sensor := range s.sensors {
		if !s.queue.TryPush(sensor) {
			dropped++
		}
	}
	s.logger.Debug("worker: scheduler fired", "sensors", len(s.sensors), "dropped", dropped)
	if dropped > 0 {
		s.logger.Warn("worker: sensor queue full, dropping sensors this cycle", "dropped", dropped)
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
