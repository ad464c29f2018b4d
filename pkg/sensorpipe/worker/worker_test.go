package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vpbank/sensorpipe/models"
	"github.com/vpbank/sensorpipe/pkg/sensorpipe/worker"
)

func sensors(n int) []models.SensorDescriptor {
	out := make([]models.SensorDescriptor, n)
	for i := range out {
		out[i] = models.SensorDescriptor{SensorName: "s"}
	}
	return out
}

func TestQueue_TryPushAndPop(t *testing.T) {
	q := worker.NewQueue(1)
	if !q.TryPush(models.SensorDescriptor{SensorName: "a"}) {
		t.Fatal("TryPush on empty queue should succeed")
	}
	if q.TryPush(models.SensorDescriptor{SensorName: "b"}) {
		t.Fatal("TryPush on full queue should fail")
	}

	s, ok := q.Pop(context.Background(), time.Second)
	if !ok || s.SensorName != "a" {
		t.Fatalf("Pop = %+v, %v, want a, true", s, ok)
	}
}

func TestQueue_PopTimesOutWhenEmpty(t *testing.T) {
	q := worker.NewQueue(1)
	_, ok := q.Pop(context.Background(), 10*time.Millisecond)
	if ok {
		t.Fatal("Pop on empty queue should time out")
	}
}

func TestScheduler_FiresImmediately(t *testing.T) {
	q := worker.NewQueue(10)
	sched := worker.New(sensors(2), q, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Start(ctx)

	time.Sleep(5 * time.Millisecond)
	if q.Len() != 2 {
		t.Fatalf("queue length after immediate fire = %d, want 2", q.Len())
	}

	cancel()
	sched.Stop()
}

func TestPool_RunsEverySensorPopped(t *testing.T) {
	q := worker.NewQueue(10)
	for _, s := range sensors(5) {
		q.TryPush(s)
	}

	var count atomic.Int64
	var mu sync.Mutex
	seen := map[string]int{}

	run := func(_ context.Context, s models.SensorDescriptor) {
		count.Add(1)
		mu.Lock()
		seen[s.SensorName]++
		mu.Unlock()
	}

	pool := worker.NewPool(3, q, 20*time.Millisecond, time.Millisecond, run, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for count.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	pool.Stop()

	if got := count.Load(); got != 5 {
		t.Fatalf("run invocations = %d, want 5", got)
	}
}
