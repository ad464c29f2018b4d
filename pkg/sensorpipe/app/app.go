// Package app wires the collector's stages together and manages their
// lifecycle: load configuration, build the SNMP session pool and sinks,
// build the worker pool and scheduler, run until cancelled, then drain.
//
// Grounded on the teacher's pkg/snmpcollector/app/app.go Config/New/
// Start/Stop shape; collapsed from a channel pipeline (scheduler →
// worker pool → decoder → producer → formatter → transport) to this
// spec's simpler scheduler → worker pool → Sensor Pipeline model, since
// §5 describes no inter-stage channels beyond the single sensor queue.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vpbank/sensorpipe/evaluator"
	"github.com/vpbank/sensorpipe/pkg/sensorpipe/config"
	"github.com/vpbank/sensorpipe/pkg/sensorpipe/pipeline"
	"github.com/vpbank/sensorpipe/pkg/sensorpipe/worker"
	"github.com/vpbank/sensorpipe/probe"
	"github.com/vpbank/sensorpipe/sink"
	"github.com/vpbank/sensorpipe/store"
)

// App orchestrates the full collector process. Create one with New, start
// it with Start, and stop it with Stop.
type App struct {
	configPath string
	logger     *slog.Logger

	doc *config.Document

	sessions *probe.SessionPool
	bus      *sink.BusSink
	http     *sink.HTTPSink

	pipe  *pipeline.Pipeline
	queue *worker.Queue
	sched *worker.Scheduler
	pool  *worker.Pool

	cancel context.CancelFunc
}

// New constructs an App that will load its configuration from configPath
// when Start is called.
func New(configPath string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &App{configPath: configPath, logger: logger}
}

// Start loads configuration, builds every pipeline component, and
// launches the scheduler and worker pool. It returns an error if
// configuration loading fails; sink construction failures are logged and
// that sink is left disabled rather than aborting startup (§6 "sinks are
// independently optional").
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("app: loading configuration", "path", a.configPath)
	doc, err := config.Load(a.configPath, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.doc = doc
	a.logger.Info("app: configuration loaded", "sensors", len(doc.Sensors), "threads", doc.Conf.Threads)

	a.sessions = probe.NewSessionPool(probe.SessionPoolOptions{})

	if doc.Conf.BusEnabled() {
		bus, err := sink.NewBusSink(sink.BusConfig{
			Brokers:       strings.Split(doc.Conf.KafkaBroker, ","),
			Topic:         doc.Conf.KafkaTopic,
			Timeout:       doc.Conf.KafkaTimeoutDuration(),
			MaxKafkaFails: doc.Conf.MaxKafkaFails,
			RdKafka:       doc.Conf.RdKafka,
		}, a.logger)
		if err != nil {
			a.logger.Error("app: kafka sink disabled", "error", err.Error())
		} else {
			a.bus = bus
		}
	}

	if doc.Conf.HTTPEnabled() {
		httpSink, err := sink.NewHTTPSink(sink.HTTPConfig{
			Endpoint:            doc.Conf.HTTPEndpoint,
			Timeout:             doc.Conf.HTTPTimeoutDuration(),
			ConnTimeout:         doc.Conf.HTTPConnTimeoutDuration(),
			MaxTotalConnections: doc.Conf.HTTPMaxTotalConnections,
			Verbose:             doc.Conf.HTTPVerbose,
			MaxQueued:           doc.Conf.RBHTTPMaxMessages,
		}, a.logger)
		if err != nil {
			a.logger.Error("app: http sink disabled", "error", err.Error())
		} else {
			a.http = httpSink
		}
	}

	var busSink, httpSink sink.Sink
	if a.bus != nil {
		busSink = a.bus
	}
	if a.http != nil {
		httpSink = a.http
	}

	ev := evaluator.New(probe.NewSensorProbe(a.logger), a.logger)
	a.pipe = pipeline.New(pipeline.Options{
		Evaluator:    ev,
		Sessions:     a.sessions,
		Store:        store.New(),
		Bus:          busSink,
		HTTP:         httpSink,
		ProbeTimeout: doc.Conf.ProbeTimeout(),
		Logger:       a.logger,
	})

	a.queue = worker.NewQueue(len(doc.Sensors) * 2)
	a.sched = worker.New(doc.Sensors, a.queue, doc.Conf.SleepMainInterval(), a.logger)
	a.pool = worker.NewPool(doc.Conf.Threads, a.queue, time.Second, doc.Conf.SleepWorkerInterval(), a.pipe.Run, a.logger)

	pipeCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.pool.Start(pipeCtx)
	go a.sched.Start(pipeCtx)

	a.logger.Info("app: pipeline running", "threads", doc.Conf.Threads, "sleep_main", doc.Conf.SleepMain)
	return nil
}

// Stop performs a graceful shutdown: cancel the scheduler and worker
// pool, wait for in-flight ticks to finish, then poll the bus sink's
// outbound queue once a second, giving up once its queue length fails to
// shrink across MaxKafkaFails consecutive polls (§5, §9 "Graceful drain" —
// the dead-broker heuristic). The HTTP sink is not polled; its Close waits
// until its queue has been emptied.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.pool != nil {
		a.pool.Stop()
	}

	if a.bus != nil {
		a.drainBus()
		if err := a.bus.Close(); err != nil {
			a.logger.Error("app: bus sink close error", "error", err.Error())
		}
	}
	if a.http != nil {
		if err := a.http.Close(); err != nil {
			a.logger.Error("app: http sink close error", "error", err.Error())
		}
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Error("app: session pool close error", "error", err.Error())
		}
	}

	a.logger.Info("app: shutdown complete")
}

// drainBus polls the bus sink's outbound queue length once a second,
// stopping as soon as it empties or the consecutive-failure-to-shrink
// count reaches MaxKafkaFails (DeadBroker).
func (a *App) drainBus() {
	last := a.bus.QueueLength()
	fails := 0
	for last > 0 {
		if a.bus.DeadBroker() {
			a.logger.Warn("app: kafka broker appears dead during drain, giving up", "queued", last)
			return
		}
		time.Sleep(time.Second)
		cur := a.bus.QueueLength()
		if cur >= last {
			fails++
			if fails >= a.doc.Conf.MaxKafkaFails {
				a.logger.Warn("app: kafka queue not draining, giving up", "queued", cur)
				return
			}
		} else {
			fails = 0
		}
		last = cur
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
