// Package pipeline implements the Sensor Pipeline (§4.F): for one sensor
// tick it acquires an SNMP session, runs every configured monitor entry
// through the Monitor Evaluator in order over a fresh Variable Table and
// taint set, pushes changed measurements through the Measurement Store,
// and fans surviving measurements out to the configured sinks.
//
// Grounded on the teacher's pkg/snmpcollector/app.go stage orchestration
// (load → build → run, one failure logged and absorbed per item rather
// than aborting the stage) collapsed from a multi-channel pipeline to a
// single synchronous per-tick call, since spec.md §5 has no inter-stage
// channels — one worker runs a sensor's entire pipeline to completion
// before sleeping.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/sensorpipe/evaluator"
	"github.com/vpbank/sensorpipe/models"
	"github.com/vpbank/sensorpipe/probe"
	"github.com/vpbank/sensorpipe/sink"
	"github.com/vpbank/sensorpipe/store"
	"github.com/vpbank/sensorpipe/vartable"
)

// Pipeline owns everything one sensor tick needs besides the sensor
// descriptor itself: the evaluator, session pool, measurement store, and
// the sinks measurements fan out to.
type Pipeline struct {
	evaluator    *evaluator.Evaluator
	sessions     *probe.SessionPool
	store        *store.Store
	bus          sink.Sink
	http         sink.Sink
	probeTimeout time.Duration
	logger       *slog.Logger
}

// Options configures a Pipeline. Bus and HTTP may each be nil when that
// sink is disabled (§6 "Sinks are independently optional").
type Options struct {
	Evaluator    *evaluator.Evaluator
	Sessions     *probe.SessionPool
	Store        *store.Store
	Bus          sink.Sink
	HTTP         sink.Sink
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// New constructs a Pipeline from Options.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Pipeline{
		evaluator:    opts.Evaluator,
		sessions:     opts.Sessions,
		store:        opts.Store,
		bus:          opts.Bus,
		http:         opts.HTTP,
		probeTimeout: opts.ProbeTimeout,
		logger:       logger,
	}
}

// Run executes one full tick for sensor: validation, SNMP session
// acquisition, monitor evaluation in declared order, store filtering, and
// sink fan-out. It never returns an error — every failure mode is logged
// and absorbed, matching §4.F/§7's "a single sensor's failure never
// aborts the worker pool."
func (p *Pipeline) Run(ctx context.Context, sensor models.SensorDescriptor) {
	if err := sensor.Validate(); err != nil {
		p.logger.Error("pipeline: sensor rejected", "sensor", sensor.SensorName, "error", err.Error())
		return
	}

	needsSNMP := false
	for _, m := range sensor.Monitors {
		if m.IsProbeForm() && m.OID != "" {
			needsSNMP = true
			break
		}
	}

	var session *gosnmp.GoSNMP
	if needsSNMP {
		timeout := p.probeTimeout
		if sensor.Timeout > 0 {
			timeout = time.Duration(sensor.Timeout) * time.Second
		}
		sess, err := p.sessions.Get(ctx, sensor, timeout)
		if err != nil {
			// §4.D "Aborted state": a session failure aborts the whole
			// tick rather than limping through with no connectivity.
			p.logger.Error("pipeline: session acquisition failed, aborting tick", "sensor", sensor.SensorName, "error", fmt.Errorf("pipeline: %w", err).Error())
			return
		}
		session = sess
		defer p.sessions.Put(sensor.SensorName, session)
	}

	table := vartable.New()
	taint := evaluator.NewTaint()

	for _, entry := range sensor.Monitors {
		measurements := p.evaluator.Evaluate(ctx, sensor, entry, table, taint, session)
		for _, meas := range measurements {
			changed, ok := p.store.Upsert(meas)
			if !ok {
				continue
			}
			p.publish(changed, entry)
		}
	}
}

// publish fans a changed measurement out to whichever sinks this monitor
// entry is configured to reach (§4.G). A send failure on one sink never
// blocks or skips the other.
func (p *Pipeline) publish(m models.Measurement, entry models.MonitorEntry) {
	if p.bus != nil && entry.PublishesBus() {
		if err := p.bus.Send(m); err != nil {
			p.logger.Warn("pipeline: bus sink send failed", "sensor", m.SensorName, "monitor", m.Name, "error", err.Error())
		}
	}
	if p.http != nil && entry.PublishesHTTP() {
		if err := p.http.Send(m); err != nil {
			p.logger.Warn("pipeline: http sink send failed", "sensor", m.SensorName, "monitor", m.Name, "error", err.Error())
		}
	}
}

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
