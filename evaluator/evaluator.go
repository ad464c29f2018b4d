// Package evaluator implements the Monitor Evaluator (spec §4.D): for a
// single monitor entry, it performs probing or expression evaluation,
// vector splitting/broadcasting, split-operator reduction, validity
// checks, and Variable Table insertion, producing zero or more
// Measurements and side effects on the table and taint set.
//
// Grounded on the original collector's process_novector_monitor /
// process_vector_monitor (control flow, nonzero/taint semantics) and the
// teacher's producer/metrics/poll.go instance-grouping idiom (adapted here
// for grouping vector elements instead of SNMP table rows).
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/sensorpipe/expr"
	"github.com/vpbank/sensorpipe/models"
	"github.com/vpbank/sensorpipe/probe"
	"github.com/vpbank/sensorpipe/vartable"
)

// Evaluator evaluates one MonitorEntry at a time against a sensor tick's
// scratch Variable Table and taint set.
type Evaluator struct {
	dispatcher probe.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs an Evaluator. now defaults to time.Now; tests may override
// it for deterministic timestamps.
func New(dispatcher probe.Dispatcher, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Evaluator{dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Evaluate runs one monitor entry to completion, returning the measurements
// it produces (possibly none) and mutating table/taint as a side effect.
func (e *Evaluator) Evaluate(ctx context.Context, sensor models.SensorDescriptor, m models.MonitorEntry, table *vartable.Table, taint *Taint, session *gosnmp.GoSNMP) []models.Measurement {
	if m.IsProbeForm() {
		return e.evaluateProbe(ctx, sensor, m, table, taint, session)
	}
	return e.evaluateOperation(sensor, m, table, taint)
}

// ─────────────────────────────────────────────────────────────────────────────
// Probe form (§4.D)
// ─────────────────────────────────────────────────────────────────────────────

func (e *Evaluator) evaluateProbe(ctx context.Context, sensor models.SensorDescriptor, m models.MonitorEntry, table *vartable.Table, taint *Taint, session *gosnmp.GoSNMP) []models.Measurement {
	raw, num, numOK := e.dispatcher.Probe(ctx, m.Probe(), session)

	// Step 2: empty raw emits nothing and does not taint.
	if raw == "" {
		return nil
	}

	if m.Split == "" {
		return e.evaluateScalarProbe(sensor, m, table, taint, num, numOK)
	}
	return e.evaluateVectorProbe(sensor, m, table, taint, raw)
}

func (e *Evaluator) evaluateScalarProbe(sensor models.SensorDescriptor, m models.MonitorEntry, table *vartable.Table, taint *Taint, num float64, numOK bool) []models.Measurement {
	if !numOK {
		e.logger.Warn("evaluator: probe result not numeric", "monitor", m.Name)
		return nil
	}
	if !table.Append(m.Name, num) {
		e.logger.Error("evaluator: duplicate variable name", "monitor", m.Name)
		return nil
	}
	if m.Nonzero && num == 0 {
		e.logger.Warn("evaluator: nonzero monitor returned 0, tainting", "monitor", m.Name)
		taint.Add(m.Name)
		return nil
	}
	return []models.Measurement{
		e.newMeasurement(sensor, m, e.now().Unix(), num, nil, probeTypeTag(m)),
	}
}

func (e *Evaluator) evaluateVectorProbe(sensor models.SensorDescriptor, m models.MonitorEntry, table *vartable.Table, taint *Taint, raw string) []models.Measurement {
	tokens := strings.Split(raw, m.Split) // keeps empties, per §4.D step 4
	var measurements []models.Measurement
	var sum float64
	count := 0
	lastTS := e.now().Unix()

	for i, tok := range tokens {
		ts := e.now().Unix()
		val := tok
		if m.TimestampGiven {
			parts := strings.SplitN(tok, ":", 2)
			if len(parts) != 2 {
				e.logger.Warn("evaluator: timestamp_given token missing ':'", "monitor", m.Name, "token", tok)
				continue
			}
			tsF, err := strconv.ParseFloat(parts[0], 64)
			if err != nil {
				e.logger.Warn("evaluator: bad timestamp token", "monitor", m.Name, "token", parts[0])
				continue
			}
			ts = int64(tsF)
			val = parts[1]
		}
		if val == "" {
			continue
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			e.logger.Warn("evaluator: unparsable vector element", "monitor", m.Name, "index", i, "value", val)
			continue
		}

		name := vartable.VectorName(m.Name, m.GroupID, i)
		if !table.Append(name, f) {
			e.logger.Error("evaluator: duplicate vector element name", "monitor", m.Name, "index", i)
			continue
		}

		instance := i
		meas := e.newMeasurement(sensor, m, ts, f, &instance, probeTypeTag(m))
		measurements = append(measurements, meas)

		sum += f
		count++
		lastTS = ts
	}

	if m.SplitOp != "" && count > 0 {
		var reduced float64
		switch m.SplitOp {
		case models.SplitOpSum:
			reduced = sum
		case models.SplitOpMean:
			reduced = sum / float64(count)
		}
		if expr.Finite(reduced) {
			if !table.Append(m.Name, reduced) {
				e.logger.Error("evaluator: duplicate reduced-scalar name", "monitor", m.Name)
			} else if m.Nonzero && reduced == 0 {
				e.logger.Warn("evaluator: nonzero monitor's reduced value is 0, tainting", "monitor", m.Name)
				taint.Add(m.Name)
			} else {
				measurements = append(measurements, e.newMeasurement(sensor, m, lastTS, reduced, nil, probeTypeTag(m)))
			}
		}
	}
	return measurements
}

// ─────────────────────────────────────────────────────────────────────────────
// Operation form (§4.D)
// ─────────────────────────────────────────────────────────────────────────────

func (e *Evaluator) evaluateOperation(sensor models.SensorDescriptor, m models.MonitorEntry, table *vartable.Table, taint *Taint) []models.Measurement {
	tokens := expr.Identifiers(m.Op)

	// Step 1: token-level taint check (see taint.go for why this differs
	// from the original's substring match).
	if taint.AnyTainted(tokens) {
		e.logger.Warn("evaluator: operation references tainted variable, skipping", "monitor", m.Name)
		taint.Add(m.Name)
		return nil
	}

	parsed, err := expr.Parse(m.Op)
	if err != nil {
		e.logger.Error("evaluator: expression parse error", "monitor", m.Name, "error", err.Error())
		taint.Add(m.Name)
		return nil
	}

	// Step 2: bind every variable to its vartable location, tracking the
	// common vector width.
	width := 1
	starts := make(map[string]int, len(parsed.Vars()))
	widths := make(map[string]int, len(parsed.Vars()))
	vectorWidthSeen := -1
	for _, ref := range parsed.Vars() {
		start, w, ok := table.FindVector(ref.Name)
		if !ok {
			e.logger.Error("evaluator: unknown variable", "monitor", m.Name, "variable", ref.Name)
			taint.Add(m.Name)
			return nil
		}
		starts[ref.Name] = start
		widths[ref.Name] = w
		if w > 1 {
			if vectorWidthSeen == -1 {
				vectorWidthSeen = w
			} else if vectorWidthSeen != w {
				e.logger.Error("evaluator: dimension mismatch", "monitor", m.Name)
				taint.Add(m.Name)
				return nil
			}
		}
	}
	if vectorWidthSeen > 1 {
		width = vectorWidthSeen
	}

	if width == 1 {
		for _, ref := range parsed.Vars() {
			ref.Index = starts[ref.Name]
		}
		val, err := parsed.Eval(table)
		if err != nil {
			e.logger.Error("evaluator: eval error", "monitor", m.Name, "error", err.Error())
			taint.Add(m.Name)
			return nil
		}
		if !e.validOperationResult(m, val) {
			taint.Add(m.Name)
			return nil
		}
		if !table.Append(m.Name, val) {
			e.logger.Error("evaluator: duplicate variable name", "monitor", m.Name)
			return nil
		}
		return []models.Measurement{e.newMeasurement(sensor, m, e.now().Unix(), val, nil, models.TypeOp)}
	}

	// Step 4: W>1 — evaluate once per vector position, rebinding only the
	// vector operands' indices; scalar operands keep a fixed index and so
	// broadcast across every position.
	var measurements []models.Measurement
	var sum float64
	count := 0
	anyInvalid := false
	for j := 0; j < width; j++ {
		for _, ref := range parsed.Vars() {
			if widths[ref.Name] > 1 {
				ref.Index = starts[ref.Name] + j
			} else {
				ref.Index = starts[ref.Name]
			}
		}
		val, err := parsed.Eval(table)
		if err != nil {
			e.logger.Error("evaluator: eval error", "monitor", m.Name, "index", j, "error", err.Error())
			anyInvalid = true
			continue
		}
		if !e.validOperationResult(m, val) {
			anyInvalid = true
			continue
		}
		name := vartable.VectorName(m.Name, m.GroupID, j)
		if !table.Append(name, val) {
			e.logger.Error("evaluator: duplicate vector element name", "monitor", m.Name, "index", j)
			continue
		}
		instance := j
		measurements = append(measurements, e.newMeasurement(sensor, m, e.now().Unix(), val, &instance, models.TypeOp))
		sum += val
		count++
	}
	if anyInvalid {
		taint.Add(m.Name)
	}

	// Step 5: reduction over the per-element results.
	if m.SplitOp != "" && count > 0 {
		var reduced float64
		switch m.SplitOp {
		case models.SplitOpSum:
			reduced = sum
		case models.SplitOpMean:
			reduced = sum / float64(count)
		}
		if e.validOperationResult(m, reduced) {
			if table.Append(m.Name, reduced) {
				measurements = append(measurements, e.newMeasurement(sensor, m, e.now().Unix(), reduced, nil, models.TypeOp))
			}
		} else {
			taint.Add(m.Name)
		}
	}
	return measurements
}

// validOperationResult applies step 6's validity filter: non-finite
// results, or a nonzero-flagged zero result, are invalid.
func (e *Evaluator) validOperationResult(m models.MonitorEntry, val float64) bool {
	if !expr.Finite(val) {
		e.logger.Error("evaluator: operation result not finite", "monitor", m.Name)
		return false
	}
	if m.Nonzero && val == 0 {
		e.logger.Warn("evaluator: nonzero operation returned 0, tainting", "monitor", m.Name)
		return false
	}
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Measurement construction
// ─────────────────────────────────────────────────────────────────────────────

func probeTypeTag(m models.MonitorEntry) models.TypeTag {
	if m.OID != "" {
		return models.TypeSNMP
	}
	return models.TypeSystem
}

func (e *Evaluator) newMeasurement(sensor models.SensorDescriptor, m models.MonitorEntry, ts int64, val float64, instance *int, tag models.TypeTag) models.Measurement {
	return models.Measurement{
		Timestamp:      ts,
		SensorName:     sensor.SensorName,
		SensorID:       sensor.SensorID,
		Name:           m.Name,
		SendName:       m.SendName(),
		Instance:       instance,
		InstanceValid:  instance != nil,
		InstancePrefix: m.InstancePrefix,
		Value:          val,
		StringValue:    formatValue(val, m.Integer),
		Unit:           m.Unit,
		GroupName:      m.GroupName,
		GroupID:        m.GroupID,
		TypeTag:        tag,
		Enrichment:     sensor.Enrichment,
		Integer:        m.Integer,
	}
}

// formatValue renders the wire "value_sent" text: an integer when the
// monitor entry is flagged integer, otherwise a fixed-decimal form —
// matching the original's "%lf" formatting for non-integer values.
func formatValue(v float64, integer bool) string {
	if integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%f", v)
}

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
