package evaluator_test

import (
	"context"
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/sensorpipe/evaluator"
	"github.com/vpbank/sensorpipe/models"
	"github.com/vpbank/sensorpipe/vartable"
)

// fakeDispatcher replays a canned (raw, parsed, ok) triple per monitor name,
// in call order, so scenarios can be scripted without a real probe.
type fakeDispatcher struct {
	byName map[string][]fakeResult
}

type fakeResult struct {
	raw    string
	parsed float64
	ok     bool
}

func (f *fakeDispatcher) Probe(_ context.Context, desc models.ProbeDescriptor, _ *gosnmp.GoSNMP) (string, float64, bool) {
	rs := f.byName[desc.Argument]
	if len(rs) == 0 {
		return "", 0, false
	}
	r := rs[0]
	f.byName[desc.Argument] = rs[1:]
	return r.raw, r.parsed, r.ok
}

func sensor() models.SensorDescriptor {
	return models.SensorDescriptor{SensorName: "s1", Peer: "10.0.0.1", Community: "public"}
}

// S1: scalar probe, normal value.
func TestScalarProbeEmitsSingleMeasurement(t *testing.T) {
	d := &fakeDispatcher{byName: map[string][]fakeResult{
		".1.3.6.1.2.1.1.3.0": {{raw: "100", parsed: 100, ok: true}},
	}}
	ev := evaluator.New(d, nil)
	table := vartable.New()
	taint := evaluator.NewTaint()
	m := models.MonitorEntry{Name: "uptime", OID: ".1.3.6.1.2.1.1.3.0"}

	out := ev.Evaluate(context.Background(), sensor(), m, table, taint, nil)

	if len(out) != 1 || out[0].Value != 100 {
		t.Fatalf("got %+v, want one measurement with value 100", out)
	}
	if v, ok := table.Get("uptime"); !ok || v != 100 {
		t.Fatalf("table should contain uptime=100, got %v %v", v, ok)
	}
}

// S4: nonzero probe returns 0, taints itself; a dependent operation is
// skipped and also tainted; nothing is emitted.
func TestNonzeroProbeZeroTaintsDependentOperation(t *testing.T) {
	d := &fakeDispatcher{byName: map[string][]fakeResult{
		".1.2.3": {{raw: "0", parsed: 0, ok: true}},
	}}
	ev := evaluator.New(d, nil)
	table := vartable.New()
	taint := evaluator.NewTaint()

	a := models.MonitorEntry{Name: "a", OID: ".1.2.3", Nonzero: true}
	outA := ev.Evaluate(context.Background(), sensor(), a, table, taint, nil)
	if len(outA) != 0 {
		t.Fatalf("nonzero=0 probe should emit nothing, got %+v", outA)
	}
	if !taint.Tainted("a") {
		t.Fatal("a should be tainted")
	}

	b := models.MonitorEntry{Name: "b", Op: "a+1"}
	outB := ev.Evaluate(context.Background(), sensor(), b, table, taint, nil)
	if len(outB) != 0 {
		t.Fatalf("b referencing tainted a should emit nothing, got %+v", outB)
	}
	if !taint.Tainted("b") {
		t.Fatal("b should be tainted after skipping due to tainted dependency")
	}
}

// S6: a zero probe with no nonzero flag is emitted normally; a dependent
// division producing +Inf is suppressed and taints its name.
func TestNonFiniteOperationResultSuppressedAndTainted(t *testing.T) {
	d := &fakeDispatcher{byName: map[string][]fakeResult{
		".9": {{raw: "0", parsed: 0, ok: true}},
	}}
	ev := evaluator.New(d, nil)
	table := vartable.New()
	taint := evaluator.NewTaint()

	x := models.MonitorEntry{Name: "x", OID: ".9"}
	outX := ev.Evaluate(context.Background(), sensor(), x, table, taint, nil)
	if len(outX) != 1 || outX[0].Value != 0 {
		t.Fatalf("x=0 with no nonzero flag should be emitted, got %+v", outX)
	}

	y := models.MonitorEntry{Name: "y", Op: "1/x"}
	outY := ev.Evaluate(context.Background(), sensor(), y, table, taint, nil)
	if len(outY) != 0 {
		t.Fatalf("y=1/0 should be suppressed as non-finite, got %+v", outY)
	}
	if !taint.Tainted("y") {
		t.Fatal("y should be tainted after a non-finite result")
	}
}

func TestVectorProbeSplitsAndReducesWithSum(t *testing.T) {
	d := &fakeDispatcher{byName: map[string][]fakeResult{
		"echo vec": {{raw: "1,2,3", parsed: 0, ok: false}},
	}}
	ev := evaluator.New(d, nil)
	table := vartable.New()
	taint := evaluator.NewTaint()
	m := models.MonitorEntry{Name: "v", System: "echo vec", Split: ",", SplitOp: models.SplitOpSum}

	out := ev.Evaluate(context.Background(), sensor(), m, table, taint, nil)

	if len(out) != 4 {
		t.Fatalf("want 3 elements + 1 reduced scalar, got %d: %+v", len(out), out)
	}
	reduced := out[len(out)-1]
	if reduced.Value != 6 {
		t.Fatalf("sum reduction should be 6, got %v", reduced.Value)
	}
	if v, ok := table.Get("v"); !ok || v != 6 {
		t.Fatalf("reduced scalar should be stored under bare name, got %v %v", v, ok)
	}
	if v, ok := table.Get("v_pos_1"); !ok || v != 2 {
		t.Fatalf("v_pos_1 should be 2, got %v %v", v, ok)
	}
}

// S2: vector probe with split_op=mean reduces to sum(parsed)/count(parsed).
func TestVectorProbeSplitsAndReducesWithMean(t *testing.T) {
	d := &fakeDispatcher{byName: map[string][]fakeResult{
		".1.2.4": {{raw: "1;2;3;4", parsed: 0, ok: false}},
	}}
	ev := evaluator.New(d, nil)
	table := vartable.New()
	taint := evaluator.NewTaint()
	m := models.MonitorEntry{Name: "v", OID: ".1.2.4", Split: ";", SplitOp: models.SplitOpMean}

	out := ev.Evaluate(context.Background(), sensor(), m, table, taint, nil)

	if len(out) != 5 {
		t.Fatalf("want 4 elements + 1 reduced scalar, got %d: %+v", len(out), out)
	}
	want := []float64{1, 2, 3, 4}
	for i, el := range out[:4] {
		if el.Value != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, el.Value, want[i])
		}
	}
	reduced := out[len(out)-1]
	if reduced.Value != 2.5 {
		t.Fatalf("mean reduction should be (1+2+3+4)/4=2.5, got %v", reduced.Value)
	}
	if v, ok := table.Get("v"); !ok || v != 2.5 {
		t.Fatalf("reduced scalar should be stored under bare name as 2.5, got %v %v", v, ok)
	}
}

func TestOperationBroadcastsScalarOverVector(t *testing.T) {
	table := vartable.New()
	table.Append("a_pos_0", 10)
	table.Append("a_pos_1", 20)
	table.Append("a_pos_2", 30)
	table.Append("b", 2)
	taint := evaluator.NewTaint()
	ev := evaluator.New(&fakeDispatcher{byName: map[string][]fakeResult{}}, nil)

	m := models.MonitorEntry{Name: "c", Op: "a/b"}
	out := ev.Evaluate(context.Background(), sensor(), m, table, taint, nil)

	if len(out) != 3 {
		t.Fatalf("want 3 broadcast results, got %d: %+v", len(out), out)
	}
	want := []float64{5, 10, 15}
	for i, m := range out {
		if m.Value != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, m.Value, want[i])
		}
		if m.TypeTag != models.TypeOp {
			t.Fatalf("operation-form measurements must carry type_tag=op, got %v", m.TypeTag)
		}
	}
}

func TestDimensionMismatchTaintsAndEmitsNothing(t *testing.T) {
	table := vartable.New()
	table.Append("a_pos_0", 1)
	table.Append("a_pos_1", 2)
	table.Append("b_pos_0", 1)
	table.Append("b_pos_1", 2)
	table.Append("b_pos_2", 3)
	taint := evaluator.NewTaint()
	ev := evaluator.New(&fakeDispatcher{byName: map[string][]fakeResult{}}, nil)

	m := models.MonitorEntry{Name: "c", Op: "a+b"}
	out := ev.Evaluate(context.Background(), sensor(), m, table, taint, nil)

	if len(out) != 0 {
		t.Fatalf("dimension mismatch should emit nothing, got %+v", out)
	}
	if !taint.Tainted("c") {
		t.Fatal("c should be tainted on dimension mismatch")
	}
}

func TestEmptyProbeRawEmitsNothingAndDoesNotTaint(t *testing.T) {
	d := &fakeDispatcher{byName: map[string][]fakeResult{}}
	ev := evaluator.New(d, nil)
	table := vartable.New()
	taint := evaluator.NewTaint()
	m := models.MonitorEntry{Name: "a", OID: ".1.2.3", Nonzero: true}

	out := ev.Evaluate(context.Background(), sensor(), m, table, taint, nil)

	if len(out) != 0 {
		t.Fatalf("empty raw should emit nothing, got %+v", out)
	}
	if taint.Tainted("a") {
		t.Fatal("empty raw must not taint per §4.D step 2")
	}
}

func TestTaintPropagationIsTokenLevelNotSubstring(t *testing.T) {
	table := vartable.New()
	table.Append("ab", 5)
	taint := evaluator.NewTaint()
	taint.Add("a")
	ev := evaluator.New(&fakeDispatcher{byName: map[string][]fakeResult{}}, nil)

	m := models.MonitorEntry{Name: "c", Op: "ab+1"}
	out := ev.Evaluate(context.Background(), sensor(), m, table, taint, nil)

	if len(out) != 1 || out[0].Value != 6 {
		t.Fatalf("taint on 'a' must not affect 'ab' reference, got %+v", out)
	}
}
