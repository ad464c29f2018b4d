package expr_test

import (
	"testing"

	"github.com/vpbank/sensorpipe/expr"
	"github.com/vpbank/sensorpipe/vartable"
)

func mustParse(t *testing.T, src string) *expr.Expr {
	t.Helper()
	e, err := expr.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	return e
}

func bindAll(e *expr.Expr, table *vartable.Table) error {
	for _, ref := range e.Vars() {
		start, _, ok := table.FindVector(ref.Name)
		if !ok {
			return &expr.UnknownVariableError{Name: ref.Name}
		}
		ref.Index = start
	}
	return nil
}

func TestArithmeticPrecedence(t *testing.T) {
	table := vartable.New()
	e := mustParse(t, "2+3*4")
	if err := bindAll(e, table); err != nil {
		t.Fatal(err)
	}
	got, err := e.Eval(table)
	if err != nil {
		t.Fatal(err)
	}
	if got != 14 {
		t.Fatalf("2+3*4 = %v, want 14", got)
	}
}

func TestVariableBinding(t *testing.T) {
	table := vartable.New()
	table.Append("a", 10)
	table.Append("b", 2)
	e := mustParse(t, "a/b")
	if err := bindAll(e, table); err != nil {
		t.Fatal(err)
	}
	got, err := e.Eval(table)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Fatalf("a/b = %v, want 5", got)
	}
}

func TestBitwiseTruncation(t *testing.T) {
	table := vartable.New()
	table.Append("a", 6.9)
	table.Append("b", 3.1)
	e := mustParse(t, "a&b")
	if err := bindAll(e, table); err != nil {
		t.Fatal(err)
	}
	got, err := e.Eval(table)
	if err != nil {
		t.Fatal(err)
	}
	// truncate(6.9)=6, truncate(3.1)=3, 6&3=2
	if got != 2 {
		t.Fatalf("a&b = %v, want 2", got)
	}
}

func TestUnknownVariable(t *testing.T) {
	table := vartable.New()
	e := mustParse(t, "missing+1")
	err := bindAll(e, table)
	if err == nil {
		t.Fatal("expected UnknownVariableError")
	}
}

func TestRebindForVectorPosition(t *testing.T) {
	table := vartable.New()
	table.Append(vartable.VectorName("a", "", 0), 10)
	table.Append(vartable.VectorName("a", "", 1), 20)
	table.Append(vartable.VectorName("a", "", 2), 30)
	table.Append("b", 2)

	e := mustParse(t, "a/b")
	start, width, ok := table.FindVector("a")
	if !ok || width != 3 {
		t.Fatalf("expected vector a width 3, got width=%d ok=%v", width, ok)
	}
	for _, ref := range e.Vars() {
		if ref.Name == "a" {
			continue // rebound per position below
		}
		s, _, ok := table.FindVector(ref.Name)
		if !ok {
			t.Fatalf("unbound variable %s", ref.Name)
		}
		ref.Index = s
	}

	var results []float64
	for j := 0; j < width; j++ {
		for _, ref := range e.Vars() {
			if ref.Name == "a" {
				ref.Index = start + j
			}
		}
		v, err := e.Eval(table)
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, v)
	}
	want := []float64{5, 10, 15}
	for i, w := range want {
		if results[i] != w {
			t.Fatalf("results[%d] = %v, want %v", i, results[i], w)
		}
	}
}

func TestParseError(t *testing.T) {
	if _, err := expr.Parse("a + * b"); err == nil {
		t.Fatal("expected parse error for malformed expression")
	}
}

func TestIdentifiersTokenLevel(t *testing.T) {
	ids := expr.Identifiers("a+ab*2")
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "ab" {
		t.Fatalf("Identifiers(a+ab*2) = %v, want [a ab] (whole-token match, not substring)", ids)
	}
}
