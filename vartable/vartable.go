// Package vartable implements the append-only symbolic variable store used
// by one sensor tick's expression evaluation. It corresponds to the original
// collector's libmatheval-backed name/value arrays: a vector named v with
// width k is stored as the contiguous run v_pos_0 … v_pos_{k-1}, and a
// group-scoped vector as v_gid_<g>_pos_<i>. A reduced scalar is stored under
// the bare name.
package vartable

import (
	"sort"
	"strconv"
	"strings"
)

const (
	vectorSep = "_pos_"
	groupSep  = "_gid_"
)

// VectorName builds the Variable Table name for element i of a vector
// called name, optionally scoped to groupID. Matches the original's
// VECTOR_SEP/GROUP_SEP convention.
func VectorName(name, groupID string, i int) string {
	var b strings.Builder
	b.WriteString(name)
	if groupID != "" {
		b.WriteString(groupSep)
		b.WriteString(groupID)
	}
	b.WriteString(vectorSep)
	b.WriteString(strconv.Itoa(i))
	return b.String()
}

// Table is a per-tick, append-only name → float64 store. It preserves
// insertion order and exposes its names/values in index-aligned form for
// the expression engine. Not safe for concurrent use — one Table belongs to
// exactly one sensor tick running on one worker.
type Table struct {
	names  []string
	values []float64
	index  map[string]int
}

// New creates an empty Table ready for one sensor tick.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Append inserts (name, value) at the end of the table. Returns false
// without modifying the table if name already exists — duplicates are
// rejected, per §4.A.
func (t *Table) Append(name string, value float64) bool {
	if _, dup := t.index[name]; dup {
		return false
	}
	t.index[name] = len(t.names)
	t.names = append(t.names, name)
	t.values = append(t.values, value)
	return true
}

// Get returns the value stored under name and whether it was found.
func (t *Table) Get(name string) (float64, bool) {
	i, ok := t.index[name]
	if !ok {
		return 0, false
	}
	return t.values[i], true
}

// Names returns the index-aligned slice of variable names inserted so far.
// The caller must not mutate the returned slice.
func (t *Table) Names() []string { return t.names }

// Values returns the index-aligned slice of variable values inserted so
// far. The caller must not mutate the returned slice.
func (t *Table) Values() []float64 { return t.values }

// FindVector reports the start index and width of the maximal contiguous
// run of entries whose names share prefix, followed by either vectorSep
// directly or an intervening group-scope segment (groupSep + id), and a
// non-negative integer suffix starting at 0. A plain scalar entry named
// prefix, with no _pos_0 sibling, reports width 1 at its own index. An
// unknown prefix reports ok=false.
//
// The expression a monitor references a vector by its bare name only — the
// group id embedded at insertion time (VectorName) is not visible to the
// caller — so the first element's group segment (if any) is discovered by
// scanning, then reused to probe for subsequent elements.
func (t *Table) FindVector(prefix string) (start, width int, ok bool) {
	first, firstName, firstOK := t.firstVectorElement(prefix)
	if firstOK {
		start = first
		width = 1
		for {
			next, nextOK := t.index[vectorNameLike(firstName, width)]
			if !nextOK || next != first+width {
				break
			}
			width++
		}
		return start, width, true
	}
	// Scalar form: the bare name itself.
	if i, scalarOK := t.index[prefix]; scalarOK {
		return i, 1, true
	}
	return 0, 0, false
}

// firstVectorElement locates prefix_pos_0 or prefix_gid_<anything>_pos_0
// and returns its index and the exact name found (so later elements can be
// probed with the same group segment).
func (t *Table) firstVectorElement(prefix string) (index int, name string, ok bool) {
	plain := prefix + vectorSep + "0"
	if i, found := t.index[plain]; found {
		return i, plain, true
	}
	withGroup := prefix + groupSep
	for cand, i := range t.index {
		if strings.HasPrefix(cand, withGroup) && strings.HasSuffix(cand, vectorSep+"0") {
			return i, cand, true
		}
	}
	return 0, "", false
}

// vectorNameLike rewrites a discovered element name's trailing _pos_<k> to
// _pos_<i>, preserving whatever group segment (if any) precedes it.
func vectorNameLike(name string, i int) string {
	idx := strings.LastIndex(name, vectorSep)
	if idx < 0 {
		return name
	}
	return name[:idx+len(vectorSep)] + strconv.Itoa(i)
}

// Sorted is a debugging helper returning (name, value) pairs ordered by
// name, for deterministic inspection independent of insertion order.
func (t *Table) Sorted() []struct {
	Name  string
	Value float64
} {
	out := make([]struct {
		Name  string
		Value float64
	}, len(t.names))
	for i, n := range t.names {
		out[i] = struct {
			Name  string
			Value float64
		}{n, t.values[i]}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
