// Package models defines the core data structures shared across all layers of
// the sensor telemetry collector. These types represent the canonical
// in-memory form of all configuration and collected data; every other
// package depends on this package and nothing here depends on any other
// internal package.
package models

// ProbeKind distinguishes the two ways a monitor entry may read a raw value.
type ProbeKind string

const (
	ProbeSNMPOID    ProbeKind = "snmp_oid"
	ProbeSystemCmd  ProbeKind = "system_cmd"
)

// ProbeDescriptor is the immutable {kind, argument} pair a monitor entry's
// probe form resolves to. It carries no state of its own; the Probe
// Dispatcher reads it fresh on every tick.
type ProbeDescriptor struct {
	Kind     ProbeKind
	Argument string
}

// SplitOp is the reduction applied to a vector's per-element results to
// produce a single scalar.
type SplitOp string

const (
	SplitOpSum  SplitOp = "sum"
	SplitOpMean SplitOp = "mean"
)

// TypeTag classifies where a Measurement's value originated.
type TypeTag string

const (
	TypeSNMP   TypeTag = "snmp"
	TypeSystem TypeTag = "system"
	TypeOp     TypeTag = "op"
)

// MonitorEntry is one configured probe or operation within a sensor's
// ordered monitors[] list. An entry with OID or System set is evaluated in
// probe form (see IsProbeForm); any other entry is evaluated as an
// operation over Op. Config loading does not check entries for this: one
// that sets both forms is treated as a probe, and one that sets neither
// fails as an operation with an empty expression.
type MonitorEntry struct {
	// Common fields.
	Name            string  `json:"name"`
	Unit            string  `json:"unit,omitempty"`
	GroupName       string  `json:"group_name,omitempty"`
	GroupID         string  `json:"group_id,omitempty"`
	InstancePrefix  string  `json:"instance_prefix,omitempty"`
	NameSplitSuffix string  `json:"name_split_suffix,omitempty"`
	Nonzero         bool    `json:"nonzero,omitempty"`
	Integer         bool    `json:"integer,omitempty"`
	TimestampGiven  bool    `json:"timestamp_given,omitempty"`
	PublishBus      *bool   `json:"publish_bus,omitempty"`
	PublishHTTP     *bool   `json:"publish_http,omitempty"`

	// Probe form.
	OID    string `json:"oid,omitempty"`
	System string `json:"system,omitempty"`
	Split  string `json:"split,omitempty"`

	// Operation form.
	Op string `json:"op,omitempty"`

	// Shared by both forms.
	SplitOp SplitOp `json:"split_op,omitempty"`
}

// IsProbeForm reports whether the entry reads a value via OID or System
// rather than evaluating an expression over prior entries.
func (m MonitorEntry) IsProbeForm() bool {
	return m.OID != "" || m.System != ""
}

// Probe builds the ProbeDescriptor this entry resolves against. Callers
// must first check IsProbeForm.
func (m MonitorEntry) Probe() ProbeDescriptor {
	if m.OID != "" {
		return ProbeDescriptor{Kind: ProbeSNMPOID, Argument: m.OID}
	}
	return ProbeDescriptor{Kind: ProbeSystemCmd, Argument: m.System}
}

// SendName is the wire "monitor" field: the configured split-suffix name if
// set, else the bare name.
func (m MonitorEntry) SendName() string {
	if m.NameSplitSuffix != "" {
		return m.Name + m.NameSplitSuffix
	}
	return m.Name
}

// PublishesBus reports whether this entry's measurements should be enqueued
// on the message-bus sink. Defaults to true.
func (m MonitorEntry) PublishesBus() bool {
	return m.PublishBus == nil || *m.PublishBus
}

// PublishesHTTP reports whether this entry's measurements should be
// enqueued on the HTTP sink. Defaults to true.
func (m MonitorEntry) PublishesHTTP() bool {
	return m.PublishHTTP == nil || *m.PublishHTTP
}

// SensorDescriptor is one monitored device: its SNMP addressing, optional
// per-measurement enrichment, and its ordered list of monitor entries.
type SensorDescriptor struct {
	SensorName  string            `json:"sensor_name"`
	SensorID    *uint64           `json:"sensor_id,omitempty"`
	Peer        string            `json:"peer"`
	Community   string            `json:"community"`
	SNMPVersion string            `json:"snmp_version,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
	Enrichment  map[string]any    `json:"enrichment,omitempty"`
	Monitors    []MonitorEntry    `json:"monitors"`
}

// Validate reports the first missing required field, matching §4.F's
// "sensor missing sensor_name, peer, community, or monitors is rejected
// before evaluation" rule.
func (s SensorDescriptor) Validate() error {
	switch {
	case s.SensorName == "":
		return errMissingField("sensor_name")
	case s.Peer == "":
		return errMissingField("peer")
	case s.Community == "":
		return errMissingField("community")
	case len(s.Monitors) == 0:
		return errMissingField("monitors")
	}
	return nil
}

type missingFieldError string

func (e missingFieldError) Error() string { return "sensor: missing required field " + string(e) }

func errMissingField(field string) error { return missingFieldError(field) }

// Measurement is a single immutable observation produced by the Monitor
// Evaluator and, once it passes the Measurement Store's change check,
// handed to the Sink Adapter.
type Measurement struct {
	Timestamp      int64
	SensorName     string
	SensorID       *uint64
	Name           string
	SendName       string
	Instance       *int
	InstanceValid  bool
	InstancePrefix string
	Value          float64
	StringValue    string
	Unit           string
	GroupName      string
	GroupID        string
	TypeTag        TypeTag
	Enrichment     map[string]any
	Integer        bool
}

// Key returns the Measurement Store key this observation belongs under.
func (m Measurement) Key() MeasurementKey {
	k := MeasurementKey{SensorName: m.SensorName, Name: m.Name}
	if m.InstanceValid && m.Instance != nil {
		k.HasInstance = true
		k.Instance = *m.Instance
	}
	return k
}

// MeasurementKey is the Measurement Store's map key: (sensor_name, name,
// instance?).
type MeasurementKey struct {
	SensorName  string
	Name        string
	HasInstance bool
	Instance    int
}
