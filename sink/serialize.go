package sink

import (
	"encoding/json"
	"fmt"

	"github.com/vpbank/sensorpipe/models"
)

// record is the canonical wire shape for a Measurement (§6). Enrichment is
// merged at the top level rather than nested, so it cannot be represented
// as a plain Go struct — Serialize marshals record first, then re-merges
// Enrichment's keys into the resulting object.
type record struct {
	Timestamp  int64   `json:"timestamp"`
	SensorName string  `json:"sensor_name"`
	SensorID   *uint64 `json:"sensor_id,omitempty"`
	Monitor    string  `json:"monitor"`
	ValueSent  string  `json:"value_sent"`
	Type       string  `json:"type"`
	Instance   *string `json:"instance,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	GroupName  string  `json:"group_name,omitempty"`
	GroupID    string  `json:"group_id,omitempty"`
}

// Serialize renders m as a single-line JSON record per §6: "monitor" is
// send_name if set else name, "value_sent" is string_value, "instance" (if
// present) is instance_prefix + instance, and the enrichment object is
// merged at the top level. Serialization is deterministic — the same
// Measurement always produces the same bytes (§8 invariant 6), because
// encoding/json marshals map keys in sorted order.
func Serialize(m models.Measurement) ([]byte, error) {
	rec := record{
		Timestamp:  m.Timestamp,
		SensorName: m.SensorName,
		SensorID:   m.SensorID,
		Monitor:    monitorName(m),
		ValueSent:  m.StringValue,
		Type:       string(m.TypeTag),
		Unit:       m.Unit,
		GroupName:  m.GroupName,
		GroupID:    m.GroupID,
	}
	if m.InstanceValid && m.Instance != nil {
		inst := fmt.Sprintf("%s%d", m.InstancePrefix, *m.Instance)
		rec.Instance = &inst
	}

	base, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("sink: marshal record: %w", err)
	}
	if len(m.Enrichment) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(m.Enrichment)+8)
	var baseFields map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseFields); err != nil {
		return nil, fmt.Errorf("sink: unmarshal base record: %w", err)
	}
	for k, v := range baseFields {
		merged[k] = v
	}
	for k, v := range m.Enrichment {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("sink: marshal enrichment field %q: %w", k, err)
		}
		merged[k] = encoded
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("sink: marshal merged record: %w", err)
	}
	return out, nil
}

func monitorName(m models.Measurement) string {
	if m.SendName != "" {
		return m.SendName
	}
	return m.Name
}
