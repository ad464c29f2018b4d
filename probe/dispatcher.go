package probe

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/sensorpipe/models"
)

// Dispatcher is the Probe Dispatcher (§4.C): probe(kind, argument, session)
// → (raw_text, parsed_f64?, ok).
type Dispatcher interface {
	Probe(ctx context.Context, desc models.ProbeDescriptor, session *gosnmp.GoSNMP) (raw string, parsed float64, parsedOK bool)
}

// SensorProbe is the concrete Dispatcher used in production: snmp_oid reads
// through the caller-supplied gosnmp session, system_cmd runs argument
// through a shell and reads standard output — the original collector's
// popen(argument, "r") translated to exec.CommandContext.
type SensorProbe struct {
	logger *slog.Logger
}

// NewSensorProbe constructs a SensorProbe.
func NewSensorProbe(logger *slog.Logger) *SensorProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SensorProbe{logger: logger}
}

// Probe implements Dispatcher. Transport failures (timeout, SNMP get
// error, missing session, non-zero exit) are never returned as errors — per
// §4.D's failure semantics, "probe timeout → treated as empty raw; no
// taint" — so callers see an empty raw_text plus parsedOK=false. Output
// that was read but is not a finite number is returned as raw_text with
// parsedOK=false.
func (p *SensorProbe) Probe(ctx context.Context, desc models.ProbeDescriptor, session *gosnmp.GoSNMP) (string, float64, bool) {
	var raw string
	switch desc.Kind {
	case models.ProbeSNMPOID:
		raw = p.probeSNMP(desc.Argument, session)
	case models.ProbeSystemCmd:
		raw = p.probeSystem(ctx, desc.Argument)
	default:
		p.logger.Error("probe: unknown probe kind", "kind", string(desc.Kind))
		return "", 0, false
	}
	if raw == "" {
		return "", 0, false
	}
	parsed, ok := parseFinite(raw)
	return raw, parsed, ok
}

func (p *SensorProbe) probeSNMP(oid string, session *gosnmp.GoSNMP) string {
	if session == nil {
		p.logger.Error("probe: snmp_oid probe with no session", "oid", oid)
		return ""
	}
	target := oid
	if !strings.HasPrefix(target, ".") {
		target = "." + target
	}
	result, err := session.Get([]string{target})
	if err != nil {
		p.logger.Warn("probe: snmp get failed", "oid", oid, "error", err.Error())
		return ""
	}
	if len(result.Variables) == 0 {
		return ""
	}
	v := result.Variables[0]
	if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance || v.Type == gosnmp.EndOfMibView {
		p.logger.Warn("probe: snmp get returned error type", "oid", oid, "type", v.Type.String())
		return ""
	}
	return pduText(v)
}

func (p *SensorProbe) probeSystem(ctx context.Context, command string) string {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		p.logger.Warn("probe: system_cmd failed", "command", command, "error", err.Error())
		return ""
	}
	return strings.TrimRight(stdout.String(), "\r\n")
}

// parseFinite reports whether the entire text parses as a finite float64,
// per §4.C's "parsed_f64 is set iff the entire raw_text parses as a finite
// floating-point number."
func parseFinite(text string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
