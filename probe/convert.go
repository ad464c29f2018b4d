package probe

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// pduText renders a gosnmp varbind's value as the canonical printable form
// the Probe Dispatcher returns as raw_text. Unlike the teacher's
// syntax-aware ConvertValue (snmp/decoder/types.go), this has no concept of
// a configured unit/syntax — the specification's probe model returns one
// plain textual value and lets the caller decide, by parsing that text,
// whether a numeric reading exists.
func pduText(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.OctetString:
		if b, ok := pdu.Value.([]byte); ok {
			return toDisplayString(b)
		}
		return fmt.Sprintf("%v", pdu.Value)
	case gosnmp.IPAddress:
		if s, ok := pdu.Value.(string); ok {
			return s
		}
		if b, ok := pdu.Value.([]byte); ok {
			return toIPString(b)
		}
		return fmt.Sprintf("%v", pdu.Value)
	case gosnmp.ObjectIdentifier:
		if s, ok := pdu.Value.(string); ok {
			return strings.TrimPrefix(s, ".")
		}
		return fmt.Sprintf("%v", pdu.Value)
	case gosnmp.Integer:
		return strconv.FormatInt(toInt64(pdu.Value), 10)
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32:
		return strconv.FormatUint(toUint64(pdu.Value), 10)
	case gosnmp.Counter64:
		return strconv.FormatUint(toUint64(pdu.Value), 10)
	case gosnmp.OpaqueFloat:
		if f, ok := pdu.Value.(float32); ok {
			return strconv.FormatFloat(float64(f), 'f', -1, 64)
		}
		return fmt.Sprintf("%v", pdu.Value)
	case gosnmp.OpaqueDouble:
		if f, ok := pdu.Value.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprintf("%v", pdu.Value)
	default:
		return fmt.Sprintf("%v", pdu.Value)
	}
}

// toDisplayString trims trailing NUL padding some agents append to fixed
// width OCTET STRING encodings.
func toDisplayString(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

// toIPString renders a 4-byte or 16-byte address; anything else falls back
// to a hex dump so no data is silently dropped.
func toIPString(b []byte) string {
	switch len(b) {
	case 4, 16:
		return net.IP(b).String()
	default:
		return fmt.Sprintf("%x", b)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case int:
		return uint64(n)
	case int32:
		return uint64(n)
	case int64:
		return uint64(n)
	case uint:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	default:
		return 0
	}
}
