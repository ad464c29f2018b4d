package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/vpbank/sensorpipe/models"
)

// Document is the fully decoded configuration: the resolved `conf` object
// plus every well-formed sensor. Sensors failing validation (§4.F: missing
// sensor_name, peer, community, or monitors) are dropped here, once, at
// load time rather than repeatedly inside the tick loop.
type Document struct {
	Conf    Conf
	Sensors []models.SensorDescriptor
}

// knownConfKeys is every `conf` key spec.md §6 recognizes, used to decide
// which raw keys are "unknown" and therefore logged and ignored.
var knownConfKeys = map[string]bool{
	"debug": true, "stdout": true, "syslog": true,
	"threads": true, "timeout": true,
	"max_snmp_fails": true, "max_kafka_fails": true,
	"sleep_main": true, "sleep_worker": true,
	"kafka_broker": true, "kafka_topic": true, "kafka_timeout": true,
	"http_endpoint": true, "http_timeout": true, "http_connttimeout": true,
	"http_max_total_connections": true, "http_verbose": true,
	"rb_http_max_messages": true,
}

// Load reads and decodes the JSON configuration document at path.
//
// `conf` is decoded leniently: recognized keys populate Conf (defaults
// filled in for anything left zero-valued), `rdkafka.<name>` /
// `rdkafka.topic.<name>` keys are routed to Conf.RdKafka /
// Conf.RdKafkaTopic, and every other key is logged at WARN and ignored
// (§6 "Unknown keys are logged and ignored").
//
// Each entry in `sensors` is decoded and validated independently; a sensor
// missing a required field (§4.F) is logged once at ERROR and dropped
// rather than failing the whole load, matching the teacher's
// accumulate-and-continue loader texture.
func Load(path string, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var raw struct {
		Conf    map[string]json.RawMessage `json:"conf"`
		Sensors []json.RawMessage          `json:"sensors"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	conf, err := decodeConf(raw.Conf, logger)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	sensors := make([]models.SensorDescriptor, 0, len(raw.Sensors))
	for i, rawSensor := range raw.Sensors {
		var s models.SensorDescriptor
		if err := json.Unmarshal(rawSensor, &s); err != nil {
			logger.Error("config: skip malformed sensor", "index", i, "error", err.Error())
			continue
		}
		if err := s.Validate(); err != nil {
			logger.Error("config: skip invalid sensor", "index", i, "sensor_name", s.SensorName, "error", err.Error())
			continue
		}
		sensors = append(sensors, s)
	}

	logger.Info("config: loaded", "sensors", len(sensors), "threads", conf.Threads)
	return &Document{Conf: conf, Sensors: sensors}, nil
}

// decodeConf re-marshals the recognized subset of raw back into JSON and
// decodes it into a Conf, separately extracting rdkafka.* passthrough keys
// and logging anything else unrecognized.
func decodeConf(raw map[string]json.RawMessage, logger *slog.Logger) (Conf, error) {
	var conf Conf
	known := make(map[string]json.RawMessage, len(raw))
	rdkafka := make(map[string]string)
	rdkafkaTopic := make(map[string]string)

	for key, val := range raw {
		switch {
		case knownConfKeys[key]:
			known[key] = val
		case strings.HasPrefix(key, "rdkafka.topic."):
			rdkafkaTopic[strings.TrimPrefix(key, "rdkafka.topic.")] = stringValue(val)
		case strings.HasPrefix(key, "rdkafka."):
			rdkafka[strings.TrimPrefix(key, "rdkafka.")] = stringValue(val)
		default:
			logger.Warn("config: ignoring unrecognized conf key", "key", key)
		}
	}

	encoded, err := json.Marshal(known)
	if err != nil {
		return conf, fmt.Errorf("re-encode conf: %w", err)
	}
	if err := json.Unmarshal(encoded, &conf); err != nil {
		return conf, fmt.Errorf("decode conf: %w", err)
	}
	conf.withDefaults()
	conf.RdKafka = rdkafka
	conf.RdKafkaTopic = rdkafkaTopic
	return conf, nil
}

// stringValue renders a json.RawMessage as a plain string for passthrough
// config values, which may arrive as JSON strings or bare numbers.
func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
