package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vpbank/sensorpipe/pkg/sensorpipe/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "collector.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{"conf": {}, "sensors": []}`)
	doc, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Conf.Threads != 10 {
		t.Errorf("Threads = %d, want 10", doc.Conf.Threads)
	}
	if doc.Conf.Timeout != 5 {
		t.Errorf("Timeout = %d, want 5", doc.Conf.Timeout)
	}
	if doc.Conf.KafkaBroker != "localhost" {
		t.Errorf("KafkaBroker = %q, want localhost", doc.Conf.KafkaBroker)
	}
	if doc.Conf.KafkaTopic != "SNMP" {
		t.Errorf("KafkaTopic = %q, want SNMP", doc.Conf.KafkaTopic)
	}
	if doc.Conf.RBHTTPMaxMessages != 512 {
		t.Errorf("RBHTTPMaxMessages = %d, want 512", doc.Conf.RBHTTPMaxMessages)
	}
}

func TestLoad_ExplicitValuesOverrideDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"conf": {"threads": 25, "kafka_broker": "kafka1:9092", "http_endpoint": "https://collector/ingest"},
		"sensors": []
	}`)
	doc, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Conf.Threads != 25 {
		t.Errorf("Threads = %d, want 25", doc.Conf.Threads)
	}
	if !doc.Conf.BusEnabled() {
		t.Error("BusEnabled() = false, want true")
	}
	if !doc.Conf.HTTPEnabled() {
		t.Error("HTTPEnabled() = false, want true")
	}
}

func TestLoad_SinksIndependentlyOptional(t *testing.T) {
	path := writeConfig(t, `{"conf": {"kafka_broker": ""}, "sensors": []}`)
	doc, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// kafka_broker explicitly empty still falls back to the default,
	// matching the original's non-empty-string default; only omission of
	// http_endpoint disables that sink.
	if doc.Conf.HTTPEnabled() {
		t.Error("HTTPEnabled() = true, want false with no http_endpoint configured")
	}
}

func TestLoad_RdKafkaPassthrough(t *testing.T) {
	path := writeConfig(t, `{
		"conf": {"rdkafka.client.id": "collector-1", "rdkafka.topic.acks": "all"},
		"sensors": []
	}`)
	doc, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Conf.RdKafka["client.id"] != "collector-1" {
		t.Errorf("RdKafka[client.id] = %q", doc.Conf.RdKafka["client.id"])
	}
	if doc.Conf.RdKafkaTopic["acks"] != "all" {
		t.Errorf("RdKafkaTopic[acks] = %q", doc.Conf.RdKafkaTopic["acks"])
	}
}

func TestLoad_DropsInvalidSensors(t *testing.T) {
	path := writeConfig(t, `{
		"conf": {},
		"sensors": [
			{"sensor_name": "ok", "peer": "10.0.0.1", "community": "public", "monitors": [{"name": "x", "oid": ".1"}]},
			{"peer": "10.0.0.2", "community": "public", "monitors": [{"name": "x", "oid": ".1"}]}
		]
	}`)
	doc, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Sensors) != 1 {
		t.Fatalf("Sensors = %d, want 1", len(doc.Sensors))
	}
	if doc.Sensors[0].SensorName != "ok" {
		t.Errorf("Sensors[0].SensorName = %q, want ok", doc.Sensors[0].SensorName)
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
