// Package config decodes the collector's single JSON configuration
// document (§6): a top-level `conf` object plus a `sensors` array of
// sensor descriptors. Grounded structurally on the teacher's
// pkg/snmpcollector/config/loader.go — "decode leniently, warn once on
// problems, everything simultaneously logged" — but decoding one flat JSON
// document instead of walking a tree of YAML files, per spec.md §6's
// explicit "Configuration is a JSON document."
package config

import "time"

// Conf holds the top-level `conf` object's recognized settings (§6).
// Defaults (applied by withDefaults, see loader.go) are taken from the
// original implementation's str_default_config literal, per SPEC_FULL.md's
// "Supplemented feature — default config values."
type Conf struct {
	Debug  int  `json:"debug"`
	Stdout bool `json:"stdout"`
	Syslog bool `json:"syslog"`

	Threads int `json:"threads"`
	Timeout int `json:"timeout"` // per-probe timeout, seconds

	MaxSNMPFails  int `json:"max_snmp_fails"`
	MaxKafkaFails int `json:"max_kafka_fails"`

	SleepMain   int `json:"sleep_main"`
	SleepWorker int `json:"sleep_worker"`

	KafkaBroker  string `json:"kafka_broker"`
	KafkaTopic   string `json:"kafka_topic"`
	KafkaTimeout int    `json:"kafka_timeout"` // milliseconds

	HTTPEndpoint            string `json:"http_endpoint"`
	HTTPTimeout             int    `json:"http_timeout"`              // milliseconds
	HTTPConnTimeout         int    `json:"http_connttimeout"`         // milliseconds
	HTTPMaxTotalConnections int    `json:"http_max_total_connections"`
	HTTPVerbose             bool   `json:"http_verbose"`
	RBHTTPMaxMessages       int    `json:"rb_http_max_messages"`

	// RdKafka carries `rdkafka.<name>` passthrough keys (topic-prefixed
	// `rdkafka.topic.<name>` keys land in RdKafkaTopic instead), routed
	// straight to the bus client (§6).
	RdKafka      map[string]string `json:"-"`
	RdKafkaTopic map[string]string `json:"-"`
}

// withDefaults fills zero-valued fields with the original implementation's
// documented defaults (SPEC_FULL.md §"Default config values").
func (c *Conf) withDefaults() {
	if c.Threads <= 0 {
		c.Threads = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 5
	}
	if c.MaxSNMPFails <= 0 {
		c.MaxSNMPFails = 2
	}
	if c.MaxKafkaFails <= 0 {
		c.MaxKafkaFails = 2
	}
	if c.SleepMain <= 0 {
		c.SleepMain = 10
	}
	if c.SleepWorker <= 0 {
		c.SleepWorker = 2
	}
	if c.KafkaBroker == "" {
		c.KafkaBroker = "localhost"
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "SNMP"
	}
	if c.HTTPMaxTotalConnections <= 0 {
		c.HTTPMaxTotalConnections = 4
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10000
	}
	if c.HTTPConnTimeout <= 0 {
		c.HTTPConnTimeout = 3000
	}
	if c.RBHTTPMaxMessages <= 0 {
		c.RBHTTPMaxMessages = 512
	}
}

// ProbeTimeout is Timeout converted to a time.Duration.
func (c Conf) ProbeTimeout() time.Duration { return time.Duration(c.Timeout) * time.Second }

// SleepMainInterval is SleepMain converted to a time.Duration.
func (c Conf) SleepMainInterval() time.Duration { return time.Duration(c.SleepMain) * time.Second }

// SleepWorkerInterval is SleepWorker converted to a time.Duration.
func (c Conf) SleepWorkerInterval() time.Duration { return time.Duration(c.SleepWorker) * time.Second }

// KafkaTimeoutDuration is KafkaTimeout (milliseconds) converted to a
// time.Duration.
func (c Conf) KafkaTimeoutDuration() time.Duration {
	return time.Duration(c.KafkaTimeout) * time.Millisecond
}

// HTTPTimeoutDuration is HTTPTimeout (milliseconds) converted to a
// time.Duration.
func (c Conf) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Millisecond
}

// HTTPConnTimeoutDuration is HTTPConnTimeout (milliseconds) converted to a
// time.Duration.
func (c Conf) HTTPConnTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPConnTimeout) * time.Millisecond
}

// BusEnabled reports whether the message-bus sink should be constructed.
// Decision from SPEC_FULL.md's Open Question 1: kafka and http are
// independent booleans, each keyed off its own destination field being
// non-empty, rather than coupled to one master flag (the original's
// typo'd `http`-vs-`kafka` comparison).
func (c Conf) BusEnabled() bool { return c.KafkaBroker != "" }

// HTTPEnabled reports whether the HTTP sink should be constructed. See
// BusEnabled.
func (c Conf) HTTPEnabled() bool { return c.HTTPEndpoint != "" }
