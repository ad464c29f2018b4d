package sink

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/vpbank/sensorpipe/models"
)

// BusConfig controls the message-bus (Kafka) sink. Field names mirror the
// `conf` keys that populate them (§6): Brokers from kafka_broker (comma
// separated), Topic from kafka_topic, Timeout from kafka_timeout. RdKafka
// carries the passthrough `rdkafka.<name>` values (topic-level
// `rdkafka.topic.<name>` values are not passed to this sink) —
// sarama.Config exposes no generic string-keyed escape hatch, so only the
// handful of keys applyRdKafka recognises are applied; the rest are
// logged and ignored, matching §6's "unknown keys are logged and ignored."
type BusConfig struct {
	Brokers       []string
	Topic         string
	Timeout       time.Duration
	MaxKafkaFails int
	RdKafka       map[string]string
}

// BusSink publishes Measurements to a Kafka topic via a sarama async
// producer. Enqueue is non-blocking (§4.G); delivery success/failure is
// observed asynchronously and only drives the consecutive-failure counter
// used by the drain heuristic (§5, §9 "Graceful drain") — it is never
// surfaced as a Send error. Grounded on the pack's sarama-carrying repos
// (apkerr-telegraf, grafana-tempo, DataDog-datadog-agent) for the
// "produce one JSON line per record" async-producer shape.
type BusSink struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger

	maxFails int
	fails    atomic.Int64
	done     chan struct{}
}

// NewBusSink dials the configured brokers and starts a background goroutine
// that drains the producer's Successes/Errors channels.
func NewBusSink(cfg BusConfig, logger *slog.Logger) (*BusSink, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("sink/bus: no brokers configured")
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
		sc.Net.DialTimeout = cfg.Timeout
	}
	applyRdKafka(sc, cfg.RdKafka, logger)

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("sink/bus: new producer: %w", err)
	}

	maxFails := cfg.MaxKafkaFails
	if maxFails <= 0 {
		maxFails = 2
	}

	b := &BusSink{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
		maxFails: maxFails,
		done:     make(chan struct{}),
	}
	go b.drainCallbacks()
	return b, nil
}

// Send serializes m (sink.Serialize) and enqueues it on the async
// producer's input channel — sarama's ByteEncoder takes ownership of the
// freshly serialized byte slice, matching §4.G's "producer owns the copy"
// semantics. It never blocks: when the producer's bounded input channel is
// full, the record is dropped and a warning logged, the same backpressure
// handling HTTPSink.Send applies.
func (b *BusSink) Send(m models.Measurement) error {
	data, err := Serialize(m)
	if err != nil {
		return fmt.Errorf("sink/bus: serialize: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Value: sarama.ByteEncoder(data),
	}
	select {
	case b.producer.Input() <- msg:
	default:
		b.logger.Warn("sink/bus: producer queue full, dropping record", "topic", b.topic, "bytes", len(data))
	}
	return nil
}

// QueueLength reports the number of messages currently buffered in the
// producer's input channel — the liveness signal §5/§9's graceful drain
// polls once per second, declaring the broker dead when it fails to
// decrease across MaxKafkaFails consecutive polls.
func (b *BusSink) QueueLength() int {
	return len(b.producer.Input())
}

// drainCallbacks consumes delivery callbacks, resetting the consecutive
// failure counter on every success and incrementing it on every error —
// used by DeadBroker as a second, delivery-driven signal alongside
// QueueLength during graceful drain (§5, §9).
func (b *BusSink) drainCallbacks() {
	defer close(b.done)
	successes := b.producer.Successes()
	errs := b.producer.Errors()
	for successes != nil || errs != nil {
		select {
		case _, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			b.fails.Store(0)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			b.fails.Add(1)
			b.logger.Error("sink/bus: delivery failed", "error", err.Error(), "topic", b.topic)
		}
	}
}

// DeadBroker reports whether the consecutive delivery-failure count has
// reached MaxKafkaFails — the "dead-broker heuristic" §5/§9 use to decide
// when a draining worker should give up waiting on this sink.
func (b *BusSink) DeadBroker() bool {
	return b.fails.Load() >= int64(b.maxFails)
}

// Close stops the producer, which closes Successes()/Errors() and lets
// drainCallbacks return.
func (b *BusSink) Close() error {
	err := b.producer.Close()
	<-b.done
	if err != nil {
		return fmt.Errorf("sink/bus: close: %w", err)
	}
	return nil
}

// applyRdKafka maps the subset of passthrough `rdkafka.<name>` keys this
// sink understands onto sarama.Config; every other key is logged and
// ignored, per §6's "unknown keys are logged and ignored."
func applyRdKafka(sc *sarama.Config, rd map[string]string, logger *slog.Logger) {
	for k, v := range rd {
		switch k {
		case "queue.buffering.max.ms":
			if ms, err := time.ParseDuration(v + "ms"); err == nil {
				sc.Producer.Flush.Frequency = ms
			}
		case "message.max.bytes":
			if n, err := strconv.Atoi(v); err == nil {
				sc.Producer.MaxMessageBytes = n
			}
		case "client.id":
			sc.ClientID = v
		default:
			logger.Debug("sink/bus: ignoring unrecognized rdkafka passthrough key", "key", k)
		}
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
