package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/vpbank/sensorpipe/models"
)

// HTTPConfig controls the HTTP sink. Field names mirror the `conf` keys
// that populate them (§6): Endpoint from http_endpoint, Timeout from
// http_timeout, ConnTimeout from http_connttimeout,
// MaxTotalConnections from http_max_total_connections, Verbose from
// http_verbose, MaxQueued from rb_http_max_messages.
type HTTPConfig struct {
	Endpoint            string
	Timeout             time.Duration
	ConnTimeout         time.Duration
	MaxTotalConnections int
	Verbose             bool
	MaxQueued           int
}

// HTTPSink posts Measurements, one per request, to a configured HTTP
// endpoint via one retryablehttp client shared for the process lifetime.
// The client is built in NewHTTPSink, not on first use. A bounded channel (MaxQueued, from rb_http_max_messages) backs
// the "sink client internally applies bounded-queue backpressure" clause
// of §4.G: Send enqueues without blocking and a background worker performs
// the actual POSTs. Grounded on GoogleCloudPlatform-ops-agent, which
// carries go-retryablehttp for a structurally identical
// "POST telemetry, retry transient failures" sink.
type HTTPSink struct {
	client   *retryablehttp.Client
	endpoint string
	logger   *slog.Logger

	queue chan []byte
	done  chan struct{}
}

// NewHTTPSink constructs an HTTPSink and starts its background POST worker.
func NewHTTPSink(cfg HTTPConfig, logger *slog.Logger) (*HTTPSink, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sink/http: no endpoint configured")
	}

	maxQueued := cfg.MaxQueued
	if maxQueued <= 0 {
		maxQueued = 512
	}
	connTimeout := cfg.ConnTimeout
	if connTimeout <= 0 {
		connTimeout = 3 * time.Second
	}
	reqTimeout := cfg.Timeout
	if reqTimeout <= 0 {
		reqTimeout = 10 * time.Second
	}
	maxConns := cfg.MaxTotalConnections
	if maxConns <= 0 {
		maxConns = 4
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connTimeout,
		}).DialContext,
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxConns,
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: reqTimeout}
	rc.RetryMax = 3
	rc.Logger = nil
	if cfg.Verbose {
		rc.Logger = retryableLogAdapter{logger}
	}

	h := &HTTPSink{
		client:   rc,
		endpoint: cfg.Endpoint,
		logger:   logger,
		queue:    make(chan []byte, maxQueued),
		done:     make(chan struct{}),
	}
	go h.run()
	return h, nil
}

// Send serializes m and enqueues it for the background POST worker. It
// never blocks: a full queue is the "bounded-queue backpressure" §4.G
// describes, surfaced here as a logged warning with the record dropped
// rather than a blocking enqueue or a returned error.
func (h *HTTPSink) Send(m models.Measurement) error {
	data, err := Serialize(m)
	if err != nil {
		return fmt.Errorf("sink/http: serialize: %w", err)
	}
	select {
	case h.queue <- data:
		return nil
	default:
		h.logger.Warn("sink/http: queue full, dropping record", "endpoint", h.endpoint, "bytes", len(data))
		return nil
	}
}

func (h *HTTPSink) run() {
	defer close(h.done)
	for data := range h.queue {
		req, err := retryablehttp.NewRequest(http.MethodPost, h.endpoint, bytes.NewReader(data))
		if err != nil {
			h.logger.Error("sink/http: build request", "error", err.Error())
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := h.client.Do(req)
		if err != nil {
			h.logger.Error("sink/http: post failed", "endpoint", h.endpoint, "error", err.Error())
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			h.logger.Error("sink/http: non-2xx response", "endpoint", h.endpoint, "status", resp.StatusCode)
		}
	}
}

// Close stops accepting new sends and waits for the queue to drain.
func (h *HTTPSink) Close() error {
	close(h.queue)
	<-h.done
	return nil
}

// retryableLogAdapter routes retryablehttp's verbose request/retry logging
// through the collector's own slog.Logger when http_verbose is set.
type retryableLogAdapter struct{ logger *slog.Logger }

func (a retryableLogAdapter) Printf(format string, args ...interface{}) {
	a.logger.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
}
