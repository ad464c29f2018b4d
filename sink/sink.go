// Package sink implements the Sink Adapter (spec §4.G): it serializes a
// Measurement to the canonical wire record (§6) and enqueues it on the
// configured sinks — a Kafka message bus and/or an HTTP endpoint. Both
// sinks are independent bounded-queue clients; a failure on one never
// affects the other (§4.G, §9 "Sink fan-out").
package sink

import "github.com/vpbank/sensorpipe/models"

// Sink is the shared enqueue contract every sink implementation satisfies.
// Send must not block the caller beyond a short internal critical section —
// the underlying client applies its own bounded-queue backpressure, which
// Send surfaces as a logged warning rather than an error the caller must
// handle (§4.G). Close drains or releases resources at shutdown.
//
// Grounded on the teacher's transport/file.Transport interface
// (Send/Close), regeneralized here for network sinks that need an
// asynchronous delivery callback instead of a synchronous io.Writer.
type Sink interface {
	Send(m models.Measurement) error
	Close() error
}
