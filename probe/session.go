// Package probe implements the Probe Dispatcher (spec §4.C): given a
// {kind, argument} descriptor it returns a textual value and, when
// parseable, a numeric one. It also owns the SNMP session pool the
// dispatcher draws connections from.
package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/sensorpipe/models"
)

// NewSession creates and connects a gosnmp session for one sensor. Only
// SNMP v1 and v2c are supported: the sensor descriptor (§3) carries a
// single shared "community" string and no v3 USM credentials, unlike the
// teacher's DeviceConfig/V3Credentials model, so v3 is rejected rather than
// silently downgraded.
func NewSession(s models.SensorDescriptor, timeout time.Duration) (*gosnmp.GoSNMP, error) {
	version := s.SNMPVersion
	if version == "" {
		version = "2c"
	}

	g := &gosnmp.GoSNMP{
		Target:  s.Peer,
		Port:    161,
		Timeout: timeout,
		Retries: 1,
		MaxOids: 1,
	}
	if host, portStr, err := splitHostPort(s.Peer); err == nil {
		g.Target = host
		if p, perr := strconv.Atoi(portStr); perr == nil {
			g.Port = uint16(p)
		}
	}

	switch version {
	case "1":
		g.Version = gosnmp.Version1
		g.Community = s.Community
	case "2c":
		g.Version = gosnmp.Version2c
		g.Community = s.Community
	default:
		return nil, fmt.Errorf("probe: unsupported snmp_version %q (sensor %s has no v3 credentials)", version, s.SensorName)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("probe: snmp connect %s: %w", s.Peer, err)
	}
	return g, nil
}

// splitHostPort splits "host:port"; a bare host with no port returns the
// input unchanged with an error so the caller keeps the default port.
func splitHostPort(peer string) (host, port string, err error) {
	idx := strings.LastIndex(peer, ":")
	if idx < 0 {
		return peer, "", fmt.Errorf("no port")
	}
	return peer[:idx], peer[idx+1:], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session pool
//
// §5 "Shared resources" describes a single read-only-after-init SNMP session
// per device whose *setup* (not use) is the non-reentrant operation: "session
// instantiation guarded by a mutex because the underlying transport library
// is not re-entrant for session setup." A sensor is ticked on whichever
// worker happens to pop it off the shared queue next, and the scheduler
// re-enqueues every sensor every sleep_main interval independent of whether
// the previous tick has finished (§5 "Scheduling"), so two overlapping ticks
// for the same sensor can race to use its session. SessionPool models that
// directly: one persistent session per sensor, guarded by a per-sensor mutex
// that serializes overlapping ticks, with the process-wide dialMu reserved
// for the one genuinely non-reentrant step — gosnmp's Connect().
// ─────────────────────────────────────────────────────────────────────────────

// sensorSession is the single persistent connection kept for one sensor.
// Its mutex is held for the duration of one tick's Get..Put/Discard span.
type sensorSession struct {
	mu   sync.Mutex
	conn *gosnmp.GoSNMP
}

// SessionPoolOptions configures SessionPool behaviour.
type SessionPoolOptions struct {
	// Dial creates a new gosnmp session for a sensor. Defaults to NewSession;
	// tests substitute a fake to avoid real network I/O.
	Dial func(models.SensorDescriptor, time.Duration) (*gosnmp.GoSNMP, error)
}

func (o *SessionPoolOptions) defaults() {
	if o.Dial == nil {
		o.Dial = NewSession
	}
}

// SessionPool hands out the one persistent SNMP session belonging to each
// sensor, dialing lazily on first use (or after a Discard) and serializing
// any ticks that overlap for the same sensor.
type SessionPool struct {
	opts SessionPoolOptions

	dialMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]*sensorSession
	closed   bool
}

// NewSessionPool creates a ready-to-use pool.
func NewSessionPool(opts SessionPoolOptions) *SessionPool {
	opts.defaults()
	return &SessionPool{
		opts:     opts,
		sessions: make(map[string]*sensorSession),
	}
}

// Get waits for exclusive use of s's session — instantaneous unless an
// overlapping tick for the same sensor is still holding it — then returns
// its connection, dialing one under the pool-wide dial mutex if this is the
// first use or a prior Discard closed it. ctx cancellation only short-
// circuits the wait for that lock; it does not interrupt an in-progress
// dial.
func (p *SessionPool) Get(ctx context.Context, s models.SensorDescriptor, timeout time.Duration) (*gosnmp.GoSNMP, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("probe: session pool closed")
	}
	sess, ok := p.sessions[s.SensorName]
	if !ok {
		sess = &sensorSession{}
		p.sessions[s.SensorName] = sess
	}
	p.mu.Unlock()

	if err := lockSession(ctx, sess); err != nil {
		return nil, err
	}

	if sess.conn != nil {
		return sess.conn, nil
	}

	p.dialMu.Lock()
	conn, err := p.opts.Dial(s, timeout)
	p.dialMu.Unlock()
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.conn = conn
	return conn, nil
}

// lockSession acquires sess.mu, giving up early if ctx is cancelled first.
func lockSession(ctx context.Context, sess *sensorSession) error {
	for {
		if sess.mu.TryLock() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Put releases sensorName's session lock, keeping its connection open for
// the next tick — sessions are never closed on a clean return, matching
// §5's "read-only after init" session prototype.
func (p *SessionPool) Put(sensorName string, conn *gosnmp.GoSNMP) {
	p.mu.Lock()
	sess, ok := p.sessions[sensorName]
	p.mu.Unlock()
	if !ok {
		if conn.Conn != nil {
			_ = conn.Conn.Close()
		}
		return
	}
	sess.mu.Unlock()
}

// Discard closes a connection known to be broken and clears it, so the next
// Get for this sensor dials a fresh one, then releases the session lock.
func (p *SessionPool) Discard(sensorName string, conn *gosnmp.GoSNMP) {
	if conn.Conn != nil {
		_ = conn.Conn.Close()
	}
	p.mu.Lock()
	sess, ok := p.sessions[sensorName]
	p.mu.Unlock()
	if !ok {
		return
	}
	sess.conn = nil
	sess.mu.Unlock()
}

// Close prevents further Get calls and closes every sensor's connection.
// Callers must have already drained the worker pool (no in-flight
// Get/Put/Discard) before calling Close — app.Stop does so by waiting on
// the worker pool before closing the session pool.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, sess := range p.sessions {
		if sess.conn != nil && sess.conn.Conn != nil {
			_ = sess.conn.Conn.Close()
		}
	}
	return nil
}
