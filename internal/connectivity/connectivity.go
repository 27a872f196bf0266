// Package connectivity implements spec §4.7: a periodic health probe
// feeding an online/offline flag consumed by the upload queue and sync
// engine.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const probeInterval = 30 * time.Second

// Checker probes the cloud backend's health.
type Checker interface {
	CheckConnection(ctx context.Context) bool
}

// Bus publishes online/offline transition events.
type Bus interface {
	Publish(topic string, payload any)
}

// TopicConnectivityChanged carries the current ConnectionStatus, published
// on every probe tick (spec §4.7), not just on online/offline transitions.
const TopicConnectivityChanged = "connectivity.changed"

// ChangedEvent is published on every probe, carrying the full connection
// status record (spec §4.7).
type ChangedEvent struct {
	Online bool
	Status ConnectionStatus
}

// ConnectionStatus is spec §4.7's connection-status record, maintained
// across probes and pushed to the shell on every one of them.
type ConnectionStatus struct {
	Connected   bool      `json:"connected"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
}

// OnlineSink is notified of the first probe's result and of every
// online/offline transition after it — the queue and sync engine implement
// this to wake their loops.
type OnlineSink interface {
	SetOnline(online bool)
}

// Monitor runs a periodic health probe and tracks the current online flag.
type Monitor struct {
	checker Checker
	bus     Bus
	logger  *slog.Logger
	sinks   []OnlineSink

	mu     sync.Mutex
	online bool
	probed bool
	status ConnectionStatus
}

// New creates a Monitor. Initial state is offline until the first probe.
func New(checker Checker, bus Bus, logger *slog.Logger, sinks ...OnlineSink) *Monitor {
	return &Monitor{checker: checker, bus: bus, logger: logger, sinks: sinks}
}

// Online returns the current connectivity flag.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// Status returns the current connection-status record (spec §4.7).
func (m *Monitor) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

// Probe runs an out-of-band connectivity check immediately, outside the
// regular 30s cadence, and returns the resulting online flag (spec §6
// reconnect_cloud).
func (m *Monitor) Probe(ctx context.Context) bool {
	m.probe(ctx)
	return m.Online()
}

// Run probes immediately, then every 30s, until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.probe(ctx)

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// probe runs one health check and unconditionally updates the connection
// status record (spec §4.7), publishing it on the bus every time this runs.
// Sinks are only woken, and the transition is only logged, on the first
// probe and afterwards when the online flag actually flips — probing itself
// is not evidence of a state change.
func (m *Monitor) probe(ctx context.Context) {
	result := m.checker.CheckConnection(ctx)

	m.mu.Lock()
	changed := !m.probed || result != m.online
	m.probed = true
	m.online = result

	if result {
		m.status.Connected = true
		m.status.LastSuccess = time.Now()
		m.status.LastError = ""
	} else {
		m.status.Connected = false
		m.status.LastError = "connectivity probe failed: cloud backend unreachable"
	}

	status := m.status
	m.mu.Unlock()

	if changed {
		m.logger.Info("connectivity changed", slog.Bool("online", result))

		for _, s := range m.sinks {
			s.SetOnline(result)
		}
	}

	if m.bus != nil {
		m.bus.Publish(TopicConnectivityChanged, ChangedEvent{Online: result, Status: status})
	}
}
