package cloud

import (
	"log/slog"
	"sync"
)

// PauseResumer is implemented by the sync engine so the Cell can pause it
// across a backend switch (spec §4.4 "Mode switch").
type PauseResumer interface {
	Pause()
	Resume()
}

// SwitchedEvent is published on Bus when SwitchBackend installs a new
// variant.
type SwitchedEvent struct {
	Mode Mode
}

// Bus is the minimal publish surface the Cell needs; satisfied by
// internal/events.Bus without importing it (avoids an import cycle between
// cloud and the daemon that wires both).
type Bus interface {
	Publish(topic string, payload any)
}

// TopicBackendSwitched is the event topic published after a successful
// backend switch.
const TopicBackendSwitched = "cloud.backend_switched"

// Cell is the single mutex-guarded holder of the active Backend, giving the
// rest of the system one hot-path lock per spec's shared-resource policy
// ("Cloud backend: single mutex, hot path").
type Cell struct {
	mu      sync.Mutex
	backend Backend
	engine  PauseResumer
	bus     Bus
	logger  *slog.Logger
}

// NewCell creates a Cell holding the given initial backend.
func NewCell(initial Backend, engine PauseResumer, bus Bus, logger *slog.Logger) *Cell {
	return &Cell{backend: initial, engine: engine, bus: bus, logger: logger}
}

// SetEngine attaches the PauseResumer to pause across a backend switch.
// Exists because the engine and the Cell it dispatches through are
// constructed in opposite dependency order; callers wire this once during
// daemon startup, before either is running.
func (c *Cell) SetEngine(engine PauseResumer) {
	c.mu.Lock()
	c.engine = engine
	c.mu.Unlock()
}

// Get returns the currently active backend under lock.
func (c *Cell) Get() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.backend
}

// Switch installs next as the active backend, pausing the sync engine for
// the duration and emitting a "backend switched" event on success (spec
// §4.4).
func (c *Cell) Switch(mode Mode, next Backend) {
	if c.engine != nil {
		c.engine.Pause()
		defer c.engine.Resume()
	}

	c.mu.Lock()
	c.backend = next
	c.mu.Unlock()

	c.logger.Info("cloud backend switched", slog.String("mode", mode.String()))

	if c.bus != nil {
		c.bus.Publish(TopicBackendSwitched, SwitchedEvent{Mode: mode})
	}
}
