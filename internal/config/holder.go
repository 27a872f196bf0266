package config

import "sync"

// Holder provides thread-safe access to a mutable *Settings plus the
// immutable path it was loaded from. Every component that needs Settings
// (the sync engine, upload queue, cloud backend, CLI handlers) reads
// through a shared Holder so a single update_app_settings call is visible
// everywhere without races (spec §5 "Settings: single mutex, readers get a
// clone").
type Holder struct {
	mu   sync.RWMutex
	s    *Settings
	path string
}

// NewHolder creates a Holder with the initial settings and settings path.
func NewHolder(s *Settings, path string) *Holder {
	return &Holder{s: s, path: path}
}

// Path returns the settings file path. Immutable after construction.
func (h *Holder) Path() string { return h.path }

// Get returns a shallow copy of the current settings, safe to read without
// holding the lock further.
func (h *Holder) Get() Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return *h.s
}

// Update validates and persists new settings, then swaps the in-memory
// value under the write lock. Callers should pass the whole record, not a
// partial patch — mirrors update_app_settings in spec §6.
func (h *Holder) Update(s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if err := SaveSettings(h.path, s); err != nil {
		return err
	}

	h.mu.Lock()
	h.s = s
	h.mu.Unlock()

	return nil
}
