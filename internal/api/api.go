// Package api implements every RPC-style operation in spec §6 as a plain Go
// function returning (T, error): the idiomatic-Go reading of "inputs
// JSON-serializable, outputs Result<T,string>" (the stringification happens
// only at the CLI's output-formatting edge, never inside this package).
package api

import (
	"log/slog"

	"github.com/crosssave/agent/internal/daemon"
)

// API is the command surface bound to one running Daemon. Every method
// corresponds to exactly one spec §6 operation.
type API struct {
	d      *daemon.Daemon
	logger *slog.Logger
}

// New binds an API to d. d must already be constructed (daemon.New); Run is
// not required to have been called for read-only operations, but most cloud
// and sync operations assume the background loops are running.
func New(d *daemon.Daemon) *API {
	return &API{d: d, logger: d.Logger()}
}
