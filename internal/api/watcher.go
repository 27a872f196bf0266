package api

import "github.com/crosssave/agent/internal/watcher"

const watcherEventBuffer = 64

// StartWatcher implements spec §6 start_watcher(paths): starts the
// filesystem watcher and republishes every coalesced event onto the shared
// event bus as watcher://fs-event (spec §6 Event surface).
func (a *API) StartWatcher(paths []string) error {
	out := make(chan watcher.Event, watcherEventBuffer)

	if err := a.d.Watcher.Start(paths, out); err != nil {
		return err
	}

	go a.relayWatcherEvents(out)

	return nil
}

// WatcherFSEvent is the payload published on watcher://fs-event.
type WatcherFSEvent struct {
	Path      string `json:"path"`
	EventType string `json:"event_type"`
}

func (a *API) relayWatcherEvents(events <-chan watcher.Event) {
	for ev := range events {
		a.d.Bus.Publish(TopicWatcherFSEvent, WatcherFSEvent{Path: ev.Path, EventType: ev.Type.String()})
	}
}

// TopicWatcherFSEvent is the event bus topic for coalesced filesystem
// changes (spec §6 "watcher://fs-event").
const TopicWatcherFSEvent = "watcher.fs_event"

// StopWatcher implements spec §6 stop_watcher.
func (a *API) StopWatcher() {
	a.d.Watcher.Stop()
}
