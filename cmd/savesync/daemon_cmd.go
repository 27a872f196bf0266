package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crosssave/agent/internal/events"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync agent in the foreground",
		Long:  "Starts the upload queue, sync engine, and connectivity monitor, draining their events to stdout until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			evCh, unsubscribe := cc.Daemon.Bus.Subscribe()
			defer unsubscribe()

			go drainEvents(ctx, evCh)

			cc.Logger.Info("savesync daemon starting")

			err := cc.Daemon.Run(ctx)
			if err != nil {
				return err
			}

			return cc.Daemon.Close()
		},
	}
}

// drainEvents prints every bus event to stdout as NDJSON (--json) or a
// terse "topic: payload" line, until ctx is canceled or the channel closes.
func drainEvents(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}

			if flagJSON {
				if err := printJSONLine(ev); err != nil {
					errorLine("savesync: encoding event: %v", err)
				}
				continue
			}

			fmt.Printf("%s: %+v\n", ev.Topic, ev.Payload)
		}
	}
}
