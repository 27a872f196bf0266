package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and control the sync engine and upload queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current sync queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			s := cc.API.GetSyncStatus()

			return printResult(s, func() {
				fmt.Printf("queue=%d syncing=%v online=%v\n", s.QueueLength, s.IsSyncing, s.Online)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "now",
		Short: "Trigger an immediate reconciliation pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mustCLIContext(cmd.Context()).API.ForceSyncNow()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear-queue",
		Short: "Drop every queued (not active) upload job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mustCLIContext(cmd.Context()).API.ClearSyncQueue()
			return nil
		},
	})

	return cmd
}
