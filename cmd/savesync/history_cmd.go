package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage local save version history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryRollbackCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <game-id>",
		Short: "List local versions for a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			entries := cc.API.ListHistory(args[0])

			return printResult(entries, func() {
				for _, e := range entries {
					fmt.Printf("%s\t%s\t%s\n", e.Metadata.VersionID, humanTime(e.Metadata.Timestamp), e.Metadata.Hash[:12])
				}
			})
		},
	}
}

func newHistoryRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <game-id> <version-id>",
		Short: "Restore a version into the active snapshot directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			restored, err := cc.API.RollbackVersion(args[0], args[1])
			if err != nil {
				return err
			}

			return printResult(restored, func() {
				fmt.Printf("restored %s to %s\n", restored.Metadata.GameID, restored.ArchivePath)
			})
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <game-id> <version-id>",
		Short: "Delete one history version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return cc.API.DeleteHistoryItem(args[0], args[1])
		},
	}
}
