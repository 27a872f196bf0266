package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit app settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current settings record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := mustCLIContext(cmd.Context()).API.GetAppSettings()
			return json.NewEncoder(os.Stdout).Encode(s)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-retention <n>",
		Short: "Set the retention_limit (5-20)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			var n int
			if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
				return fmt.Errorf("invalid retention limit %q: %w", args[0], err)
			}

			s := cc.API.GetAppSettings()
			s.RetentionLimit = n

			return cc.API.UpdateAppSettings(s)
		},
	})

	return cmd
}
