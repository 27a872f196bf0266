package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPackageCmd() *cobra.Command {
	var (
		emulatorID string
		patterns   []string
	)

	cmd := &cobra.Command{
		Use:   "package <game-id> <path>...",
		Short: "Package save files into a new local version",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			gameID, paths := args[0], args[1:]

			packaged, err := cc.API.PackageSave(gameID, emulatorID, paths, patterns)
			if err != nil {
				return err
			}

			return printResult(packaged, func() {
				fmt.Printf("packaged %s version %s (%d files)\n",
					packaged.Metadata.GameID, packaged.Metadata.VersionID, len(packaged.Metadata.FileList))
			})
		},
	}

	cmd.Flags().StringVar(&emulatorID, "emulator", "", "emulator profile id")
	cmd.Flags().StringArrayVar(&patterns, "pattern", nil, "glob pattern to include (repeatable)")

	return cmd
}
