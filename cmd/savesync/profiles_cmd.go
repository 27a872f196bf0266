package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosssave/agent/internal/profile"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage emulator save-path profiles",
	}

	cmd.AddCommand(newProfilesListCmd())

	return cmd
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known emulator profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			profiles, err := cc.API.ListProfiles()
			if err != nil {
				return err
			}

			return printResult(profiles, func() {
				for _, p := range profiles {
					printProfile(p)
				}
			})
		},
	}
}

func printProfile(p profile.Profile) {
	fmt.Printf("%s\t%s\t%v\n", p.EmulatorID, p.DisplayName, p.DefaultSavePaths)
}
