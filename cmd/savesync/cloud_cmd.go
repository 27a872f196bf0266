package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCloudCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloud",
		Short: "Manage cloud authentication, devices, and sync mode",
	}

	cmd.AddCommand(newCloudLoginCmd())
	cmd.AddCommand(newCloudLogoutCmd())
	cmd.AddCommand(newCloudModeCmd())
	cmd.AddCommand(newCloudReconnectCmd())
	cmd.AddCommand(newCloudDevicesCmd())
	cmd.AddCommand(newCloudVersionsCmd())
	cmd.AddCommand(newCloudDownloadCmd())
	cmd.AddCommand(newCloudGamesCmd())

	return cmd
}

func newCloudLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Authenticate against the configured cloud backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			_, err := cc.API.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Println("logged in")

			return nil
		},
	}
}

func newCloudLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored cloud token and disable cloud sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mustCLIContext(cmd.Context()).API.Logout()
		},
	}
}

func newCloudModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode <off|official|selfhost>",
		Short: "Switch the active cloud backend mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mustCLIContext(cmd.Context()).API.UpdateCloudMode(args[0])
		},
	}
}

func newCloudReconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect",
		Short: "Force an immediate connectivity probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			online := cc.API.ReconnectCloud(cmd.Context())

			return printResult(online, func() {
				fmt.Printf("online=%v\n", online)
			})
		},
	}
}

func newCloudDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List and manage registered devices",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <token>",
		Short: "List devices registered to the authenticated account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			devices, err := cc.API.ListDevices(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printResult(devices, func() {
				for _, d := range devices {
					fmt.Printf("%s\t%s\t%s\n", d.DeviceID, d.Platform, d.DeviceName)
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <token> <device-id>",
		Short: "Remove a registered device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mustCLIContext(cmd.Context()).API.RemoveDevice(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}

func newCloudVersionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "versions <game-id>",
		Short: "List cloud versions for a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			versions, err := cc.API.ListCloudVersions(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			return printResult(versions, func() {
				for _, v := range versions {
					fmt.Printf("%s\t%s\t%s\n", v.VersionID, humanTime(v.Timestamp), humanSize(v.SizeBytes))
				}
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum versions to return (0 = backend default)")

	return cmd
}

func newCloudDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <game-id> <version-id>",
		Short: "Download a cloud version into the cloud downloads directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			path, err := cc.API.DownloadCloudVersion(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			return printResult(path, func() {
				fmt.Println(path)
			})
		},
	}
}

func newCloudGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List games known to the cloud backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			games, err := cc.API.ListGames(cmd.Context())
			if err != nil {
				return err
			}

			return printResult(games, func() {
				for _, g := range games {
					fmt.Println(g)
				}
			})
		},
	}
}
