package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cloud, sync, and storage status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			cloudStatus := cc.API.GetCloudStatus()
			syncStatus := cc.API.GetSyncStatus()

			storage, err := cc.API.GetStorageInfo()
			if err != nil {
				return err
			}

			return printResult(struct {
				Cloud   any `json:"cloud"`
				Sync    any `json:"sync"`
				Storage any `json:"storage"`
			}{cloudStatus, syncStatus, storage}, func() {
				if isInteractive() {
					fmt.Println("savesync status")
					fmt.Println("---------------")
				}

				fmt.Printf("cloud:   mode=%s online=%v device_id=%s\n", cloudStatus.Mode, cloudStatus.Online, cloudStatus.DeviceID)
				fmt.Printf("sync:    queue=%d syncing=%v online=%v\n", syncStatus.QueueLength, syncStatus.IsSyncing, syncStatus.Online)
				fmt.Printf("storage: %s across %d versions (%s)\n", humanSize(storage.TotalSizeBytes), storage.TotalVersions, storage.HistoryPath)
			})
		},
	}
}
