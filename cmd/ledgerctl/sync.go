package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	syncCmd := &cobra.Command{Use: "sync", Short: "Remote mirror operations"}

	fullCmd := &cobra.Command{
		Use:   "full",
		Short: "Run a full resync of every record to the mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(apiFlag+"/v0/sync/full", struct{}{})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	syncCmd.AddCommand(fullCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent mirror backup entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			data, err := doGet(fmt.Sprintf("%s/v0/sync/history?limit=%d", apiFlag, limit))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	historyCmd.Flags().IntP("limit", "l", 20, "Number of entries to return")
	syncCmd.AddCommand(historyCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show replication backlog and last push",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/v0/sync/status")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	syncCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(syncCmd)
}
