package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag       string
	communityFlag string
	rootCmd       = &cobra.Command{
		Use:   "ledgerctl",
		Short: "CLI client for the progression ledger REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8085", "Ledger service base URL")
	rootCmd.PersistentFlags().StringVarP(&communityFlag, "community", "c", "", "Community ID (required for member operations)")

	// leaderboard subcommand
	leaderboardCmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the community leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			metric, _ := cmd.Flags().GetString("metric")
			limit, _ := cmd.Flags().GetInt("limit")
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/leaderboard?metric=%s&limit=%d", apiFlag, communityFlag, metric, limit)
			data, err := doGet(url)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	leaderboardCmd.Flags().StringP("metric", "m", "xp", "Ranking metric (xp, gmp, messages, tactical)")
	leaderboardCmd.Flags().IntP("limit", "l", 10, "Number of entries to return")
	rootCmd.AddCommand(leaderboardCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
