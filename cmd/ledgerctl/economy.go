package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	// event
	var member, kind string
	var count int64
	eventCmd := &cobra.Command{
		Use:   "event",
		Short: "Record an activity event for a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" || member == "" || kind == "" {
				return fmt.Errorf("--community, --member and --kind required")
			}
			payload := map[string]interface{}{
				"communityId": communityFlag,
				"memberId":    member,
				"kind":        kind,
				"count":       count,
			}
			data, err := doPostJSON(apiFlag+"/v0/events", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	eventCmd.Flags().StringVarP(&member, "member", "m", "", "Member ID (required)")
	eventCmd.Flags().StringVarP(&kind, "kind", "k", "", "Activity kind, e.g. message or voice_minute (required)")
	eventCmd.Flags().Int64VarP(&count, "count", "n", 1, "Number of occurrences")
	_ = eventCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(eventCmd)

	// daily
	dailyCmd := &cobra.Command{
		Use:   "daily MEMBER_ID",
		Short: "Claim the member's daily reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/daily", apiFlag, communityFlag, args[0])
			data, err := doPostJSON(url, struct{}{})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(dailyCmd)

	// transfer
	var to, note string
	var amount int64
	transferCmd := &cobra.Command{
		Use:   "transfer MEMBER_ID",
		Short: "Transfer GMP from a member to another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" || to == "" || amount == 0 {
				return fmt.Errorf("--community, --to and --amount required")
			}
			payload := map[string]interface{}{"to": to, "amount": amount}
			if note != "" {
				payload["note"] = note
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/transfers", apiFlag, communityFlag, args[0])
			data, err := doPostJSON(url, payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	transferCmd.Flags().StringVarP(&to, "to", "t", "", "Receiving member ID (required)")
	transferCmd.Flags().Int64VarP(&amount, "amount", "n", 0, "GMP amount before fee (required)")
	transferCmd.Flags().StringVar(&note, "note", "", "Optional transfer note")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(transferCmd)
}
