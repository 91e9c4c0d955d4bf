package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	memberCmd := &cobra.Command{Use: "member", Short: "Member record operations"}

	// get
	getCmd := &cobra.Command{
		Use:   "get MEMBER_ID",
		Short: "Get a member record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s", apiFlag, communityFlag, args[0])
			data, err := doGet(url)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	memberCmd.AddCommand(getCmd)

	// transactions
	txnCmd := &cobra.Command{
		Use:   "transactions MEMBER_ID",
		Short: "Show a member's recent currency transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/transactions?limit=%d", apiFlag, communityFlag, args[0], limit)
			data, err := doGet(url)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	txnCmd.Flags().IntP("limit", "l", 20, "Number of transactions to return")
	memberCmd.AddCommand(txnCmd)

	// adjust
	var xpDelta, gmpDelta int64
	var reason string
	adjustCmd := &cobra.Command{
		Use:   "adjust MEMBER_ID",
		Short: "Apply a moderation XP/GMP adjustment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			if xpDelta == 0 && gmpDelta == 0 {
				return fmt.Errorf("--xp or --gmp required")
			}
			payload := map[string]interface{}{"xpDelta": xpDelta, "gmpDelta": gmpDelta}
			if reason != "" {
				payload["reason"] = reason
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/adjust", apiFlag, communityFlag, args[0])
			data, err := doPostJSON(url, payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	adjustCmd.Flags().Int64VarP(&xpDelta, "xp", "x", 0, "XP delta (may be negative)")
	adjustCmd.Flags().Int64VarP(&gmpDelta, "gmp", "g", 0, "GMP delta (may be negative)")
	adjustCmd.Flags().StringVarP(&reason, "reason", "r", "", "Audit note for the adjustment")
	memberCmd.AddCommand(adjustCmd)

	// verify
	var revoke bool
	verifyCmd := &cobra.Command{
		Use:   "verify MEMBER_ID",
		Short: "Set or revoke a member's verified flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			payload := map[string]interface{}{"verified": !revoke}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/verify", apiFlag, communityFlag, args[0])
			data, err := doPostJSON(url, payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	verifyCmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke instead of grant")
	memberCmd.AddCommand(verifyCmd)

	// bio
	bioCmd := &cobra.Command{
		Use:   "bio MEMBER_ID TEXT",
		Short: "Set a member's profile bio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/bio", apiFlag, communityFlag, args[0])
			data, err := doPostJSON(url, map[string]interface{}{"bio": args[1]})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	memberCmd.AddCommand(bioCmd)

	rootCmd.AddCommand(memberCmd)
}
