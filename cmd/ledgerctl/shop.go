package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	shopCmd := &cobra.Command{Use: "shop", Short: "Shop and inventory operations"}

	// items
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "List the shop catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag + "/v0/shop/items")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	shopCmd.AddCommand(itemsCmd)

	// view
	viewCmd := &cobra.Command{
		Use:   "view MEMBER_ID",
		Short: "Show the catalog priced against a member's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/shop", apiFlag, communityFlag, args[0])
			data, err := doGet(url)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	shopCmd.AddCommand(viewCmd)

	// inventory
	inventoryCmd := &cobra.Command{
		Use:   "inventory MEMBER_ID",
		Short: "List a member's owned items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/inventory", apiFlag, communityFlag, args[0])
			data, err := doGet(url)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	shopCmd.AddCommand(inventoryCmd)

	// buy
	buyCmd := &cobra.Command{
		Use:   "buy MEMBER_ID ITEM_ID",
		Short: "Purchase a catalog item for a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/purchases", apiFlag, communityFlag, args[0])
			data, err := doPostJSON(url, map[string]interface{}{"itemId": args[1]})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	shopCmd.AddCommand(buyCmd)

	// activate
	activateCmd := &cobra.Command{
		Use:   "activate MEMBER_ID ENTRY_ID",
		Short: "Activate a held inventory entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if communityFlag == "" {
				return fmt.Errorf("--community required")
			}
			url := fmt.Sprintf("%s/v0/communities/%s/members/%s/inventory/%s/activate", apiFlag, communityFlag, args[0], args[1])
			data, err := doPostJSON(url, struct{}{})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	shopCmd.AddCommand(activateCmd)

	rootCmd.AddCommand(shopCmd)
}
