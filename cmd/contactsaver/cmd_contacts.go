package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spachava753/contactsaver/addressbook"
)

var contactsLimit int

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Inspect the local address book",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List address book entries, most recently changed first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings.Load()
		if err != nil {
			return err
		}
		store, err := openAddressBook(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		items, err := store.List(ctx, contactsLimit)
		if err != nil {
			return err
		}
		total, err := store.Count(ctx)
		if err != nil {
			return err
		}
		printContacts(cmd.OutOrStdout(), items, total)
		return nil
	},
}

func printContacts(out io.Writer, items []addressbook.Item, total int) {
	if len(items) == 0 {
		fmt.Fprintln(out, gray("No contacts"))
		return
	}
	for _, it := range items {
		phones := make([]string, 0, len(it.Phones))
		for _, p := range it.Phones {
			phones = append(phones, p.Value)
		}
		fmt.Fprintf(out, "%-24s %s\n", bold(it.DisplayName), strings.Join(phones, ", "))
		for _, e := range it.Emails {
			fmt.Fprintf(out, "%-24s %s\n", "", gray(e.Value))
		}
	}
	if total > len(items) {
		fmt.Fprintf(out, "%s\n", gray(fmt.Sprintf("showing %d of %d", len(items), total)))
	}
}

func init() {
	contactsListCmd.Flags().IntVarP(&contactsLimit, "limit", "n", 50, "Maximum entries to list")
	contactsCmd.AddCommand(contactsListCmd)
	rootCmd.AddCommand(contactsCmd)
}
