package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var contactsLimit int

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List recent conversations",
	Args:  cobra.NoArgs,
	RunE:  runContacts,
}

func init() {
	contactsCmd.Flags().IntVarP(&contactsLimit, "limit", "n", 25, "number of conversations to list")
	rootCmd.AddCommand(contactsCmd)
}

func runContacts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	contacts, err := store.ListContacts(ctx, contactsLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tHANDLE\tSERVICE\tMESSAGES\tUNREAD\tLAST")
	for _, c := range contacts {
		last := "-"
		if !c.LastMessage.IsZero() {
			last = c.LastMessage.Local().Format(dateLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", c.Name, c.ContactID, c.Service, c.MessageCount, c.UnreadCount, last)
	}
	return tw.Flush()
}
