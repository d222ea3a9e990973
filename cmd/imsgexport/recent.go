package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/spachava753/imsgexport/macos/messages"
)

var (
	recentContact string
	recentLimit   int
	recentUnread  bool
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the most recent messages with a contact",
	Args:  cobra.NoArgs,
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().StringVarP(&recentContact, "contact", "c", "", "contact name, handle or chat id (default $"+envContact+")")
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 20, "number of messages to print (max 500)")
	recentCmd.Flags().BoolVar(&recentUnread, "unread", false, "only unread incoming messages")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, _ []string) error {
	contact, err := contactOrDefault(recentContact)
	if err != nil {
		return err
	}
	if recentLimit <= 0 {
		recentLimit = 20
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	query := messages.MessageQuery{Contact: contact, Limit: recentLimit}
	if recentUnread {
		query.ReadState = messages.MessageReadStateUnread
	}
	msgs, err := store.ListMessages(ctx, query)
	if err != nil {
		return err
	}
	msgs = messages.FilterTextMessages(msgs, true)
	if len(msgs) == 0 {
		cmd.Printf("No text messages with %s\n", contact)
		return nil
	}

	cmd.Printf("Last %d message%s with %s:\n\n", len(msgs), plural(len(msgs)), contact)
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		cmd.Printf("%s: %s\n", senderLabel(msg), msg.SentAt.Local().Format("Jan 2, 3:04 PM"))
		cmd.Printf("   %s\n\n", strings.ReplaceAll(strings.TrimSpace(msg.Text), "\n", "\n   "))
	}
	return nil
}

func senderLabel(msg messages.Message) string {
	if msg.IsFromMe {
		return "Me"
	}
	return "Them"
}
