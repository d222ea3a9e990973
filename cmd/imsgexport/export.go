package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/spachava753/imsgexport/export"
	"github.com/spachava753/imsgexport/gmail"
	"github.com/spachava753/imsgexport/macos/messages"
)

var (
	exportContact       string
	exportOut           string
	exportSince         string
	exportUntil         string
	exportKeepReactions bool
	exportMailTo        []string
	exportMailbox       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a conversation to a Markdown file",
	Long: `Exports every text message exchanged with a contact, newest first.
Tapback reactions are dropped unless --keep-reactions is set. The transcript
can also be mailed (--mail-to) or filed into a Gmail mailbox (--mail-archive).`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportContact, "contact", "c", "", "contact name, handle or chat id (default $"+envContact+")")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "conversation.md", "output Markdown file")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only messages on or after this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportUntil, "until", "", "only messages on or before this date (YYYY-MM-DD)")
	exportCmd.Flags().BoolVar(&exportKeepReactions, "keep-reactions", false, "keep tapback reaction messages")
	exportCmd.Flags().StringSliceVar(&exportMailTo, "mail-to", nil, "also email the transcript to these addresses")
	exportCmd.Flags().StringVar(&exportMailbox, "mail-archive", "", "also file the transcript into this Gmail mailbox")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	contact, err := contactOrDefault(exportContact)
	if err != nil {
		return err
	}
	since, err := parseDay("since", exportSince, false)
	if err != nil {
		return err
	}
	until, err := parseDay("until", exportUntil, true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info().Str("contact", contact).Msg("fetching messages")
	msgs, err := store.ListMessages(ctx, messages.MessageQuery{
		Contact: contact,
		Since:   since,
		Until:   until,
		Limit:   -1,
	})
	if err != nil {
		return err
	}
	listed := len(msgs)
	msgs = messages.FilterTextMessages(msgs, !exportKeepReactions)

	opts := export.Options{Contact: contact, Since: since, Until: until}
	written, err := export.WriteFile(exportOut, msgs, opts)
	if err != nil {
		return err
	}
	logger.Debug().Int("listed", listed).Int("exported", written).Msg("filtered messages")
	cmd.Printf("Found %d text message%s\n", written, plural(written))
	cmd.Printf("Exported to %s\n", exportOut)

	if len(exportMailTo) == 0 && strings.TrimSpace(exportMailbox) == "" {
		return nil
	}

	transcript := gmail.Transcript{
		To:      exportMailTo,
		Mailbox: exportMailbox,
		Subject: "Message History: " + contact,
		Body:    export.Markdown(msgs, opts),
	}
	if len(exportMailTo) > 0 {
		delivery, err := gmail.SendTranscript(transcript)
		if err != nil {
			return err
		}
		logger.Info().Str("message_id", delivery.MessageID).Strs("to", exportMailTo).Msg("transcript sent")
	}
	if strings.TrimSpace(exportMailbox) != "" {
		delivery, err := gmail.FileTranscript(transcript)
		if err != nil {
			return err
		}
		logger.Info().Str("mailbox", delivery.Mailbox).Msg("transcript filed")
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
