package main

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spachava753/imsgexport/macos/messages"
)

var (
	dbPath  string
	envFile string
	verbose bool

	cfg    config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "imsgexport",
	Short: "Export macOS Messages conversations to Markdown",
	Long: `Reads ~/Library/Messages/chat.db read-only and exports conversations.
Messages whose text column is empty (common for SMS/RCS) have their text
recovered from the attributedBody column.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to chat.db (default ~/Library/Messages/chat.db)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log text recovery details")
}

func setup(cmd *cobra.Command, _ []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().Timestamp().Logger()

	loaded, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = loaded
	if strings.TrimSpace(dbPath) != "" {
		cfg.DBPath = dbPath
	}
	return nil
}

func openStore(ctx context.Context) (*messages.Store, error) {
	return messages.Open(ctx, cfg.DBPath, messages.WithLogger(logger))
}

func contactOrDefault(flagValue string) (string, error) {
	if contact := strings.TrimSpace(flagValue); contact != "" {
		return contact, nil
	}
	if cfg.Contact != "" {
		return cfg.Contact, nil
	}
	return "", errors.New("a contact is required: pass --contact or set " + envContact)
}
