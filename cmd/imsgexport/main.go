// Command imsgexport exports macOS Messages conversations to Markdown,
// recovering the text of SMS/RCS messages that only keep their body in the
// attributedBody column.
//
// Usage:
//
//	imsgexport export --contact +15551234567 --out conversation.md
//	imsgexport recent --contact "Priya" --limit 20
//	imsgexport contacts
//
// Configuration is read from flags, then the environment, then a .env file
// in the working directory (CONTACT_PHONE_NUMBER, MESSAGES_DB_PATH,
// GMAIL_ADDRESS, GMAIL_APP_PASSWORD).
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
