// Package gmail delivers conversation transcripts through a Gmail account.
//
// Two operations are exposed:
//
//   - SendTranscript: mail a rendered transcript to one or more recipients
//     over Gmail SMTP.
//   - FileTranscript: store a transcript in a mailbox (Gmail label) over
//     IMAP without sending anything, creating the mailbox when missing.
//
// # Authentication
//
// Runtime credentials are read from environment variables:
//
//   - GMAIL_ADDRESS
//   - GMAIL_APP_PASSWORD
//
// Transcripts are sent as UTF-8 text/plain with quoted-printable transfer
// encoding, so long Markdown lines survive SMTP line limits.
//
// Typical composition with the export package:
//
//	markdown := export.Markdown(msgs, export.Options{Contact: contact})
//	_, err := gmail.FileTranscript(gmail.Transcript{
//		Mailbox: "Messages Archive",
//		Subject: "Message History: " + contact,
//		Body:    markdown,
//	})
package gmail
