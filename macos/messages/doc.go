// Package messages reads the local macOS Messages database and recovers
// message text that only exists in the attributedBody column.
//
// The package is intended for export and archiving scripts.
//
// Data sources
//
//   - SQLite (~/Library/Messages/chat.db), opened read-only: listing queries
//     and attributedBody point lookups. Nothing is ever written.
//   - AppleScript (Messages.app): optional contact name enrichment.
//
// Exported API (recommended usage order)
//
//  1. Open(ctx, path, opts...)
//     Open the database once per batch; Close releases it.
//  2. Store.ListContacts(ctx, limit) / Store.ResolveContact(ctx, query)
//     Browse chats or turn a name, chat id or handle into one contact.
//     Ambiguous queries return an error listing the candidates.
//  3. Store.ListMessages(ctx, query)
//     Read messages filtered by Contact, ReadState, FromMe, Since/Until and
//     Limit. Blank text is recovered from attributedBody before returning.
//  4. FilterTextMessages(msgs, filterReactions)
//     Drop messages that still have no text, and optionally tapback
//     reactions ("Loved “...”").
//
// Text recovery
//
// Some SMS/RCS rows have a NULL text column. [Store.RecoverText] reads the
// row's attributedBody with a prepared ROWID lookup and runs it through
// [attributedbody.Extract]. On success it returns a copy of the message with
// Text set; otherwise the message comes back unchanged. [Store.Enhance] does
// the same for a batch in parallel, and [EnhanceMessages] wraps open,
// enhance and close for callers holding messages from elsewhere.
//
// Operational notes
//
//   - A missing or unreadable chat.db is the only fatal error; reading it
//     usually requires Full Disk Access for the calling process.
//   - Pass [WithLogger] to see which recovery strategy handled each message.
//   - SQLite access uses github.com/mattn/go-sqlite3 (CGO required).
package messages
