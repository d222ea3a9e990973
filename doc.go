// Package imsgexport is a lightweight index for the subpackages in this
// module. It exports nothing; import a subpackage instead.
//
// Available subpackages:
//   - github.com/spachava753/imsgexport/macos/messages/attributedbody
//     Text recovery from Messages attributedBody blobs (typedstream and
//     keyed-archive encodings).
//   - github.com/spachava753/imsgexport/macos/messages
//     Read-only access to chat.db: contacts, messages and text recovery.
//   - github.com/spachava753/imsgexport/export
//     Markdown transcripts of a conversation.
//   - github.com/spachava753/imsgexport/gmail
//     Mailing or filing a transcript through Gmail.
//
// The imsgexport command under cmd/imsgexport wires these together.
package imsgexport
