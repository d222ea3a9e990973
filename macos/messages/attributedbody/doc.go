// Package attributedbody recovers message text from the attributedBody
// column of the macOS Messages database.
//
// On some iOS versions SMS and RCS rows have a NULL text column and keep the
// body only inside attributedBody, a serialized NSAttributedString. This
// package does not deserialize those archives in general. It pulls out the
// one string that is the message body and fails quietly when it cannot.
//
// Strategies (tried in order by [Extract])
//
//  1. [ExtractMarker]: reads the length-prefixed string after the first
//     "NSString" class marker of a typedstream blob. Strict and exact.
//  2. [ExtractArchive]: decodes a binary property list (NSKeyedArchiver
//     graph) and searches it, depth bounded, for a plausible string.
//  3. [ExtractSegments]: scans printable runs of the raw bytes and keeps the
//     longest plausible one. Best effort.
//
// Every strategy returns an [Outcome]: recovered text or one of
// [NotApplicable], [InsufficientData], [NoText]. Candidate strings from the
// archive and segment strategies are checked with [IsMessageText], which
// rejects attribute keys and GUIDs. The segment scan also skips the
// typedstream class names it meets in raw bytes.
//
// All functions are pure and safe for concurrent use.
package attributedbody
