package messages

import "strings"

// reactionPrefixes are the lower-cased openings of tapback fallback text,
// e.g. `Loved “See you soon”`.
var reactionPrefixes = []string{
	"loved ",
	"liked ",
	"disliked ",
	"laughed at ",
	"emphasized ",
	"questioned ",
	"removed a heart from ",
	"removed a like from ",
}

// IsReaction reports whether msg is the text rendering of a tapback
// reaction rather than a message someone typed.
func IsReaction(msg Message) bool {
	text := strings.ToLower(strings.TrimSpace(msg.Text))
	if text == "" || !strings.ContainsAny(text, "\"“”") {
		return false
	}
	for _, prefix := range reactionPrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// IsTextMessage reports whether msg has text and, when filterReactions is
// set, is not a reaction.
func IsTextMessage(msg Message, filterReactions bool) bool {
	if !msg.HasText() {
		return false
	}
	return !filterReactions || !IsReaction(msg)
}

// FilterTextMessages keeps the messages accepted by [IsTextMessage].
func FilterTextMessages(msgs []Message, filterReactions bool) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if IsTextMessage(msg, filterReactions) {
			out = append(out, msg)
		}
	}
	return out
}
