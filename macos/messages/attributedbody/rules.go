package attributedbody

import (
	"regexp"
	"strings"
	"unicode"
)

// metadataRules lists the strings Apple embeds next to the message body.
// Every strategy that proposes a candidate checks it through IsMessageText,
// so this table is the only place the shared rejection rules live.
var metadataRules = struct {
	minLength int
	// prefixes rejected outright.
	prefixes []string
	// qualifiedPrefix is rejected only when the candidate also contains
	// qualifier, so short "NS..." words in real messages survive.
	qualifiedPrefix string
	qualifier       string
	substrings      []string
	exact           []string
}{
	minLength:       2,
	prefixes:        []string{"kIM", "__kIM"},
	qualifiedPrefix: "NS",
	qualifier:       "Attribute",
	substrings:      []string{"AttributeName"},
	exact:           []string{"NSString", "NSParagraphStyle"},
}

// guidPattern matches a 36 character run of hex digits and dashes, the shape
// of the message and attachment GUIDs stored alongside the body.
var guidPattern = regexp.MustCompile(`^[A-Fa-f0-9-]{36}$`)

// IsGUID reports whether s looks like a 36 character hex-with-dashes GUID.
func IsGUID(s string) bool {
	return guidPattern.MatchString(s)
}

// IsMessageText reports whether s is plausible message text rather than
// archive metadata (attribute keys, class names, GUIDs).
func IsMessageText(s string) bool {
	if len([]rune(s)) < metadataRules.minLength {
		return false
	}
	for _, prefix := range metadataRules.prefixes {
		if strings.HasPrefix(s, prefix) {
			return false
		}
	}
	if strings.HasPrefix(s, metadataRules.qualifiedPrefix) && strings.Contains(s, metadataRules.qualifier) {
		return false
	}
	if IsGUID(s) {
		return false
	}
	for _, sub := range metadataRules.substrings {
		if strings.Contains(s, sub) {
			return false
		}
	}
	for _, exact := range metadataRules.exact {
		if s == exact {
			return false
		}
	}
	return hasAlphanumeric(s)
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
