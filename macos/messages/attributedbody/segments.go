package attributedbody

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minSegmentLength = 4

// segmentPattern matches runs of characters that can appear in a plain
// message body.
var segmentPattern = regexp.MustCompile(`[\p{L}\p{N}\s.,!?'";:()\-]+`)

// typedstreamNames are class names and the stream header that show up as
// printable runs in raw typedstream bytes. Only the raw scan sees them as
// candidates, so they are filtered here rather than in IsMessageText.
var typedstreamNames = map[string]struct{}{
	"streamtyped":               {},
	"NSObject":                  {},
	"NSAttributedString":        {},
	"NSMutableAttributedString": {},
	"NSMutableString":           {},
	"NSDictionary":              {},
	"NSNumber":                  {},
	"NSValue":                   {},
	"NSArray":                   {},
	"NSData":                    {},
}

// ExtractSegments is the last-resort strategy. It decodes blob permissively,
// blanks out control characters and returns the longest printable run that
// passes IsMessageText.
//
// Picking the longest run is best effort: message bodies are usually longer
// than the metadata fragments around them, but nothing guarantees it.
func ExtractSegments(blob []byte) Outcome {
	if len(blob) == 0 {
		return NotRecovered(NoText)
	}

	cleaned := strings.Map(blankControl, strings.ToValidUTF8(string(blob), "\uFFFD"))

	best := ""
	bestLength := 0
	for _, run := range segmentPattern.FindAllString(cleaned, -1) {
		candidate := strings.TrimSpace(run)
		length := utf8.RuneCountInString(candidate)
		if length < minSegmentLength || IsGUID(candidate) || !IsMessageText(candidate) {
			continue
		}
		if _, ok := typedstreamNames[candidate]; ok {
			continue
		}
		// Ties go to the later run.
		if length >= bestLength {
			best, bestLength = candidate, length
		}
	}

	if best == "" {
		return NotRecovered(NoText)
	}
	return Recovered(best)
}

func blankControl(r rune) rune {
	switch {
	case r <= 0x08, r >= 0x0B && r <= 0x1F, r >= 0x7F && r <= 0x9F:
		return ' '
	default:
		return r
	}
}
