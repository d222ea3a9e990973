package attributedbody

import (
	"bytes"
	"encoding/binary"
	"strings"
)

const (
	// markerHeaderSkip is the number of typedstream bytes between the end of
	// the class name and the length prefix of the string payload.
	markerHeaderSkip = 5
	// extendedLength flags a two byte little-endian length.
	extendedLength = 0x81
)

var stringMarker = []byte("NSString")

// ExtractMarker reads the length-prefixed string that follows the first
// "NSString" class marker in a typedstream blob.
//
// The layout is parsed strictly: a missing marker is NotApplicable and any
// length that overruns the blob is InsufficientData.
func ExtractMarker(blob []byte) Outcome {
	markerAt := bytes.Index(blob, stringMarker)
	if markerAt < 0 {
		return NotRecovered(NotApplicable)
	}

	contentStart := markerAt + len(stringMarker) + markerHeaderSkip
	if contentStart >= len(blob) {
		return NotRecovered(InsufficientData)
	}

	textLength := int(blob[contentStart])
	textStart := contentStart + 1
	if blob[contentStart] == extendedLength {
		if contentStart+3 > len(blob) {
			return NotRecovered(InsufficientData)
		}
		textLength = int(binary.LittleEndian.Uint16(blob[contentStart+1 : contentStart+3]))
		textStart = contentStart + 3
	}

	if textStart+textLength > len(blob) {
		return NotRecovered(InsufficientData)
	}

	text := strings.TrimSpace(strings.ToValidUTF8(string(blob[textStart:textStart+textLength]), "\uFFFD"))
	if text == "" {
		return NotRecovered(NoText)
	}
	return Recovered(text)
}
