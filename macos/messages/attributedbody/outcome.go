package attributedbody

// Reason classifies why a strategy did not recover text.
type Reason int

const (
	// NotApplicable means the blob does not have the layout a strategy
	// expects (marker absent, not an archive).
	NotApplicable Reason = iota + 1
	// InsufficientData means a declared length runs past the end of the blob.
	InsufficientData
	// NoText means decoding worked but nothing passed validation.
	NoText
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case NotApplicable:
		return "not_applicable"
	case InsufficientData:
		return "insufficient_data"
	case NoText:
		return "no_text"
	default:
		return "recovered"
	}
}

// Outcome is the result of one extraction strategy. It holds either
// recovered text or a failure reason, never both.
type Outcome struct {
	text   string
	reason Reason
}

// Recovered returns a successful outcome carrying text.
func Recovered(text string) Outcome {
	return Outcome{text: text}
}

// NotRecovered returns a failed outcome with the given reason.
func NotRecovered(reason Reason) Outcome {
	if reason == 0 {
		reason = NoText
	}
	return Outcome{reason: reason}
}

// Text returns the recovered text and whether the outcome is a success.
func (o Outcome) Text() (string, bool) {
	return o.text, o.reason == 0
}

// Reason returns the failure reason, or 0 for a recovered outcome.
func (o Outcome) Reason() Reason {
	return o.reason
}

// OK reports whether text was recovered.
func (o Outcome) OK() bool {
	return o.reason == 0
}

// String renders the outcome for logs.
func (o Outcome) String() string {
	if o.OK() {
		return "recovered"
	}
	return o.reason.String()
}

// Blob is an attributedBody value read from the message table.
type Blob struct {
	MessageID int64
	Data      []byte
}
