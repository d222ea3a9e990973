package attributedbody

// Strategy is one named way of pulling text out of a blob.
type Strategy struct {
	Name    string
	Extract func(blob []byte) Outcome
}

// pipeline is the fallback order used by Extract: most precise first.
// Callers wanting another order pass their own list to TraceWith.
var pipeline = []Strategy{
	{Name: "marker", Extract: ExtractMarker},
	{Name: "archive", Extract: ExtractArchive},
	{Name: "segments", Extract: ExtractSegments},
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Strategy string
	Outcome  Outcome
}

// Result is what Trace returns: the recovered text, if any, and every
// strategy that ran to get there.
type Result struct {
	Text     string
	Strategy string
	Attempts []Attempt
}

// Recovered reports whether any strategy produced text.
func (r Result) Recovered() bool {
	return r.Strategy != ""
}

// Extract returns the first text recovered by the marker, archive and
// segment strategies, tried in that order.
// It never panics and always returns; ok is false when every strategy failed.
func Extract(blob []byte) (text string, ok bool) {
	result := Trace(blob)
	return result.Text, result.Recovered()
}

// Trace runs the same strategies as Extract and reports each attempt.
func Trace(blob []byte) Result {
	return TraceWith(pipeline, blob)
}

// TraceWith runs strategies in order and stops at the first success.
// A strategy that panics counts as NotApplicable.
func TraceWith(strategies []Strategy, blob []byte) Result {
	var result Result
	for _, strategy := range strategies {
		outcome := runStrategy(strategy, blob)
		result.Attempts = append(result.Attempts, Attempt{Strategy: strategy.Name, Outcome: outcome})
		if text, ok := outcome.Text(); ok {
			result.Text = text
			result.Strategy = strategy.Name
			return result
		}
	}
	return result
}

func runStrategy(strategy Strategy, blob []byte) (outcome Outcome) {
	defer func() {
		if recover() != nil {
			outcome = NotRecovered(NotApplicable)
		}
	}()
	return strategy.Extract(blob)
}
