// Package export renders Messages conversations as Markdown transcripts.
//
// A transcript is a header (contact, message count, date range, optional
// filter, generation time) followed by one block per message, newest first:
//
//	**Oct 5, 2024, 3:04 PM - Them:**
//	See you at the station
//
// Messages without text are left out.
package export

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spachava753/imsgexport/macos/messages"
)

const (
	messageTimeLayout   = "Jan 2, 2006, 3:04 PM"
	dateLayout          = "1/2/2006"
	generatedTimeLayout = "1/2/2006, 3:04:05 PM"
)

// Options controls transcript rendering.
type Options struct {
	// Contact is shown in the title, usually the phone number or handle
	// the export was requested for.
	Contact string
	// Since and Until are echoed in the header when the export was filtered.
	Since *time.Time
	Until *time.Time
	// GeneratedAt defaults to the current time.
	GeneratedAt time.Time
	// Location defaults to time.Local.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Markdown returns the transcript for msgs.
func Markdown(msgs []messages.Message, opts Options) string {
	included := transcriptMessages(msgs)

	var b strings.Builder
	b.WriteString(Header(included, opts))
	for i, msg := range included {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatMessage(msg, opts.location()))
	}
	return b.String()
}

// Render writes the transcript for msgs to w and returns how many messages
// it contains.
func Render(w io.Writer, msgs []messages.Message, opts Options) (int, error) {
	included := transcriptMessages(msgs)
	if _, err := io.WriteString(w, Markdown(included, opts)); err != nil {
		return 0, fmt.Errorf("export: writing transcript failed: %w", err)
	}
	return len(included), nil
}

// WriteFile writes the transcript for msgs to path.
func WriteFile(path string, msgs []messages.Message, opts Options) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("export: creating %s failed: %w", path, err)
	}
	n, err := Render(f, msgs, opts)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("export: closing %s failed: %w", path, closeErr)
	}
	return n, err
}

// FormatMessage renders one message block.
func FormatMessage(msg messages.Message, loc *time.Location) string {
	sender := "Them"
	if msg.IsFromMe {
		sender = "Me"
	}
	return fmt.Sprintf("**%s - %s:**\n%s\n", msg.SentAt.In(loc).Format(messageTimeLayout), sender, msg.Text)
}

// Header renders the transcript header for the given messages.
func Header(msgs []messages.Message, opts Options) string {
	loc := opts.location()
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	printer := message.NewPrinter(language.English)

	var b strings.Builder
	fmt.Fprintf(&b, "# Message History: %s\n\n", opts.Contact)
	b.WriteString(printer.Sprintf("**Total Messages:** %d\n", len(msgs)))
	fmt.Fprintf(&b, "**Date Range:** %s\n", dateRange(msgs, loc))

	if opts.Since != nil || opts.Until != nil {
		filters := make([]string, 0, 2)
		if opts.Since != nil {
			filters = append(filters, "From "+opts.Since.In(loc).Format(dateLayout))
		}
		if opts.Until != nil {
			filters = append(filters, "To "+opts.Until.In(loc).Format(dateLayout))
		}
		fmt.Fprintf(&b, "**Filtered:** %s\n", strings.Join(filters, " "))
	}

	fmt.Fprintf(&b, "**Generated:** %s\n\n", generatedAt.In(loc).Format(generatedTimeLayout))
	b.WriteString("---\n\n")
	return b.String()
}

func dateRange(msgs []messages.Message, loc *time.Location) string {
	if len(msgs) == 0 {
		return "n/a"
	}
	oldest, newest := msgs[0].SentAt, msgs[0].SentAt
	for _, msg := range msgs[1:] {
		if msg.SentAt.Before(oldest) {
			oldest = msg.SentAt
		}
		if msg.SentAt.After(newest) {
			newest = msg.SentAt
		}
	}
	return oldest.In(loc).Format(dateLayout) + " - " + newest.In(loc).Format(dateLayout)
}

// transcriptMessages drops blank messages and sorts newest first.
func transcriptMessages(msgs []messages.Message) []messages.Message {
	out := make([]messages.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.HasText() {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.After(out[j].SentAt)
	})
	return out
}
