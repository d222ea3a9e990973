package messages

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/spachava753/imsgexport/macos/messages/attributedbody"
)

// RecoverText returns msg with Text recovered from the message's
// attributedBody when its text is blank. When the text is already present,
// or nothing can be recovered, msg is returned unchanged.
//
// Lookup and decode failures are logged and never returned.
func (s *Store) RecoverText(ctx context.Context, msg Message) Message {
	if msg.HasText() {
		return msg
	}

	blob, err := s.AttributedBody(ctx, msg.RowID)
	if err != nil {
		if errors.Is(err, ErrNoAttributedBody) {
			s.log.Debug().Int64("row_id", msg.RowID).Msg("message has no attributedBody")
		} else {
			s.log.Warn().Err(err).Int64("row_id", msg.RowID).Msg("attributedBody lookup failed")
		}
		return msg
	}

	result := attributedbody.Trace(blob.Data)
	if !result.Recovered() {
		s.log.Debug().
			Int64("row_id", msg.RowID).
			Int("blob_bytes", len(blob.Data)).
			Strs("attempts", attemptLabels(result.Attempts)).
			Msg("no text recovered from attributedBody")
		return msg
	}

	s.log.Debug().
		Int64("row_id", msg.RowID).
		Str("strategy", result.Strategy).
		Strs("attempts", attemptLabels(result.Attempts)).
		Msg("recovered text from attributedBody")
	msg.Text = result.Text
	return msg
}

// Enhance runs [Store.RecoverText] over msgs in parallel and returns a new
// slice in the same order. The input slice is not modified.
//
// The only error is cancellation of ctx; a failing message never stops the
// others.
func (s *Store) Enhance(ctx context.Context, msgs []Message) ([]Message, error) {
	out := make([]Message, len(msgs))
	copy(out, msgs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range out {
		if out[i].HasText() {
			continue
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.RecoverText(gctx, out[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EnhanceMessages opens the database at dbPath (empty for the default
// location), recovers blank message text and closes the database on every
// path. Only a failure to open the database, or cancellation, is returned.
func EnhanceMessages(ctx context.Context, dbPath string, msgs []Message, opts ...Option) ([]Message, error) {
	store, err := Open(ctx, dbPath, opts...)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Enhance(ctx, msgs)
}

func attemptLabels(attempts []attributedbody.Attempt) []string {
	labels := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		labels = append(labels, attempt.Strategy+"="+attempt.Outcome.String())
	}
	return labels
}
