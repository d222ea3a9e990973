package messages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	appleReferenceUnix = int64(978307200) // 2001-01-01T00:00:00Z

	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

// MessageReadState controls read filtering for [Store.ListMessages].
type MessageReadState string

const (
	// MessageReadStateAll returns both read and unread messages.
	MessageReadStateAll MessageReadState = "all"
	// MessageReadStateRead returns only messages marked as read.
	MessageReadStateRead MessageReadState = "read"
	// MessageReadStateUnread returns only unread inbound messages.
	MessageReadStateUnread MessageReadState = "unread"
)

// MessageQuery controls list filters for [Store.ListMessages].
//
// Limit defaults to 50 and is capped at 500. A negative Limit lists every
// matching message, which is what a full history export wants.
type MessageQuery struct {
	Contact   string
	ReadState MessageReadState
	FromMe    *bool
	Since     *time.Time
	Until     *time.Time
	Limit     int
}

// Message is one message row from the local Messages database.
//
// An empty Text means the row has no usable text, either because the text
// column was NULL and nothing could be recovered from attributedBody, or
// because the message carries only attachments.
type Message struct {
	RowID          int64
	GUID           string
	Text           string
	IsFromMe       bool
	IsRead         bool
	SentAt         time.Time
	ReadAt         *time.Time
	ContactID      string
	ContactName    string
	ChatIdentifier string
	ChatID         string
	Service        string
}

// HasText reports whether the message has non-blank text.
func (m Message) HasText() bool {
	return strings.TrimSpace(m.Text) != ""
}

// ListMessages returns messages newest first, filtered by contact, read
// state, direction and date. Messages whose text column is blank have their
// text recovered from attributedBody before they are returned.
func (s *Store) ListMessages(ctx context.Context, query MessageQuery) ([]Message, error) {
	switch {
	case query.Limit == 0:
		query.Limit = defaultMessageLimit
	case query.Limit > maxMessageLimit:
		query.Limit = maxMessageLimit
	case query.Limit < 0:
		query.Limit = -1
	}
	if query.ReadState == "" {
		query.ReadState = MessageReadStateAll
	}
	if query.ReadState != MessageReadStateAll && query.ReadState != MessageReadStateRead && query.ReadState != MessageReadStateUnread {
		return nil, fmt.Errorf("messages: invalid read state %q", query.ReadState)
	}
	if query.Since != nil && query.Until != nil && query.Until.Before(*query.Since) {
		return nil, fmt.Errorf("messages: until %s is before since %s", query.Until.Format(time.RFC3339), query.Since.Format(time.RFC3339))
	}

	where := []string{"COALESCE(m.is_empty, 0) = 0"}
	args := make([]any, 0, 8)

	if strings.TrimSpace(query.Contact) != "" {
		var identifier, handle, chatID string
		if contact, err := s.ResolveContact(ctx, query.Contact); err == nil {
			identifier = contact.ChatIdentifier
			handle = contact.Handle
			chatID = contact.ChatID
		} else {
			identifier = parseChatIdentifier(query.Contact)
			handle = strings.TrimSpace(query.Contact)
		}

		pieces := make([]string, 0, 7)
		if identifier != "" {
			pieces = append(pieces, "c.chat_identifier = ?")
			args = append(args, identifier)
		}
		if chatID != "" {
			pieces = append(pieces, "('any;-;' || c.chat_identifier) = ?", "('any;+;' || c.chat_identifier) = ?")
			args = append(args, chatID, chatID)
		}
		if handle != "" {
			pieces = append(pieces, "h.id = ?", "h.uncanonicalized_id = ?", "c.chat_identifier = ?", "c.display_name = ?")
			args = append(args, handle, handle, handle, handle)
		}
		where = append(where, "("+strings.Join(pieces, " OR ")+")")
	}

	if query.FromMe != nil {
		where = append(where, "m.is_from_me = ?")
		args = append(args, boolInt(*query.FromMe))
	}

	switch query.ReadState {
	case MessageReadStateRead:
		where = append(where, "m.is_read = 1")
	case MessageReadStateUnread:
		where = append(where, "m.is_from_me = 0", "m.is_read = 0")
	}

	if query.Since != nil {
		where = append(where, "m.date >= ?")
		args = append(args, timeToAppleNano(*query.Since))
	}
	if query.Until != nil {
		where = append(where, "m.date <= ?")
		args = append(args, timeToAppleNano(*query.Until))
	}
	args = append(args, query.Limit)

	stmt := fmt.Sprintf(`
WITH chat_for_message AS (
	SELECT message_id, MIN(chat_id) AS chat_id
	FROM chat_message_join
	GROUP BY message_id
)
SELECT
	m.ROWID,
	COALESCE(m.guid, ''),
	COALESCE(m.text, ''),
	COALESCE(m.is_from_me, 0),
	COALESCE(m.is_read, 0),
	COALESCE(m.date, 0),
	COALESCE(m.date_read, 0),
	COALESCE(h.id, ''),
	COALESCE(h.uncanonicalized_id, ''),
	COALESCE(c.chat_identifier, ''),
	COALESCE(c.service_name, ''),
	COALESCE(c.display_name, '')
FROM message m
LEFT JOIN handle h ON h.ROWID = m.handle_id
LEFT JOIN chat_for_message cfm ON cfm.message_id = m.ROWID
LEFT JOIN chat c ON c.ROWID = cfm.chat_id
WHERE %s
ORDER BY m.date DESC, m.ROWID DESC
LIMIT ?;
`, strings.Join(where, " AND "))

	records, err := s.query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	names := s.contactNames(ctx)

	messages := make([]Message, 0, len(records))
	for _, row := range records {
		if len(row) < 12 {
			continue
		}
		rowID, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}

		var readAt *time.Time
		if raw := strings.TrimSpace(row[6]); raw != "" && raw != "0" {
			if t := appleNanoToTime(raw); !t.IsZero() {
				readAt = &t
			}
		}

		handleID := firstNonEmpty(row[8], row[7])
		identifier := row[9]
		messages = append(messages, Message{
			RowID:          rowID,
			GUID:           row[1],
			Text:           row[2],
			IsFromMe:       parseBoolInt(row[3]),
			IsRead:         parseBoolInt(row[4]),
			SentAt:         appleNanoToTime(row[5]),
			ReadAt:         readAt,
			ContactID:      handleID,
			ContactName:    firstNonEmpty(names.byIdentifier[identifier], names.byHandle[handleID], row[11], handleID, identifier),
			ChatIdentifier: identifier,
			ChatID:         buildChatID(identifier),
			Service:        row[10],
		})
	}

	return s.Enhance(ctx, messages)
}

func appleNanoToTime(raw string) time.Time {
	nanos, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || nanos <= 0 {
		return time.Time{}
	}
	sec := nanos / int64(time.Second)
	nsec := nanos % int64(time.Second)
	return time.Unix(appleReferenceUnix+sec, nsec).UTC()
}

func timeToAppleNano(t time.Time) int64 {
	return (t.Unix()-appleReferenceUnix)*int64(time.Second) + int64(t.Nanosecond())
}

func parseBoolInt(raw string) bool {
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return i != 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
