package messages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Contact is a Messages contact/conversation target.
type Contact struct {
	ChatID         string
	ChatIdentifier string
	ContactID      string
	Handle         string
	Name           string
	Service        string
	LastMessage    time.Time
	MessageCount   int
	UnreadCount    int
}

type contactStat struct {
	ChatIdentifier        string
	Service               string
	DisplayName           string
	Handle                string
	UncanonicalizedHandle string
	LastMessageRaw        string
	MessageCount          int
	UnreadCount           int
}

type chatParticipant struct {
	ChatID string
	Handle string
	Name   string
}

type contactNames struct {
	byIdentifier map[string]string
	byHandle     map[string]string
}

// ResolveContact finds the one contact matching query by name, handle or
// chat id. Punctuation in phone numbers is ignored. An exact match on any
// field beats substring matches; a tie at the best level is an error naming
// the candidates.
func (s *Store) ResolveContact(ctx context.Context, query string) (Contact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Contact{}, errors.New("messages: query is required")
	}

	contacts, err := s.ListContacts(ctx, 1000)
	if err != nil {
		return Contact{}, err
	}
	return resolveContactFromList(contacts, query)
}

// ListContacts lists recent chats newest first, with names from Messages.app
// when AppleScript access is available.
func (s *Store) ListContacts(ctx context.Context, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 50
	}

	stats, err := s.listContactStats(ctx, max(limit*4, 200))
	if err != nil {
		return nil, err
	}
	names := s.contactNames(ctx)

	contacts := make([]Contact, 0, len(stats))
	for _, stat := range stats {
		handle := firstNonEmpty(stat.UncanonicalizedHandle, stat.Handle)
		contact := Contact{
			ChatID:         buildChatID(stat.ChatIdentifier),
			ChatIdentifier: stat.ChatIdentifier,
			Handle:         handle,
			Service:        stat.Service,
			LastMessage:    appleNanoToTime(stat.LastMessageRaw),
			MessageCount:   stat.MessageCount,
			UnreadCount:    stat.UnreadCount,
		}
		contact.ContactID = firstNonEmpty(contact.Handle, contact.ChatIdentifier)
		contact.Name = firstNonEmpty(
			names.byIdentifier[stat.ChatIdentifier],
			names.byHandle[handle],
			stat.DisplayName,
			contact.ContactID,
		)
		contacts = append(contacts, contact)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		if contacts[i].LastMessage.Equal(contacts[j].LastMessage) {
			return contacts[i].Name < contacts[j].Name
		}
		return contacts[i].LastMessage.After(contacts[j].LastMessage)
	})

	if len(contacts) > limit {
		contacts = contacts[:limit]
	}
	return contacts, nil
}

func (s *Store) listContactStats(ctx context.Context, limit int) ([]contactStat, error) {
	records, err := s.query(ctx, `
WITH message_stats AS (
	SELECT
		cmj.chat_id AS chat_id,
		MAX(m.date) AS last_date,
		COUNT(m.ROWID) AS message_count,
		SUM(CASE WHEN m.is_from_me = 0 AND m.is_read = 0 THEN 1 ELSE 0 END) AS unread_count
	FROM chat_message_join cmj
	JOIN message m ON m.ROWID = cmj.message_id
	WHERE COALESCE(m.is_empty, 0) = 0
	GROUP BY cmj.chat_id
), first_handle AS (
	SELECT chat_id, MIN(handle_id) AS handle_id
	FROM chat_handle_join
	GROUP BY chat_id
)
SELECT
	COALESCE(c.chat_identifier, ''),
	COALESCE(c.service_name, ''),
	COALESCE(c.display_name, ''),
	COALESCE(h.id, ''),
	COALESCE(h.uncanonicalized_id, ''),
	COALESCE(ms.last_date, 0),
	COALESCE(ms.message_count, 0),
	COALESCE(ms.unread_count, 0)
FROM chat c
LEFT JOIN message_stats ms ON ms.chat_id = c.ROWID
LEFT JOIN first_handle fh ON fh.chat_id = c.ROWID
LEFT JOIN handle h ON h.ROWID = fh.handle_id
ORDER BY ms.last_date DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}

	stats := make([]contactStat, 0, len(records))
	for _, row := range records {
		if len(row) < 8 {
			continue
		}
		count, _ := strconv.Atoi(row[6])
		unread, _ := strconv.Atoi(row[7])
		stats = append(stats, contactStat{
			ChatIdentifier:        row[0],
			Service:               row[1],
			DisplayName:           row[2],
			Handle:                row[3],
			UncanonicalizedHandle: row[4],
			LastMessageRaw:        row[5],
			MessageCount:          count,
			UnreadCount:           unread,
		})
	}
	return stats, nil
}

// contactNames maps chat identifiers and handles to Messages.app names.
// Lookup failures yield empty maps.
func (s *Store) contactNames(ctx context.Context) contactNames {
	names := contactNames{byIdentifier: map[string]string{}, byHandle: map[string]string{}}
	if s.participants == nil {
		return names
	}
	participants, err := s.participants(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("contact name lookup unavailable")
		return names
	}
	for _, participant := range participants {
		name := strings.TrimSpace(participant.Name)
		if name == "" {
			continue
		}
		if identifier := parseChatIdentifier(participant.ChatID); identifier != "" {
			names.byIdentifier[identifier] = name
		}
		if handle := strings.TrimSpace(participant.Handle); handle != "" {
			names.byHandle[handle] = name
		}
	}
	return names
}

func listChatParticipants(ctx context.Context) ([]chatParticipant, error) {
	script := []string{
		`set oldDelimiters to AppleScript's text item delimiters`,
		`set AppleScript's text item delimiters to "\n"`,
		`tell application "Messages"`,
		`set rows to {}`,
		`repeat with c in chats`,
		`set cid to id of c`,
		`set h to ""`,
		`set n to ""`,
		`try`,
		`set ps to participants of c`,
		`if (count of ps) > 0 then`,
		`set p to first item of ps`,
		`set h to handle of p`,
		`set n to full name of p`,
		`end if`,
		`end try`,
		`set end of rows to (cid & "|||" & h & "|||" & n)`,
		`end repeat`,
		`set outputText to rows as text`,
		`end tell`,
		`set AppleScript's text item delimiters to oldDelimiters`,
		`return outputText`,
	}
	out, err := runAppleScript(ctx, script)
	if err != nil {
		return nil, err
	}
	return parseParticipants(out), nil
}

func parseParticipants(out string) []chatParticipant {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	participants := make([]chatParticipant, 0, len(lines))
	for _, line := range lines {
		parts := strings.Split(line, "|||")
		if len(parts) != 3 {
			continue
		}
		participants = append(participants, chatParticipant{
			ChatID: strings.TrimSpace(parts[0]),
			Handle: strings.TrimSpace(parts[1]),
			Name:   strings.TrimSpace(parts[2]),
		})
	}
	return participants
}

func runAppleScript(ctx context.Context, lines []string) (string, error) {
	args := make([]string, 0, len(lines)*2)
	for _, line := range lines {
		args = append(args, "-e", line)
	}

	cmd := exec.CommandContext(ctx, "/usr/bin/osascript", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("messages: osascript failed: %w: %s", err, strings.TrimSpace(out.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

type matchLevel int

const (
	noMatch matchLevel = iota
	partialMatch
	exactMatch
)

// contactQuery is a user query prepared for matching: the lower-cased text
// and, for phone numbers and addresses, the canonical handle form.
type contactQuery struct {
	text   string
	handle string
}

func newContactQuery(raw string) contactQuery {
	return contactQuery{
		text:   strings.ToLower(strings.TrimSpace(raw)),
		handle: canonicalHandle(raw),
	}
}

// level scores contact against q by its best field.
func (q contactQuery) level(contact Contact) matchLevel {
	level := noMatch
	for _, field := range [...]string{contact.Name, contact.Handle, contact.ContactID, contact.ChatIdentifier, contact.ChatID} {
		value := strings.ToLower(strings.TrimSpace(field))
		if value == "" {
			continue
		}
		handle := canonicalHandle(field)
		if value == q.text || (q.handle != "" && handle == q.handle) {
			return exactMatch
		}
		if strings.Contains(value, q.text) || (q.handle != "" && strings.Contains(handle, q.handle)) {
			level = partialMatch
		}
	}
	return level
}

// resolveContactFromList keeps the contacts at the highest match level in
// one pass. Exactly one survivor resolves the query.
func resolveContactFromList(contacts []Contact, query string) (Contact, error) {
	q := newContactQuery(query)
	if q.text == "" {
		return Contact{}, errors.New("messages: query is required")
	}

	best := noMatch
	var candidates []Contact
	for _, contact := range contacts {
		level := q.level(contact)
		if level == noMatch || level < best {
			continue
		}
		if level > best {
			best = level
			candidates = candidates[:0]
		}
		candidates = append(candidates, contact)
	}

	switch len(candidates) {
	case 0:
		return Contact{}, fmt.Errorf("messages: contact %q not found", query)
	case 1:
		return candidates[0], nil
	default:
		return Contact{}, fmt.Errorf("messages: contact %q is ambiguous: %s", query, describeCandidates(candidates, 3))
	}
}

func describeCandidates(candidates []Contact, limit int) string {
	var b strings.Builder
	for i, contact := range candidates {
		if i == limit {
			fmt.Fprintf(&b, " and %d more", len(candidates)-limit)
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		id := firstNonEmpty(contact.ContactID, contact.ChatIdentifier, contact.ChatID)
		if contact.Name != "" && contact.Name != id {
			fmt.Fprintf(&b, "%s <%s>", contact.Name, id)
		} else {
			b.WriteString(id)
		}
	}
	return b.String()
}

// canonicalHandle lower-cases value and drops phone number punctuation, so
// "+1 (555) 123-4567" and "15551234567" compare equal.
func canonicalHandle(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '+', '.':
			return -1
		}
		return unicode.ToLower(r)
	}, strings.TrimSpace(value))
}

func parseChatIdentifier(chatID string) string {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ""
	}
	parts := strings.Split(chatID, ";")
	return parts[len(parts)-1]
}

func buildChatID(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	return "any;-;" + identifier
}

func normalizeID(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")
	return replacer.Replace(value)
}
