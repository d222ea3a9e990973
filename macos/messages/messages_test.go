package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nalgeon/be"
)

var fixtureBase = time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

type fixtureMessage struct {
	rowID  int64
	chat   int64
	text   any
	body   []byte
	fromMe bool
	sentAt time.Time
}

func markerBody(text string) []byte {
	blob := []byte("streamtyped\x81\xe8\x03\x84\x01@\x84\x84\x84\x12NSAttributedString\x00\x84\x84\x08NSObject\x00\x85\x92\x84\x84\x84\x08NSString\x01\x94\x84\x01+")
	blob = append(blob, byte(len(text)))
	blob = append(blob, text...)
	return append(blob, "\x86\x84\x02iI\x01\x05\x92\x84\x84\x84\x0cNSDictionary\x00"...)
}

func createFixtureDB(t *testing.T, messages []fixtureMessage) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	be.Err(t, err, nil)
	defer db.Close()

	schema := []string{
		`CREATE TABLE handle (ROWID INTEGER PRIMARY KEY, id TEXT, uncanonicalized_id TEXT)`,
		`CREATE TABLE chat (ROWID INTEGER PRIMARY KEY, chat_identifier TEXT, service_name TEXT, display_name TEXT)`,
		`CREATE TABLE message (ROWID INTEGER PRIMARY KEY, guid TEXT, text TEXT, attributedBody BLOB, handle_id INTEGER,
			is_from_me INTEGER, is_read INTEGER, date INTEGER, date_read INTEGER, is_empty INTEGER)`,
		`CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER)`,
		`CREATE TABLE chat_handle_join (chat_id INTEGER, handle_id INTEGER)`,
		`INSERT INTO handle VALUES (1, '+15551234567', NULL), (2, 'pat@example.com', NULL)`,
		`INSERT INTO chat VALUES (1, '+15551234567', 'SMS', ''), (2, 'pat@example.com', 'iMessage', '')`,
		`INSERT INTO chat_handle_join VALUES (1, 1), (2, 2)`,
	}
	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		be.Err(t, err, nil)
	}

	for _, m := range messages {
		_, err := db.Exec(
			`INSERT INTO message VALUES (?, ?, ?, ?, ?, ?, 1, ?, 0, 0)`,
			m.rowID, fmt.Sprintf("guid-%d", m.rowID), m.text, m.body, m.chat, boolInt(m.fromMe), timeToAppleNano(m.sentAt),
		)
		be.Err(t, err, nil)
		_, err = db.Exec(`INSERT INTO chat_message_join VALUES (?, ?)`, m.chat, m.rowID)
		be.Err(t, err, nil)
	}
	return path
}

func openFixture(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(context.Background(), path)
	be.Err(t, err, nil)
	store.participants = func(context.Context) ([]chatParticipant, error) {
		return []chatParticipant{{ChatID: "SMS;-;+15551234567", Handle: "+15551234567", Name: "Priya Nair"}}, nil
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func defaultFixture() []fixtureMessage {
	return []fixtureMessage{
		{rowID: 1, chat: 1, text: "Plain text message", sentAt: fixtureBase},
		{rowID: 2, chat: 1, text: nil, body: markerBody("Recovered SMS body"), sentAt: fixtureBase.Add(time.Hour)},
		{rowID: 3, chat: 1, text: "  ", body: []byte("\x84ab\x86cd\x92"), fromMe: true, sentAt: fixtureBase.Add(2 * time.Hour)},
		{rowID: 4, chat: 2, text: "Other chat", sentAt: fixtureBase.Add(3 * time.Hour)},
		{rowID: 5, chat: 1, text: nil, body: nil, fromMe: true, sentAt: fixtureBase.Add(4 * time.Hour)},
	}
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	be.True(t, err != nil)
	be.Err(t, err, "chat database unavailable")
}

func TestStoreIsReadOnly(t *testing.T) {
	store := openFixture(t, createFixtureDB(t, defaultFixture()))
	_, err := store.db.Exec(`DELETE FROM message`)
	be.True(t, err != nil)
}

func TestAttributedBody(t *testing.T) {
	store := openFixture(t, createFixtureDB(t, defaultFixture()))
	ctx := context.Background()

	blob, err := store.AttributedBody(ctx, 2)
	be.Err(t, err, nil)
	be.Equal(t, blob.MessageID, int64(2))
	be.Equal(t, blob.Data, markerBody("Recovered SMS body"))

	_, err = store.AttributedBody(ctx, 5)
	be.True(t, errors.Is(err, ErrNoAttributedBody))

	_, err = store.AttributedBody(ctx, 404)
	be.True(t, errors.Is(err, ErrNoAttributedBody))
}

func TestRecoverText(t *testing.T) {
	store := openFixture(t, createFixtureDB(t, defaultFixture()))
	ctx := context.Background()

	withText := Message{RowID: 2, Text: "already here", ContactID: "+15551234567"}
	be.Equal(t, store.RecoverText(ctx, withText), withText)

	blank := Message{RowID: 2, GUID: "g2", ContactName: "Priya Nair", SentAt: fixtureBase, Service: "SMS"}
	recovered := store.RecoverText(ctx, blank)
	be.Equal(t, recovered.Text, "Recovered SMS body")
	recovered.Text = ""
	be.Equal(t, recovered, blank)

	unrecoverable := Message{RowID: 3, Text: "  ", IsFromMe: true}
	be.Equal(t, store.RecoverText(ctx, unrecoverable), unrecoverable)

	missing := Message{RowID: 404}
	be.Equal(t, store.RecoverText(ctx, missing), missing)
}

func TestEnhanceKeepsOrderAndInput(t *testing.T) {
	store := openFixture(t, createFixtureDB(t, defaultFixture()))

	input := []Message{{RowID: 1, Text: "Plain text message"}, {RowID: 2}, {RowID: 3}, {RowID: 5}}
	out, err := store.Enhance(context.Background(), input)
	be.Err(t, err, nil)
	be.Equal(t, len(out), 4)
	be.Equal(t, out[0].Text, "Plain text message")
	be.Equal(t, out[1].Text, "Recovered SMS body")
	be.Equal(t, out[2].Text, "")
	be.Equal(t, out[3].Text, "")
	be.Equal(t, input[1].Text, "")
}

func TestEnhanceCancelled(t *testing.T) {
	store := openFixture(t, createFixtureDB(t, defaultFixture()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Enhance(ctx, []Message{{RowID: 2}})
	be.True(t, errors.Is(err, context.Canceled))

	// The store stays usable after an abandoned batch.
	out, err := store.Enhance(context.Background(), []Message{{RowID: 2}})
	be.Err(t, err, nil)
	be.Equal(t, out[0].Text, "Recovered SMS body")
}

func TestEnhanceMessages(t *testing.T) {
	path := createFixtureDB(t, defaultFixture())
	out, err := EnhanceMessages(context.Background(), path, []Message{{RowID: 2}}, WithConcurrency(1))
	be.Err(t, err, nil)
	be.Equal(t, out[0].Text, "Recovered SMS body")

	_, err = EnhanceMessages(context.Background(), filepath.Join(t.TempDir(), "missing.db"), []Message{{RowID: 2}})
	be.True(t, err != nil)
}

func TestListMessages(t *testing.T) {
	store := openFixture(t, createFixtureDB(t, defaultFixture()))
	ctx := context.Background()

	msgs, err := store.ListMessages(ctx, MessageQuery{Contact: "Priya Nair", Limit: -1})
	be.Err(t, err, nil)
	be.Equal(t, len(msgs), 4)
	be.Equal(t, msgs[0].RowID, int64(5))
	be.Equal(t, msgs[2].RowID, int64(2))
	be.Equal(t, msgs[2].Text, "Recovered SMS body")
	be.Equal(t, msgs[2].ContactName, "Priya Nair")
	be.Equal(t, msgs[2].ChatID, "any;-;+15551234567")
	be.Equal(t, msgs[2].SentAt, fixtureBase.Add(time.Hour))
	be.Equal(t, msgs[3].Text, "Plain text message")

	fromMe := false
	msgs, err = store.ListMessages(ctx, MessageQuery{Contact: "+1 (555) 123-4567", FromMe: &fromMe})
	be.Err(t, err, nil)
	be.Equal(t, len(msgs), 2)

	since := fixtureBase.Add(30 * time.Minute)
	until := fixtureBase.Add(3 * time.Hour)
	msgs, err = store.ListMessages(ctx, MessageQuery{Since: &since, Until: &until})
	be.Err(t, err, nil)
	be.Equal(t, len(msgs), 3)
	be.Equal(t, msgs[0].Text, "Other chat")

	msgs, err = store.ListMessages(ctx, MessageQuery{Limit: 1})
	be.Err(t, err, nil)
	be.Equal(t, len(msgs), 1)

	_, err = store.ListMessages(ctx, MessageQuery{ReadState: "sometimes"})
	be.Err(t, err, "invalid read state")

	_, err = store.ListMessages(ctx, MessageQuery{Since: &until, Until: &since})
	be.True(t, err != nil)
}

func TestListContacts(t *testing.T) {
	store := openFixture(t, createFixtureDB(t, defaultFixture()))

	contacts, err := store.ListContacts(context.Background(), 10)
	be.Err(t, err, nil)
	be.Equal(t, len(contacts), 2)
	be.Equal(t, contacts[0].Name, "Priya Nair")
	be.Equal(t, contacts[0].MessageCount, 4)
	be.Equal(t, contacts[1].Name, "pat@example.com")
	be.Equal(t, contacts[1].Service, "iMessage")
}

func TestAppleNanoRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 9, 14, 30, 0, 500, time.UTC)
	raw := timeToAppleNano(at)
	be.Equal(t, appleNanoToTime(strconv.FormatInt(raw, 10)), at)
	be.Equal(t, appleNanoToTime("not a number"), time.Time{})
	be.Equal(t, appleNanoToTime("0"), time.Time{})
}

func TestParseChatIdentifier(t *testing.T) {
	be.Equal(t, parseChatIdentifier("any;-;+15551234567"), "+15551234567")
	be.Equal(t, parseChatIdentifier("any;+;chat123"), "chat123")
	be.Equal(t, parseChatIdentifier(""), "")
}

func TestParseParticipants(t *testing.T) {
	got := parseParticipants("SMS;-;+15551234567|||+15551234567|||Priya Nair\nbroken line\n")
	be.Equal(t, got, []chatParticipant{{ChatID: "SMS;-;+15551234567", Handle: "+15551234567", Name: "Priya Nair"}})
}

func TestResolveContactFromList(t *testing.T) {
	contacts := []Contact{
		{Name: "Dana Whitfield", ContactID: "+15550142233", ChatID: "any;-;+15550142233", ChatIdentifier: "+15550142233", Handle: "+15550142233"},
		{Name: "Dana", ContactID: "dana.r@example.com", ChatID: "any;-;dana.r@example.com", ChatIdentifier: "dana.r@example.com", Handle: "dana.r@example.com"},
		{Name: "Theo Marsh", ContactID: "+15550198871", ChatID: "any;-;+15550198871", ChatIdentifier: "+15550198871", Handle: "+15550198871"},
		{Name: "Marsh Family", ContactID: "chat918273", ChatID: "any;-;chat918273", ChatIdentifier: "chat918273"},
	}

	resolved, err := resolveContactFromList(contacts, "theo marsh")
	be.Err(t, err, nil)
	be.Equal(t, resolved.ContactID, "+15550198871")

	resolved, err = resolveContactFromList(contacts, "+1 (555) 014-2233")
	be.Err(t, err, nil)
	be.Equal(t, resolved.Name, "Dana Whitfield")

	// An exact name beats partial matches on other contacts.
	resolved, err = resolveContactFromList(contacts, "Dana")
	be.Err(t, err, nil)
	be.Equal(t, resolved.Handle, "dana.r@example.com")

	resolved, err = resolveContactFromList(contacts, "whitfield")
	be.Err(t, err, nil)
	be.Equal(t, resolved.ContactID, "+15550142233")

	_, err = resolveContactFromList(contacts, "marsh")
	be.Err(t, err, "ambiguous")

	_, err = resolveContactFromList(contacts, "nobody")
	be.Err(t, err, "not found")

	_, err = resolveContactFromList(contacts, "  ")
	be.Err(t, err, "required")
}

func TestDescribeCandidates(t *testing.T) {
	candidates := []Contact{
		{Name: "Theo Marsh", ContactID: "+15550198871"},
		{Name: "Marsh Family", ChatIdentifier: "chat918273"},
		{ContactID: "marsh@example.com", Name: "marsh@example.com"},
		{Name: "Ada Marsh", ContactID: "+15550100000"},
	}
	be.Equal(t, describeCandidates(candidates, 3),
		"Theo Marsh <+15550198871>, Marsh Family <chat918273>, marsh@example.com and 1 more")
}

func TestCanonicalHandle(t *testing.T) {
	be.Equal(t, canonicalHandle("+1 (555) 014-2233"), "15550142233")
	be.Equal(t, canonicalHandle(" Dana.R@Example.com "), "danar@examplecom")
}
