package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"
)

const appleEpochUnix = 978307200

func appleNano(t time.Time) int64 {
	return (t.Unix() - appleEpochUnix) * int64(time.Second)
}

// streamBody builds a typedstream attributedBody holding text.
func streamBody(text string) []byte {
	blob := []byte("streamtyped\x81\xe8\x03\x84\x01@\x84\x84\x84\x12NSAttributedString\x00\x84\x84\x08NSObject\x00\x85\x92\x84\x84\x84\x08NSString\x01\x94\x84\x01+")
	blob = append(blob, byte(len(text)))
	blob = append(blob, text...)
	return append(blob, "\x86\x84\x02iI\x01\x05\x92\x84\x84\x84\x0cNSDictionary\x00"...)
}

func writeChatDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	be.Err(t, err, nil)
	defer db.Close()

	base := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	stmts := []string{
		`CREATE TABLE handle (ROWID INTEGER PRIMARY KEY, id TEXT, uncanonicalized_id TEXT)`,
		`CREATE TABLE chat (ROWID INTEGER PRIMARY KEY, chat_identifier TEXT, service_name TEXT, display_name TEXT)`,
		`CREATE TABLE message (ROWID INTEGER PRIMARY KEY, guid TEXT, text TEXT, attributedBody BLOB, handle_id INTEGER,
			is_from_me INTEGER, is_read INTEGER, date INTEGER, date_read INTEGER, is_empty INTEGER)`,
		`CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER)`,
		`CREATE TABLE chat_handle_join (chat_id INTEGER, handle_id INTEGER)`,
		`INSERT INTO handle VALUES (1, '+15551234567', NULL)`,
		`INSERT INTO chat VALUES (1, '+15551234567', 'SMS', '')`,
		`INSERT INTO chat_handle_join VALUES (1, 1)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		be.Err(t, err, nil)
	}

	rows := []struct {
		text   any
		body   []byte
		fromMe int
	}{
		{"Are we still on for Friday?", nil, 0},
		{nil, streamBody("Yes, see you at noon"), 1},
		{`Loved “Yes, see you at noon”`, nil, 0},
		{nil, nil, 0},
	}
	for i, r := range rows {
		id := i + 1
		_, err := db.Exec(`INSERT INTO message VALUES (?, ?, ?, ?, 1, ?, 1, ?, 0, 0)`,
			id, "guid", r.text, r.body, r.fromMe, appleNano(base.Add(time.Duration(i)*time.Minute)))
		be.Err(t, err, nil)
		_, err = db.Exec(`INSERT INTO chat_message_join VALUES (1, ?)`, id)
		be.Err(t, err, nil)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--env-file="))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		exportKeepReactions = false
		exportContact, exportOut = "", "conversation.md"
		exportSince, exportUntil = "", ""
		recentUnread = false
		recentContact, recentLimit = "", 20
		dbPath = ""
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExportWritesRecoveredText(t *testing.T) {
	db := writeChatDB(t)
	out := filepath.Join(t.TempDir(), "conversation.md")

	stdout, err := execute(t, "export", "--db", db, "--contact", "+15551234567", "--out", out)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Found 2 text messages"))

	data, err := os.ReadFile(out)
	be.Err(t, err, nil)
	doc := string(data)
	be.True(t, strings.Contains(doc, "Yes, see you at noon"))
	be.True(t, strings.Contains(doc, "Are we still on for Friday?"))
	be.True(t, !strings.Contains(doc, "Loved"))
}

func TestExportKeepReactions(t *testing.T) {
	db := writeChatDB(t)
	out := filepath.Join(t.TempDir(), "conversation.md")

	stdout, err := execute(t, "export", "--db", db, "--contact", "+15551234567", "--out", out, "--keep-reactions")
	be.Err(t, err, nil)
	be.True(t, strings.Contains(stdout, "Found 3 text messages"))
}

func TestExportRequiresContact(t *testing.T) {
	t.Setenv(envContact, "")
	db := writeChatDB(t)
	_, err := execute(t, "export", "--db", db)
	be.Err(t, err, envContact)
}

func TestExportRejectsBadDate(t *testing.T) {
	db := writeChatDB(t)
	_, err := execute(t, "export", "--db", db, "--contact", "+15551234567", "--since", "10/01/2024")
	be.Err(t, err, "YYYY-MM-DD")
}

func TestRecentPrintsOldestFirst(t *testing.T) {
	db := writeChatDB(t)
	stdout, err := execute(t, "recent", "--db", db, "--contact", "+15551234567", "--limit", "5")
	be.Err(t, err, nil)

	first := strings.Index(stdout, "Are we still on for Friday?")
	second := strings.Index(stdout, "Yes, see you at noon")
	be.True(t, first >= 0)
	be.True(t, second > first)
	be.True(t, strings.Contains(stdout, "Me: "))
}

func TestParseDayUntilIsInclusive(t *testing.T) {
	day, err := parseDay("until", "2024-10-01", true)
	be.Err(t, err, nil)
	be.Equal(t, day.Day(), 1)
	be.Equal(t, day.Hour(), 23)

	none, err := parseDay("since", " ", false)
	be.Err(t, err, nil)
	be.True(t, none == nil)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv(envDBPath, "/tmp/chat.db")
	got, err := loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	be.Err(t, err, nil)
	be.Equal(t, got.DBPath, "/tmp/chat.db")
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(envContact, "")
	os.Unsetenv(envContact)
	file := filepath.Join(t.TempDir(), ".env")
	be.Err(t, os.WriteFile(file, []byte(envContact+"=+15550001111\n"), 0o600), nil)

	got, err := loadConfig(file)
	be.Err(t, err, nil)
	be.Equal(t, got.Contact, "+15550001111")
}
