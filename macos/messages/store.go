package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/spachava753/imsgexport/macos/messages/attributedbody"
)

const (
	messagesDBRelativePath = "Library/Messages/chat.db"

	// DefaultConcurrency is the number of messages recovered in parallel by
	// [Store.Enhance].
	DefaultConcurrency = 5

	attributedBodyQuery = `SELECT attributedBody FROM message WHERE ROWID = ?`
)

// ErrNoAttributedBody is returned by [Store.AttributedBody] when the message
// row does not exist or its attributedBody column is empty.
var ErrNoAttributedBody = errors.New("messages: no attributedBody")

// Store is a read-only handle on the local Messages database.
//
// A Store is safe for concurrent use. It never writes to the database, so
// abandoning work mid-batch leaves it consistent; Close must still be called
// to release the connection.
type Store struct {
	db          *sql.DB
	path        string
	body        *sql.Stmt
	log         zerolog.Logger
	concurrency int

	// participants enriches contacts with Messages.app names.
	participants func(ctx context.Context) ([]chatParticipant, error)
}

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for per-message recovery diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.log = logger
	}
}

// WithConcurrency sets how many messages [Store.Enhance] recovers at once.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Open opens the Messages database at path in read-only mode. An empty path
// selects ~/Library/Messages/chat.db.
//
// A missing or unreadable database is an error: nothing can be listed or
// recovered without it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	dbPath, err := resolveDBPath(path)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", strings.ReplaceAll(dbPath, " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("messages: opening sqlite database failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("messages: connecting to sqlite database failed: %w", err)
	}

	body, err := db.PrepareContext(ctx, attributedBodyQuery)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("messages: preparing attributedBody lookup failed: %w", err)
	}

	s := &Store{
		db:           db,
		path:         dbPath,
		body:         body,
		log:          zerolog.Nop(),
		concurrency:  DefaultConcurrency,
		participants: listChatParticipants,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	stmtErr := s.body.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("messages: closing sqlite database failed: %w", err)
	}
	if stmtErr != nil {
		return fmt.Errorf("messages: closing attributedBody lookup failed: %w", stmtErr)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// AttributedBody reads the attributedBody blob of one message by ROWID.
func (s *Store) AttributedBody(ctx context.Context, rowID int64) (attributedbody.Blob, error) {
	var data []byte
	err := s.body.QueryRowContext(ctx, rowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return attributedbody.Blob{}, fmt.Errorf("%w for message %d", ErrNoAttributedBody, rowID)
	}
	if err != nil {
		return attributedbody.Blob{}, fmt.Errorf("messages: reading attributedBody for message %d failed: %w", rowID, err)
	}
	if len(data) == 0 {
		return attributedbody.Blob{}, fmt.Errorf("%w for message %d", ErrNoAttributedBody, rowID)
	}
	return attributedbody.Blob{MessageID: rowID, Data: data}, nil
}

// query runs a statement and returns every row with columns rendered as
// strings; NULL becomes "".
func (s *Store) query(ctx context.Context, query string, args ...any) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("messages: sqlite query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("messages: reading sqlite columns failed: %w", err)
	}

	records := make([][]string, 0, 64)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("messages: scanning sqlite row failed: %w", err)
		}

		record := make([]string, len(columns))
		for i, value := range values {
			switch typed := value.(type) {
			case nil:
			case []byte:
				record[i] = string(typed)
			default:
				record[i] = fmt.Sprint(typed)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages: iterating sqlite rows failed: %w", err)
	}
	return records, nil
}

func resolveDBPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("messages: unable to resolve home directory: %w", err)
		}
		path = filepath.Join(home, messagesDBRelativePath)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("messages: chat database unavailable at %s: %w", path, err)
	}
	return path, nil
}
