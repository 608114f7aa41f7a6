package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// sqliteTimeLayout matches STRFTIME('%Y-%m-%d %H:%M:%f'), the column default.
const sqliteTimeLayout = "2006-01-02 15:04:05.000"

const createLikesTable = `
CREATE TABLE IF NOT EXISTS likes (
	created_at DATETIME NOT NULL DEFAULT (STRFTIME('%Y-%m-%d %H:%M:%f', 'NOW')),
	identifier TEXT NOT NULL,
	post_data JSON NOT NULL,
	filenames JSON NOT NULL
)`

// Identifier is indexed but not unique; uniqueness is kept by
// the sync filtering against the seen set.
const createLikesIndex = `CREATE INDEX IF NOT EXISTS idx_likes_identifier ON likes(identifier)`

// SQLiteLedger stores the ledger in the likes table of an embedded SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string, timeout time.Duration) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	if timeout <= 0 {
		timeout = time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, timeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One writer per run; a single connection keeps SQLite locking trivial.
	db.SetMaxOpenConns(1)

	return &SQLiteLedger{db: db}, nil
}

func (s *SQLiteLedger) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createLikesTable); err != nil {
		return fmt.Errorf("creating likes table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createLikesIndex); err != nil {
		return fmt.Errorf("creating likes index: %w", err)
	}
	return nil
}

func (s *SQLiteLedger) LoadSeenIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identifier FROM likes`)
	if err != nil {
		return nil, fmt.Errorf("querying identifiers: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning identifier: %w", err)
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

func (s *SQLiteLedger) Append(ctx context.Context, entries []*LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	encoded, err := encodeEntries(entries, time.Now())
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO likes (created_at, identifier, post_data, filenames) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range encoded {
		if _, err := stmt.ExecContext(ctx,
			e.createdAt.Format(sqliteTimeLayout),
			e.identifier,
			string(e.postData),
			string(e.filenames),
		); err != nil {
			return fmt.Errorf("inserting %s: %w", e.identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing likes: %w", err)
	}
	return nil
}

func (s *SQLiteLedger) Entries(ctx context.Context) ([]*LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, identifier, post_data, filenames FROM likes ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying likes: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		var (
			createdAt any
			id        string
			postData  string
			filenames string
		)
		if err := rows.Scan(&createdAt, &id, &postData, &filenames); err != nil {
			return nil, fmt.Errorf("scanning like: %w", err)
		}

		names, err := decodeFilenames([]byte(filenames))
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}

		entries = append(entries, &LedgerEntry{
			CreatedAt:  parseSQLiteTime(createdAt),
			Identifier: id,
			PostData:   json.RawMessage(postData),
			Filenames:  names,
		})
	}
	return entries, rows.Err()
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// parseSQLiteTime accepts the column value whether the driver hands back a
// time.Time or the stored text.
func parseSQLiteTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		return parseSQLiteText(t)
	case []byte:
		return parseSQLiteText(string(t))
	default:
		return time.Time{}
	}
}

func parseSQLiteText(s string) time.Time {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}
