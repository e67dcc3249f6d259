package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store writes and reads the session archive.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default archive path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tokenwheel", "archive.sqlite")
}

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		modelName TEXT NOT NULL,
		initialPrompt TEXT NOT NULL,
		finalText TEXT NOT NULL,
		tokenCount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		createdAt REAL NOT NULL,
		endedAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tokens (
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		tokenId INTEGER NOT NULL,
		tokenText TEXT NOT NULL,
		probability REAL NOT NULL,
		category TEXT NOT NULL,
		sampledFromOther INTEGER NOT NULL DEFAULT 0,
		rankInOther INTEGER NOT NULL DEFAULT 0,
		selectedAt REAL NOT NULL,
		PRIMARY KEY (sessionId, position)
	);
`

// Open opens (or creates) the archive database with WAL.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory archive, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ArchiveSession writes one finished session and its token trace in a
// single transaction. Archiving the same id twice replaces the earlier
// record.
func (s *Store) ArchiveSession(rec SessionRecord, tokens []TokenRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tokens WHERE sessionId = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO sessions
			(id, modelName, initialPrompt, finalText, tokenCount, reason, createdAt, endedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ModelName, rec.InitialPrompt, rec.FinalText, rec.TokenCount,
		rec.Reason, unixFrom(rec.CreatedAt), unixFrom(rec.EndedAt)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, t := range tokens {
		if _, err := tx.Exec(`
			INSERT INTO tokens
				(sessionId, position, tokenId, tokenText, probability, category,
				 sampledFromOther, rankInOther, selectedAt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, t.Position, t.TokenID, t.TokenText, t.Probability, t.Category,
			boolToInt(t.SampledFromOther), t.RankInOther, unixFrom(t.SelectedAt)); err != nil {
			return fmt.Errorf("insert token %d: %w", t.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// RecentSessions returns archived sessions, most recently ended first.
func (s *Store) RecentSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, modelName, initialPrompt, finalText, tokenCount, reason, createdAt, endedAt
		FROM sessions
		ORDER BY endedAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var recs []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var createdAt, endedAt float64
		if err := rows.Scan(&rec.ID, &rec.ModelName, &rec.InitialPrompt, &rec.FinalText,
			&rec.TokenCount, &rec.Reason, &createdAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.CreatedAt = timeFromUnix(createdAt)
		rec.EndedAt = timeFromUnix(endedAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// TokensForSession returns the archived token trace in selection order.
func (s *Store) TokensForSession(sessionID string) ([]TokenRecord, error) {
	rows, err := s.db.Query(`
		SELECT sessionId, position, tokenId, tokenText, probability, category,
		       sampledFromOther, rankInOther, selectedAt
		FROM tokens
		WHERE sessionId = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []TokenRecord
	for rows.Next() {
		var t TokenRecord
		var sampled int
		var selectedAt float64
		if err := rows.Scan(&t.SessionID, &t.Position, &t.TokenID, &t.TokenText,
			&t.Probability, &t.Category, &sampled, &t.RankInOther, &selectedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		t.SampledFromOther = sampled != 0
		t.SelectedAt = timeFromUnix(selectedAt)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func unixFrom(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
