package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    relevance_score INTEGER,
    notified BOOLEAN DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_seen_articles_url ON seen_articles(url);
`

// SQLiteStore is the durable seen-articles record. The pipeline is the sole
// writer; the dashboard process opens the same file read-only and relies on
// SQLite's own locking for concurrent access.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.SeenStore = (*SQLiteStore)(nil)

// Open connects to the SQLite file at path and ensures the schema exists.
// ":memory:" is accepted for tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection keeps the single-writer contract and makes :memory:
	// databases behave across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// OpenReadOnly connects without write access, for the dashboard process.
func OpenReadOnly(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s read-only: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists reports whether a seen record for url is present.
func (s *SQLiteStore) Exists(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("1").
		From("seen_articles").
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query exists: %w", err)
	}
	return true, nil
}

// Record inserts a new seen record. The UNIQUE constraint on url is the final
// guard against double finalization; a violation maps to ErrDuplicate.
func (s *SQLiteStore) Record(ctx context.Context, rec domain.SeenRecord) error {
	scrapedAt := rec.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	query, args, err := sq.Insert("seen_articles").
		Columns("url", "title", "scraped_at", "relevance_score", "notified").
		Values(rec.URL, rec.Title, scrapedAt, rec.RelevanceScore, rec.Notified).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert seen record: %w", err)
	}

	return nil
}

// MarkNotified flips notified to true for an existing record.
func (s *SQLiteStore) MarkNotified(ctx context.Context, url string) error {
	query, args, err := sq.Update("seen_articles").
		Set("notified", true).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Recent returns records scraped within the last N days, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, days int) ([]domain.SeenRecord, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	query, args, err := sq.Select("id", "url", "title", "scraped_at", "relevance_score", "notified").
		From("seen_articles").
		Where(sq.GtOrEq{"scraped_at": cutoff}).
		OrderBy("scraped_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var records []domain.SeenRecord
	for rows.Next() {
		var (
			rec   domain.SeenRecord
			score sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Title, &rec.ScrapedAt, &score, &rec.Notified); err != nil {
			return nil, fmt.Errorf("scan seen record: %w", err)
		}
		if score.Valid {
			rec.RelevanceScore = domain.Score(int(score.Int64))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

// Count returns the total number of seen records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("seen_articles").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query count: %w", err)
	}
	return count, nil
}
