package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	date TEXT NOT NULL,
	run_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	symbol TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	payload TEXT
);
CREATE TABLE IF NOT EXISTS news_items (
	position INTEGER PRIMARY KEY,
	link TEXT NOT NULL UNIQUE,
	payload TEXT NOT NULL
);
`

// SQLiteStore keeps the State in three tables written in one transaction.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		logger.Warn("failed to set WAL mode", zap.Error(err))
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// LoadLatest reads all three tables. Any unreadable row discards the whole
// State rather than returning a partial one.
func (s *SQLiteStore) LoadLatest(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return Empty(), err
	}
	st, err := s.load(ctx)
	if err != nil {
		s.logger.Error("discarding unreadable state",
			zap.Error(fmt.Errorf("%w: %v", ErrStorageCorrupt, err)))
		return Empty(), nil
	}
	return st, nil
}

func (s *SQLiteStore) load(ctx context.Context) (State, error) {
	st := Empty()

	err := s.db.QueryRowContext(ctx, "SELECT date, run_id FROM snapshot_meta WHERE id = 1").
		Scan(&st.Snapshots.Date, &st.Snapshots.RunID)
	if err != nil && err != sql.ErrNoRows {
		return st, fmt.Errorf("meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT symbol, status, reason, payload FROM snapshots ORDER BY symbol")
	if err != nil {
		return st, fmt.Errorf("snapshots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			symbol, status, reason string
			payload                sql.NullString
		)
		if err := rows.Scan(&symbol, &status, &reason, &payload); err != nil {
			return st, fmt.Errorf("snapshot row: %w", err)
		}
		entry := models.TickerSnapshot{Symbol: symbol, Status: models.SnapshotStatus(status), Reason: reason}
		if payload.Valid && payload.String != "" {
			var ps models.PriceSnapshot
			if err := json.Unmarshal([]byte(payload.String), &ps); err != nil {
				return st, fmt.Errorf("snapshot %s: %w", symbol, err)
			}
			entry.Snapshot = &ps
		}
		st.Snapshots.Put(entry)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	newsRows, err := s.db.QueryContext(ctx, "SELECT payload FROM news_items ORDER BY position")
	if err != nil {
		return st, fmt.Errorf("news: %w", err)
	}
	defer newsRows.Close()
	for newsRows.Next() {
		var payload string
		if err := newsRows.Scan(&payload); err != nil {
			return st, fmt.Errorf("news row: %w", err)
		}
		var item models.NewsItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return st, fmt.Errorf("news item: %w", err)
		}
		st.News = append(st.News, item)
	}
	return st, newsRows.Err()
}

// Persist replaces every table inside a single transaction.
func (s *SQLiteStore) Persist(ctx context.Context, st State) error {
	st = st.normalized()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	for _, q := range []string{"DELETE FROM snapshot_meta", "DELETE FROM snapshots", "DELETE FROM news_items"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: clear: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshot_meta (id, date, run_id) VALUES (1, ?, ?)",
		st.Snapshots.Date, st.Snapshots.RunID); err != nil {
		return fmt.Errorf("store: insert meta: %w", err)
	}

	for symbol, entry := range st.Snapshots.Tickers {
		var payload sql.NullString
		if entry.Snapshot != nil {
			b, err := json.Marshal(entry.Snapshot)
			if err != nil {
				return fmt.Errorf("store: encode snapshot %s: %w", symbol, err)
			}
			payload = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshots (symbol, status, reason, payload) VALUES (?, ?, ?, ?)",
			symbol, string(entry.Status), entry.Reason, payload); err != nil {
			return fmt.Errorf("store: insert snapshot %s: %w", symbol, err)
		}
	}

	for i, item := range st.News {
		b, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("store: encode news: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO news_items (position, link, payload) VALUES (?, ?, ?)",
			i, item.Link, string(b)); err != nil {
			return fmt.Errorf("store: insert news %q: %w", item.Link, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	s.logger.Debug("state persisted",
		zap.Int("tickers", st.Snapshots.Len()),
		zap.Int("news", len(st.News)))
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
