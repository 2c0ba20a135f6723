package database

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store owns the sqlite handle shared by the command handlers and the
// alert loop. It is opened once at startup and closed on shutdown.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// sqlite serialises writers anyway; one connection keeps user commands
	// and the alert loop from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	createWatchesTable := `
	CREATE TABLE IF NOT EXISTS watches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		target REAL NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('price_up', 'price_down', 'pct_up', 'pct_down')),
		created_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(createWatchesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create watches table: %w", err)
	}

	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_watches_owner ON watches (owner_id);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create watches index: %w", err)
	}

	createMetricsTable := `
		CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT NOT NULL DEFAULT '',
		label_value TEXT NOT NULL DEFAULT '',
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`
	if _, err = db.Exec(createMetricsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metrics table: %w", err)
	}

	log.Infof("Database initialized successfully at %s", dbPath)
	return &Store{db: db}, nil
}

// Commit checkpoints the write-ahead log into the main database file. The
// alert loop calls it once per cycle; every statement is already committed.
func (s *Store) Commit(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE);`); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
