// Package storage provides SQLite persistence for the local swap engine.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFileName is the database file created in the data directory.
const DBFileName = "swapapi.db"

// Storage provides persistent storage for the local engine.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Storage) Path() string {
	return s.dbPath
}

func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS offers (
		id BLOB PRIMARY KEY,
		coin_from INTEGER NOT NULL,
		coin_to INTEGER NOT NULL,
		amount_from INTEGER NOT NULL,
		rate INTEGER NOT NULL,
		min_bid_amount INTEGER NOT NULL DEFAULT 0,
		swap_type INTEGER NOT NULL,
		addr_from TEXT,
		lock_seconds INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		expire_at INTEGER NOT NULL,
		was_sent INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		auto_accept INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_offers_coins ON offers(coin_from, coin_to);
	CREATE INDEX IF NOT EXISTS idx_offers_created ON offers(created_at);

	-- Adaptor-signature extension of an offer
	CREATE TABLE IF NOT EXISTS xmr_offers (
		offer_id BLOB PRIMARY KEY,
		lock_time_1 INTEGER NOT NULL,
		lock_time_2 INTEGER NOT NULL,
		a_fee_rate INTEGER NOT NULL,
		b_fee_rate INTEGER NOT NULL,
		FOREIGN KEY (offer_id) REFERENCES offers(id)
	);

	CREATE TABLE IF NOT EXISTS bids (
		id BLOB PRIMARY KEY,
		offer_id BLOB NOT NULL,
		coin_from INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		state INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		expire_at INTEGER NOT NULL,
		was_sent INTEGER NOT NULL DEFAULT 0,
		was_received INTEGER NOT NULL DEFAULT 0,
		addr_from TEXT,
		debug_ind INTEGER NOT NULL DEFAULT 0,
		initiate_txid TEXT,
		participate_txid TEXT,
		FOREIGN KEY (offer_id) REFERENCES offers(id)
	);

	CREATE INDEX IF NOT EXISTS idx_bids_offer ON bids(offer_id);
	CREATE INDEX IF NOT EXISTS idx_bids_created ON bids(created_at);

	-- Adaptor-signature protocol state of a bid
	CREATE TABLE IF NOT EXISTS xmr_swaps (
		bid_id BLOB PRIMARY KEY,
		script_lock_txid TEXT,
		script_lock_spend_txid TEXT,
		script_lock_refund_txid TEXT,
		noscript_lock_txid TEXT,
		FOREIGN KEY (bid_id) REFERENCES bids(id)
	);

	CREATE TABLE IF NOT EXISTS bid_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bid_id BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		description TEXT,
		FOREIGN KEY (bid_id) REFERENCES bids(id)
	);

	CREATE INDEX IF NOT EXISTS idx_bid_events_bid ON bid_events(bid_id);

	CREATE TABLE IF NOT EXISTS balances (
		coin INTEGER NOT NULL,
		balance_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		PRIMARY KEY (coin, balance_type)
	);

	CREATE TABLE IF NOT EXISTS withdrawals (
		txid TEXT PRIMARY KEY,
		coin INTEGER NOT NULL,
		type_from TEXT,
		type_to TEXT,
		amount INTEGER NOT NULL,
		address TEXT NOT NULL,
		subtract_fee INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
