package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"trade-monitor/internal/models"
	"trade-monitor/pkg/core"
)

const DefaultHistoryCapacity = 1000

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned by Get for keys that were never stored.
var ErrNotFound = errors.New("key not found")

type DB struct {
	db       *sql.DB
	log      core.Logger
	capacity int
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trade_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    token_name TEXT NOT NULL,
    token_svgs TEXT NOT NULL,
    total_usd TEXT NOT NULL,
    amount TEXT NOT NULL,
    price TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    relative_time TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// DefaultPath is the database location under the user config directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, "trade-monitor", "trade-monitor.db"), nil
}

// New opens (and creates if needed) the database at path. An empty path uses
// DefaultPath. capacity bounds the trade history; zero means DefaultHistoryCapacity.
func New(path string, capacity int, log core.Logger) (*DB, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	log.Debug("Database opened", "path", path, "history_capacity", capacity)
	return &DB{db: db, log: log, capacity: capacity}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Get decodes the JSON value stored under key into out.
func (d *DB) Get(key string, out interface{}) error {
	var raw string
	err := d.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", key)
	}
	if err := json.UnmarshalFromString(raw, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s", key)
	}
	return nil
}

// Set stores value under key as JSON, replacing what was there.
func (d *DB) Set(key string, value interface{}) error {
	raw, err := json.MarshalToString(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	_, err = d.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, raw)
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	return nil
}

// Remove deletes keys. Missing keys are ignored.
func (d *DB) Remove(keys ...string) error {
	for _, key := range keys {
		if _, err := d.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			return errors.Wrapf(err, "failed to remove %s", key)
		}
	}
	return nil
}

// AddTrade appends a trade to the history and evicts the oldest entries beyond
// the configured capacity.
func (d *DB) AddTrade(trade models.Trade) error {
	svgs, err := json.MarshalToString(trade.TokenSvgs)
	if err != nil {
		return errors.Wrap(err, "failed to encode token icons")
	}

	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO trade_history (
			type, token_name, token_svgs, total_usd, amount, price, timestamp, relative_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.Type, trade.TokenName, svgs, trade.TotalUSD,
		trade.Amount, trade.Price, trade.Timestamp.UTC(), trade.Time)
	if err != nil {
		return errors.Wrap(err, "failed to insert trade")
	}

	res, err := tx.Exec(`
		DELETE FROM trade_history
		WHERE id NOT IN (SELECT id FROM trade_history ORDER BY id DESC LIMIT ?)`,
		d.capacity)
	if err != nil {
		return errors.Wrap(err, "failed to trim trade history")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		d.log.Debug("Trimmed trade history", "evicted", n)
	}

	return errors.Wrap(tx.Commit(), "failed to commit trade")
}

// GetTrades returns up to limit stored trades, newest first. limit <= 0 returns all.
func (d *DB) GetTrades(limit int) ([]models.Trade, error) {
	d.log.Debug("Retrieving trades from database", "limit", limit)
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.Query(`
		SELECT type, token_name, token_svgs, total_usd, amount, price, timestamp, relative_time
		FROM trade_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query trades")
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var trade models.Trade
		var svgs string
		var timestamp time.Time
		if err := rows.Scan(
			&trade.Type, &trade.TokenName, &svgs, &trade.TotalUSD,
			&trade.Amount, &trade.Price, &timestamp, &trade.Time); err != nil {
			return nil, errors.Wrap(err, "failed to scan trade")
		}
		if err := json.UnmarshalFromString(svgs, &trade.TokenSvgs); err != nil {
			return nil, errors.Wrap(err, "failed to decode token icons")
		}
		trade.Timestamp = timestamp
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read trades")
	}

	d.log.Debug("Total trades retrieved", "count", len(trades))
	return trades, nil
}

// CountTrades returns the number of stored trades.
func (d *DB) CountTrades() (int, error) {
	var n int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM trade_history").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count trades")
	}
	return n, nil
}
