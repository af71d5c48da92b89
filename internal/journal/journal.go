// Package journal records every bar and trade received during a live session
// to SQLite so a run can be reviewed after the fact. Single writer, WAL mode.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"

	"live-clientv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Journal is a per-process SQLite session journal.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database and ensures the schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	slog.Info("journal opened", "path", path)
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			session_id TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			PRIMARY KEY (session_id, ts)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			side       TEXT    NOT NULL,
			quantity   REAL    NOT NULL,
			price      REAL    NOT NULL,
			pnl        REAL
		);

		CREATE INDEX IF NOT EXISTS idx_trades_session ON trades(session_id, ts);
	`)
	return err
}

// RecordBar upserts one bar. Replaying an in-progress candle update replaces
// the stored row, mirroring the in-memory store's identity rule.
func (j *Journal) RecordBar(sessionID string, b model.Bar) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO bars (session_id, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume)
	return err
}

// RecordTrade appends one trade event.
func (j *Journal) RecordTrade(sessionID string, t model.Trade) error {
	var pnl sql.NullFloat64
	if t.PnL != nil {
		pnl = sql.NullFloat64{Float64: *t.PnL, Valid: true}
	}
	_, err := j.db.Exec(`
		INSERT INTO trades (session_id, ts, side, quantity, price, pnl)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, t.Timestamp, string(t.Side), t.Quantity, t.Price, pnl)
	return err
}

// Bars returns up to limit journaled bars for a session, oldest first.
func (j *Journal) Bars(sessionID string, limit int) ([]model.Bar, error) {
	rows, err := j.db.Query(`
		SELECT ts, open, high, low, close, volume FROM bars
		WHERE session_id = ? ORDER BY ts ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Trades returns up to limit journaled trades for a session, oldest first.
func (j *Journal) Trades(sessionID string, limit int) ([]model.Trade, error) {
	rows, err := j.db.Query(`
		SELECT ts, side, quantity, price, pnl FROM trades
		WHERE session_id = ? ORDER BY ts ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var side string
		var pnl sql.NullFloat64
		if err := rows.Scan(&t.Timestamp, &side, &t.Quantity, &t.Price, &pnl); err != nil {
			return nil, err
		}
		t.Side = model.Side(side)
		if pnl.Valid {
			v := pnl.Float64
			t.PnL = &v
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
