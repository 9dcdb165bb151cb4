// Package store persists the trade journal: closed trades and emitted
// signals. The journal is append-only and sits off the decision path; the
// engine never reads it back.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"crypto-trader/internal/errors"
	"crypto-trader/internal/models"
	"crypto-trader/internal/stream"
)

// Journal is a SQLite-backed trade journal.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenJournal opens (and if needed creates) the journal database.
func OpenJournal(path string, log zerolog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "opening journal database")
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, log: log.With().Str("component", "journal").Logger()}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing journal schema")
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		signal_id TEXT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		amount REAL NOT NULL,
		pnl REAL NOT NULL,
		duration_sec INTEGER NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		closed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		target_price REAL,
		stop_loss REAL,
		confidence REAL NOT NULL,
		source TEXT,
		reasoning TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);
	CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SaveTrade appends a closed trade.
func (j *Journal) SaveTrade(ctx context.Context, result *models.TradeResult) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trades
		(id, signal_id, symbol, side, entry_price, exit_price, amount, pnl, duration_sec, status, reason, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.SignalID, result.Symbol, string(result.Side),
		result.EntryPrice, result.ExitPrice, result.Amount, result.PnL,
		int64(result.Duration.Seconds()), string(result.Status), result.Reason, result.ClosedAt)
	if err != nil {
		return errors.Wrap(err, "saving trade")
	}
	return nil
}

// SaveSignal appends an emitted signal.
func (j *Journal) SaveSignal(ctx context.Context, sig *models.Signal) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO signals
		(id, symbol, side, entry_price, target_price, stop_loss, confidence, source, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Symbol, string(sig.Type), sig.EntryPrice, sig.TargetPrice,
		sig.StopLoss, sig.Confidence, sig.Source, sig.Reasoning, sig.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "saving signal")
	}
	return nil
}

// Trades returns the most recent closed trades, newest first. An empty
// symbol matches all symbols.
func (j *Journal) Trades(ctx context.Context, symbol string, limit int) ([]models.TradeResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, signal_id, symbol, side, entry_price, exit_price, amount, pnl, duration_sec, status, reason, closed_at
		FROM trades`
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY closed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying trades")
	}
	defer rows.Close()

	var out []models.TradeResult
	for rows.Next() {
		var r models.TradeResult
		var side, status string
		var durationSec int64
		if err := rows.Scan(&r.ID, &r.SignalID, &r.Symbol, &side, &r.EntryPrice,
			&r.ExitPrice, &r.Amount, &r.PnL, &durationSec, &status, &r.Reason, &r.ClosedAt); err != nil {
			return nil, errors.Wrap(err, "scanning trade")
		}
		r.Side = models.SignalType(side)
		r.Status = models.TradeStatus(status)
		r.Duration = time.Duration(durationSec) * time.Second
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarizes the journal's trade history.
type Stats struct {
	Trades   int
	Wins     int
	Losses   int
	TotalPnL float64
	WinRate  float64
}

// Stats computes aggregate performance from the trades table.
func (j *Journal) Stats(ctx context.Context) (*Stats, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'WIN' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'LOSS' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(pnl), 0)
		FROM trades`)

	s := &Stats{}
	if err := row.Scan(&s.Trades, &s.Wins, &s.Losses, &s.TotalPnL); err != nil {
		return nil, errors.Wrap(err, "computing stats")
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	return s, nil
}

// Consume subscribes to the hub and records every emitted signal and closed
// trade until the hub closes or ctx is cancelled. Write failures are logged,
// never propagated: the journal must not disturb the trading loop.
func (j *Journal) Consume(ctx context.Context, hub *stream.Hub) {
	ch := hub.SubscribeTypes("journal", stream.EventSignal, stream.EventTradeClosed)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				j.record(ctx, ev)
			}
		}
	}()
}

func (j *Journal) record(ctx context.Context, ev stream.Event) {
	switch ev.Type {
	case stream.EventSignal:
		if sig, ok := ev.Payload.(*models.Signal); ok {
			if err := j.SaveSignal(ctx, sig); err != nil {
				j.log.Warn().Err(err).Str("symbol", ev.Symbol).Msg("signal journal write failed")
			}
		}
	case stream.EventTradeClosed:
		if result, ok := ev.Payload.(*models.TradeResult); ok {
			if err := j.SaveTrade(ctx, result); err != nil {
				j.log.Warn().Err(err).Str("symbol", ev.Symbol).Msg("trade journal write failed")
			}
		}
	}
}
