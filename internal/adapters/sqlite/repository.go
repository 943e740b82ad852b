package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"haBacktest/internal/domain"
	"haBacktest/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.ResultRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// RunInfo summarizes one persisted run.
type RunInfo struct {
	RunID     string
	Trades    int
	Completed int
	FirstSeen time.Time
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtest.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // Chunk writes are serialized through one connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	// Initialize schema (consider moving to a separate migration tool/step)
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		signal_date TIMESTAMP NOT NULL,
		market_cap TEXT NOT NULL DEFAULT '',
		sector TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		signal_high REAL NOT NULL DEFAULT 0,
		entry_price REAL NOT NULL DEFAULT 0,
		entry_date TIMESTAMP NULL,
		exit_price REAL NOT NULL DEFAULT 0,
		exit_date TIMESTAMP NULL,
		exit_reason TEXT NOT NULL DEFAULT '',
		months_held INTEGER NOT NULL DEFAULT 0,
		total_return_pct REAL NOT NULL DEFAULT 0,
		cagr_pct REAL NOT NULL DEFAULT 0,
		cmgr_pct REAL NOT NULL DEFAULT 0,
		max_high REAL NOT NULL DEFAULT 0,
		max_high_date TIMESTAMP NULL,
		drawdown_pct REAL NOT NULL DEFAULT 0,
		stop_loss_level REAL NOT NULL DEFAULT 0,
		stop_loss_price REAL NOT NULL DEFAULT 0,
		target1_price REAL NOT NULL DEFAULT 0,
		target2_price REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		signal_date TIMESTAMP NOT NULL,
		market_cap TEXT NOT NULL DEFAULT '',
		sector TEXT NOT NULL DEFAULT '',
		bar_index INTEGER NOT NULL,
		high REAL NOT NULL,
		close REAL NOT NULL,
		ha_open REAL NOT NULL,
		ha_close REAL NOT NULL,
		long_ema REAL NOT NULL,
		breakout_strength REAL NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades (run_id, id);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_signal ON trades (symbol, signal_date);
	CREATE INDEX IF NOT EXISTS idx_signals_run ON signals (run_id, id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Debug(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- Trades ---

// SaveTrades stores a chunk of trades in one transaction.
func (r *Repository) SaveTrades(ctx context.Context, runID string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	const query = `
	INSERT INTO trades (run_id, symbol, signal_date, market_cap, sector, status, message,
	                    signal_high, entry_price, entry_date, exit_price, exit_date, exit_reason,
	                    months_held, total_return_pct, cagr_pct, cmgr_pct, max_high, max_high_date,
	                    drawdown_pct, stop_loss_level, stop_loss_price, target1_price, target2_price)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.inTx(ctx, "save trades", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range trades {
			t := &trades[i]
			_, err := stmt.ExecContext(ctx,
				runID, t.Symbol, t.SignalDate, t.MarketCap, t.Sector, string(t.Status), t.Message,
				t.SignalHigh, t.EntryPrice, nullTime(t.EntryDate), t.ExitPrice, nullTime(t.ExitDate), string(t.ExitReason),
				t.MonthsHeld, t.TotalReturnPct, t.CAGRPct, t.CMGRPct, t.MaxHigh, nullTime(t.MaxHighDate),
				t.DrawdownPct, t.StopLossLevel, t.StopLossPrice, t.Target1Price, t.Target2Price)
			if err != nil {
				return fmt.Errorf("insert trade for symbol %s: %w", t.Symbol, err)
			}
		}
		r.logger.Debug(ctx, "Trades saved", map[string]interface{}{"runID": runID, "count": len(trades)})
		return nil
	})
}

// TradesByRun retrieves all trades of a run in insertion order.
func (r *Repository) TradesByRun(ctx context.Context, runID string) ([]domain.Trade, error) {
	const query = `
	SELECT id, run_id, symbol, signal_date, market_cap, sector, status, message,
	       signal_high, entry_price, entry_date, exit_price, exit_date, exit_reason,
	       months_held, total_return_pct, cagr_pct, cmgr_pct, max_high, max_high_date,
	       drawdown_pct, stop_loss_level, stop_loss_price, target1_price, target2_price
	FROM trades
	WHERE run_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run %s: %w: %w", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during TradesByRun: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// ListRuns returns the persisted runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]RunInfo, error) {
	const query = `
	SELECT run_id, COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), MIN(id)
	FROM trades
	GROUP BY run_id
	ORDER BY MIN(id) DESC`

	rows, err := r.db.QueryContext(ctx, query, string(domain.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]RunInfo, 0)
	for rows.Next() {
		var info RunInfo
		var firstID int64
		if err := rows.Scan(&info.RunID, &info.Trades, &info.Completed, &firstID); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, info)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	for i := range runs {
		const created = `SELECT created_at FROM trades WHERE run_id = ? ORDER BY id LIMIT 1`
		if err := r.db.QueryRowContext(ctx, created, runs[i].RunID).Scan(&runs[i].FirstSeen); err != nil {
			return nil, fmt.Errorf("failed to read run start for %s: %w", runs[i].RunID, err)
		}
	}
	return runs, nil
}

// --- Signals ---

// SaveSignals stores a chunk of signals in one transaction.
func (r *Repository) SaveSignals(ctx context.Context, runID string, signals []domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	const query = `
	INSERT INTO signals (run_id, symbol, signal_date, market_cap, sector, bar_index,
	                     high, close, ha_open, ha_close, long_ema, breakout_strength)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.inTx(ctx, "save signals", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range signals {
			if _, err := stmt.ExecContext(ctx,
				runID, s.Symbol, s.Date, s.MarketCap, s.Sector, s.BarIndex,
				s.High, s.Close, s.HAOpen, s.HAClose, s.LongEMA, s.BreakoutStrength); err != nil {
				return fmt.Errorf("insert signal for symbol %s: %w", s.Symbol, err)
			}
		}
		r.logger.Debug(ctx, "Signals saved", map[string]interface{}{"runID": runID, "count": len(signals)})
		return nil
	})
}

// SignalsByRun retrieves all signals of a run in insertion order.
func (r *Repository) SignalsByRun(ctx context.Context, runID string) ([]domain.Signal, error) {
	const query = `
	SELECT symbol, signal_date, market_cap, sector, bar_index,
	       high, close, ha_open, ha_close, long_ema, breakout_strength
	FROM signals
	WHERE run_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for run %s: %w: %w", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	signals := make([]domain.Signal, 0)
	for rows.Next() {
		var s domain.Signal
		if err := rows.Scan(&s.Symbol, &s.Date, &s.MarketCap, &s.Sector, &s.BarIndex,
			&s.High, &s.Close, &s.HAOpen, &s.HAClose, &s.LongEMA, &s.BreakoutStrength); err != nil {
			return nil, fmt.Errorf("failed to scan signal during SignalsByRun: %w", err)
		}
		signals = append(signals, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

// --- Helpers ---

// inTx runs fn in a transaction, rolling back on any error.
func (r *Repository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w: %w", op, ports.ErrQueryFailed, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error(ctx, rbErr, "Rollback failed", map[string]interface{}{"op": op})
		}
		return fmt.Errorf("%s: %w: %w", op, ports.ErrQueryFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w: %w", op, ports.ErrQueryFailed, err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (domain.Trade, error) {
	var t domain.Trade
	var status, reason string
	var entryDate, exitDate, maxHighDate sql.NullTime
	err := s.Scan(
		&t.ID, &t.RunID, &t.Symbol, &t.SignalDate, &t.MarketCap, &t.Sector, &status, &t.Message,
		&t.SignalHigh, &t.EntryPrice, &entryDate, &t.ExitPrice, &exitDate, &reason,
		&t.MonthsHeld, &t.TotalReturnPct, &t.CAGRPct, &t.CMGRPct, &t.MaxHigh, &maxHighDate,
		&t.DrawdownPct, &t.StopLossLevel, &t.StopLossPrice, &t.Target1Price, &t.Target2Price)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Status = domain.TradeStatus(status)
	t.ExitReason = domain.ExitReason(reason)
	if entryDate.Valid {
		t.EntryDate = entryDate.Time
	}
	if exitDate.Valid {
		t.ExitDate = exitDate.Time
	}
	if maxHighDate.Valid {
		t.MaxHighDate = maxHighDate.Time
	}
	return t, nil
}
