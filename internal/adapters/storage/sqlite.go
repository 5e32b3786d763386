package storage

// Run persistence.
//
// Layout:
//   - `runs`: one row per completed run with its headline statistics.
//   - `trades`: the closed ledger per run.
//   - `equity_points`: the full curve per run (kept for later plotting by an
//     external reporting layer).
// Runs older than the retention window are pruned on startup.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    strategy        TEXT     NOT NULL,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME NOT NULL,
    initial_capital REAL     NOT NULL,
    final_equity    REAL     NOT NULL,
    total_return    REAL     NOT NULL DEFAULT 0,
    sharpe          REAL     NOT NULL DEFAULT 0,
    max_drawdown    REAL     NOT NULL DEFAULT 0,
    win_rate        REAL     NOT NULL DEFAULT 0,
    num_trades      INTEGER  NOT NULL DEFAULT 0,
    signals         INTEGER  NOT NULL DEFAULT 0,
    duplicates      INTEGER  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
    id           TEXT NOT NULL,
    run_id       TEXT NOT NULL REFERENCES runs(id),
    symbol       TEXT NOT NULL,
    direction    TEXT NOT NULL,
    quantity     INTEGER NOT NULL,
    entry_price  REAL NOT NULL,
    exit_price   REAL NOT NULL DEFAULT 0,
    entry_time   DATETIME NOT NULL,
    exit_time    DATETIME,
    realized_pnl REAL NOT NULL DEFAULT 0,
    commission   REAL NOT NULL DEFAULT 0,
    rule_id      TEXT NOT NULL,
    closed       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS equity_points (
    run_id TEXT     NOT NULL REFERENCES runs(id),
    ts     DATETIME NOT NULL,
    cash   REAL     NOT NULL,
    equity REAL     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_finished   ON runs(finished_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_run      ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run      ON equity_points(run_id, ts);
`

const retentionRuns = 90 * 24 * time.Hour

// SQLiteStorage implements ports.RunStorage using SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given path and
// applies the schema. Use ":memory:" for tests.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persists the run with its trades and equity curve in one
// transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, res *domain.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, started_at, finished_at, initial_capital,
		                  final_equity, total_return, sharpe, max_drawdown,
		                  win_rate, num_trades, signals, duplicates)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Strategy, res.StartedAt, res.FinishedAt, res.InitialCapital,
		res.FinalEquity, res.Stats.TotalReturn, res.Stats.Sharpe, res.Stats.MaxDrawdown,
		res.Stats.WinRate, res.Stats.ClosedTrades, res.SignalsEmitted, res.DuplicatesRejected,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, run_id, symbol, direction, quantity, entry_price,
		                    exit_price, entry_time, exit_time, realized_pnl,
		                    commission, rule_id, closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare trades: %w", err)
	}
	defer tradeStmt.Close()

	for _, t := range res.Trades {
		var exitTime any
		if t.Closed {
			exitTime = t.ExitTime
		}
		_, err := tradeStmt.ExecContext(ctx,
			t.ID, res.ID, t.Symbol, t.Direction.String(), t.Quantity, t.EntryPrice,
			t.ExitPrice, t.EntryTime, exitTime, t.RealizedPnl,
			t.Commission, t.RuleID.String(), boolToInt(t.Closed),
		)
		if err != nil {
			return fmt.Errorf("storage.SaveRun: insert trade %s: %w", t.ID, err)
		}
	}

	eqStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO equity_points (run_id, ts, cash, equity) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare equity: %w", err)
	}
	defer eqStmt.Close()

	for _, pt := range res.EquityCurve {
		if _, err := eqStmt.ExecContext(ctx, res.ID, pt.Timestamp, pt.Cash, pt.Equity); err != nil {
			return fmt.Errorf("storage.SaveRun: insert equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRuns returns the most recent run summaries, newest first.
func (s *SQLiteStorage) GetRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, finished_at, final_equity, total_return,
		       sharpe, max_drawdown, win_rate, num_trades
		FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRuns: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		var r domain.RunSummary
		if err := rows.Scan(&r.ID, &r.Strategy, &r.FinishedAt, &r.FinalEquity,
			&r.TotalReturn, &r.Sharpe, &r.MaxDrawdown, &r.WinRate, &r.NumTrades); err != nil {
			return nil, fmt.Errorf("storage.GetRuns: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetTrades returns the trades recorded for a run, in insertion order.
func (s *SQLiteStorage) GetTrades(ctx context.Context, runID string) ([]*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, direction, quantity, entry_price, exit_price,
		       entry_time, exit_time, realized_pnl, commission, rule_id, closed
		FROM trades WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTrades: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Trade
	for rows.Next() {
		var (
			t        domain.Trade
			dir      string
			ruleID   string
			exitTime sql.NullTime
			closed   int
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &dir, &t.Quantity, &t.EntryPrice,
			&t.ExitPrice, &t.EntryTime, &exitTime, &t.RealizedPnl,
			&t.Commission, &ruleID, &closed); err != nil {
			return nil, fmt.Errorf("storage.GetTrades: scan: %w", err)
		}
		t.Closed = closed != 0
		if exitTime.Valid {
			t.ExitTime = exitTime.Time
		}
		switch dir {
		case "SHORT":
			t.Direction = domain.DirectionShort
		case "LONG":
			t.Direction = domain.DirectionLong
		}
		if rid, err := domain.ParseRuleID(ruleID); err == nil {
			t.RuleID = rid
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Close closes the database cleanly.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld removes runs (and their children) beyond the retention window.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	for _, q := range []string{
		`DELETE FROM trades WHERE run_id IN (SELECT id FROM runs WHERE finished_at < ?)`,
		`DELETE FROM equity_points WHERE run_id IN (SELECT id FROM runs WHERE finished_at < ?)`,
		`DELETE FROM runs WHERE finished_at < ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, cutoff); err != nil {
			slog.Warn("storage: prune failed", "err", err)
			return
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
