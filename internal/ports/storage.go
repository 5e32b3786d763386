package ports

import (
	"context"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// RunStorage persists completed runs for later comparison.
type RunStorage interface {
	// SaveRun persists the result with its trades and equity curve.
	SaveRun(ctx context.Context, res *domain.RunResult) error

	// GetRuns returns the most recent run summaries, newest first.
	GetRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// GetTrades returns the trades recorded for a run.
	GetTrades(ctx context.Context, runID string) ([]*domain.Trade, error)

	// Close releases the underlying database cleanly.
	Close() error
}
