package domain

import "time"

// RunResult is the final snapshot of one completed backtest run.
type RunResult struct {
	ID             string
	Strategy       string
	StartedAt      time.Time
	FinishedAt     time.Time
	InitialCapital float64
	FinalEquity    float64
	Trades         []*Trade
	EquityCurve    []EquityPoint
	Positions      []Position // non-flat positions at end (empty when force-closed)
	Stats          PerfStats

	SignalsEmitted     int
	DuplicatesRejected int
	OrdersFilled       int
	OrdersSkipped      int // sized to zero
}

// RunSummary is the lightweight row persisted and listed for run history.
type RunSummary struct {
	ID          string
	Strategy    string
	FinishedAt  time.Time
	FinalEquity float64
	TotalReturn float64
	Sharpe      float64
	MaxDrawdown float64
	WinRate     float64
	NumTrades   int
}

// Summary projects the result onto its history row.
func (r *RunResult) Summary() RunSummary {
	return RunSummary{
		ID:          r.ID,
		Strategy:    r.Strategy,
		FinishedAt:  r.FinishedAt,
		FinalEquity: r.FinalEquity,
		TotalReturn: r.Stats.TotalReturn,
		Sharpe:      r.Stats.Sharpe,
		MaxDrawdown: r.Stats.MaxDrawdown,
		WinRate:     r.Stats.WinRate,
		NumTrades:   r.Stats.ClosedTrades,
	}
}
