package notify

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/montecarlo"
	"github.com/alejandrodnm/crossbt/internal/optimize"
)

// Console renders run results, Monte Carlo distributions and optimization
// leaderboards as tables on stdout.
type Console struct {
	out       io.Writer
	trades    bool // include the per-trade table
	maxTrades int
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole(trades bool) *Console {
	return &Console{out: os.Stdout, trades: trades, maxTrades: 50}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, trades bool) *Console {
	return &Console{out: w, trades: trades, maxTrades: 50}
}

// PrintRun prints the run summary and, when enabled, the trade table.
func (c *Console) PrintRun(res *domain.RunResult) {
	s := res.Stats
	fmt.Fprintf(c.out, "\n=== RUN %s (%s) ===\n", shortID(res.ID), res.Strategy)
	fmt.Fprintf(c.out, "capital $%.2f -> $%.2f | return %.2f%% | annualized %.2f%%\n",
		res.InitialCapital, res.FinalEquity, s.TotalReturn*100, s.AnnualizedReturn*100)
	fmt.Fprintf(c.out, "sharpe %.2f | max dd %.2f%% | calmar %.2f | vol %.2f%%\n",
		s.Sharpe, s.MaxDrawdown*100, s.Calmar, s.Volatility*100)
	fmt.Fprintf(c.out, "trades %d | win rate %.1f%% | profit factor %s | expectancy $%.2f\n",
		s.ClosedTrades, s.WinRate*100, formatPF(s.ProfitFactor), s.Expectancy)
	fmt.Fprintf(c.out, "signals %d | duplicates rejected %d | fills %d | skipped %d\n",
		res.SignalsEmitted, res.DuplicatesRejected, res.OrdersFilled, res.OrdersSkipped)

	if c.trades {
		c.printTrades(res.Trades)
	}
}

// printTrades prints the closed trade ledger, capped to keep output usable.
func (c *Console) printTrades(trades []*domain.Trade) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Symbol", "Dir", "Qty", "Entry", "Exit", "PnL", "Comm", "Rule")

	shown := 0
	for i, t := range trades {
		if !t.Closed {
			continue
		}
		if shown >= c.maxTrades {
			fmt.Fprintf(c.out, "  ... %d more trades\n", len(trades)-i)
			break
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			t.Symbol,
			t.Direction.String(),
			fmt.Sprintf("%d", t.Quantity),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%+.2f", t.RealizedPnl),
			fmt.Sprintf("%.2f", t.Commission),
			t.RuleID.String(),
		)
		shown++
	}
	table.Render()
}

// PrintMonteCarlo prints the per-metric distributions.
func (c *Console) PrintMonteCarlo(res *montecarlo.Result) {
	fmt.Fprintf(c.out, "\n=== MONTE CARLO: %d simulations (%s) ===\n", res.NumSimulations, res.Method)
	fmt.Fprintf(c.out, "probability of profit: %.1f%%\n", res.ProbabilityOfProfit*100)

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Mean", "Median", "Std", "P5", "P95")

	for _, name := range []string{
		montecarlo.MetricTotalReturn,
		montecarlo.MetricAnnualizedReturn,
		montecarlo.MetricVolatility,
		montecarlo.MetricSharpe,
		montecarlo.MetricMaxDrawdown,
		montecarlo.MetricCalmar,
	} {
		d, ok := res.Metrics[name]
		if !ok {
			continue
		}
		table.Append(
			name,
			fmt.Sprintf("%.4f", d.Mean),
			fmt.Sprintf("%.4f", d.Median),
			fmt.Sprintf("%.4f", d.Std),
			fmt.Sprintf("%.4f", d.Percentiles[5]),
			fmt.Sprintf("%.4f", d.Percentiles[95]),
		)
	}
	table.Render()
}

// PrintLeaderboard prints grid-search results, best first.
func (c *Console) PrintLeaderboard(results []optimize.Result, top int) {
	fmt.Fprintf(c.out, "\n=== OPTIMIZATION: %d combinations ===\n", len(results))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Fast", "Slow", "Train Sharpe", "Train Ret", "Test Sharpe", "Test Ret", "Test DD")

	for i, r := range results {
		if top > 0 && i >= top {
			break
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", r.FastWindow),
			fmt.Sprintf("%d", r.SlowWindow),
			fmt.Sprintf("%.2f", r.Train.Sharpe),
			fmt.Sprintf("%.2f%%", r.Train.TotalReturn*100),
			fmt.Sprintf("%.2f", r.Test.Sharpe),
			fmt.Sprintf("%.2f%%", r.Test.TotalReturn*100),
			fmt.Sprintf("%.2f%%", r.Test.MaxDrawdown*100),
		)
	}
	table.Render()
}

// PrintHistory prints persisted run summaries.
func (c *Console) PrintHistory(runs []domain.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "no runs recorded")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Run", "Strategy", "Finished", "Equity", "Return", "Sharpe", "DD", "Trades")

	for _, r := range runs {
		table.Append(
			shortID(r.ID),
			r.Strategy,
			r.FinishedAt.Format(time.DateTime),
			fmt.Sprintf("$%.2f", r.FinalEquity),
			fmt.Sprintf("%.2f%%", r.TotalReturn*100),
			fmt.Sprintf("%.2f", r.Sharpe),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown*100),
			fmt.Sprintf("%d", r.NumTrades),
		)
	}
	table.Render()
}

func formatPF(pf float64) string {
	if math.IsInf(pf, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", pf)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
