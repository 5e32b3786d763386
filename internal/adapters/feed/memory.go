// Package feed provides the in-memory bar feed used by the optimizer, the
// CLI demo and tests. Loading bars from files or APIs happens outside the
// core; this adapter only guarantees deterministic delivery order.
package feed

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/alejandrodnm/crossbt/internal/domain"
	"github.com/alejandrodnm/crossbt/internal/ports"
)

// Memory replays a fixed slice of bars. Bars are sorted by global timestamp
// with ties broken by symbol so multi-symbol replays are bit-for-bit
// reproducible.
type Memory struct {
	bars []domain.Bar
	next int
}

// NewMemory copies and orders the bars; the caller's slice is never aliased.
func NewMemory(bars []domain.Bar) *Memory {
	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})
	return &Memory{bars: sorted}
}

// Next implements ports.BarFeed.
func (m *Memory) Next(ctx context.Context) (domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bar{}, err
	}
	if m.next >= len(m.bars) {
		return domain.Bar{}, ports.ErrEndOfData
	}
	bar := m.bars[m.next]
	m.next++
	return bar, nil
}

// Len returns the number of bars in the feed.
func (m *Memory) Len() int { return len(m.bars) }

// Synthetic generates a seeded random-walk daily series for demos and tests.
func Synthetic(symbol string, n int, start time.Time, startPrice float64, seed int64) []domain.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]domain.Bar, 0, n)
	price := startPrice
	for i := 0; i < n; i++ {
		drift := price * 0.0002
		shock := price * 0.01 * rng.NormFloat64()
		open := price
		close := price + drift + shock
		if close < 1 {
			close = 1
		}
		high := open
		if close > high {
			high = close
		}
		low := open
		if close < low {
			low = close
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: start.AddDate(0, 0, i),
			Open:      open,
			High:      high * 1.002,
			Low:       low * 0.998,
			Close:     close,
			Volume:    1000 + float64(rng.Intn(9000)),
		})
		price = close
	}
	return bars
}
