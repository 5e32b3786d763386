package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/crossbt/internal/domain"
)

// ErrEndOfData signals that a feed has delivered its last bar.
var ErrEndOfData = errors.New("feed: end of data")

// BarFeed delivers bars in global timestamp order, ties broken by symbol, so
// that replays are deterministic. Data loading itself lives outside the core;
// implementations just hand over an already ordered stream.
type BarFeed interface {
	// Next returns the next bar, ErrEndOfData when exhausted, or the context
	// error if the run was cancelled.
	Next(ctx context.Context) (domain.Bar, error)
}
