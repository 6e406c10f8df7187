package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/pkg/errors"
)

// ATR is the rolling average of the true range over `period` bars, where
// true range = max(high-low, |high-prevClose|, |low-prevClose|). The first
// bar of a series has no previous close, so its true range is high-low.
type ATR struct {
	period    int
	window    []float64
	sum       float64
	prevClose float64
	seen      int
}

// NewATR creates an average true range indicator.
func NewATR(period int) (Indicator, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return &ATR{
		period:    period,
		window:    make([]float64, 0, period),
		sum:       0,
		prevClose: 0,
		seen:      0,
	}, nil
}

// Name returns the name of the indicator.
func (a *ATR) Name() Type {
	return TypeATR
}

// Period returns the configured lookback period.
func (a *ATR) Period() int {
	return a.period
}

// Update consumes the next bar and folds its true range into the window.
func (a *ATR) Update(bar types.Bar) {
	tr := bar.TrueRange(a.prevClose)
	a.prevClose = bar.Close
	a.seen++

	a.window = append(a.window, tr)
	a.sum += tr

	if len(a.window) > a.period {
		a.sum -= a.window[0]
		a.window = a.window[1:]
	}
}

// Value returns the current average true range. The indicator warms up for
// one bar longer than its period so the window never includes the degenerate
// first-bar true range once enough bars exist.
func (a *ATR) Value() optional.Option[float64] {
	if a.seen <= a.period {
		return optional.None[float64]()
	}

	return optional.Some(a.sum / float64(a.period))
}

// Reset discards the accumulated window.
func (a *ATR) Reset() {
	a.window = a.window[:0]
	a.sum = 0
	a.prevClose = 0
	a.seen = 0
}
