// Package series holds the ordered, immutable OHLCV sequences a backtest run
// consumes, plus calendar resampling for higher-timeframe confirmation.
package series

import (
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/pkg/errors"
)

// Series is an ordered sequence of bars, strictly increasing by timestamp.
// It is read-only for the duration of a run.
type Series struct {
	bars []types.Bar
}

// New validates and wraps a bar slice. Bars must be strictly increasing by
// timestamp with no duplicates; malformed rows are a hard failure, per the
// data input contract.
func New(bars []types.Bar) (*Series, error) {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataMalformed, err, "bar %d is malformed", i)
		}

		if i == 0 {
			continue
		}

		prev := bars[i-1].Time
		if bar.Time.Equal(prev) {
			return nil, errors.Newf(errors.ErrCodeDataDuplicateTime, "duplicate timestamp %s at bar %d", bar.Time, i)
		}

		if bar.Time.Before(prev) {
			return nil, errors.Newf(errors.ErrCodeDataNotOrdered, "timestamp %s at bar %d is before its predecessor", bar.Time, i)
		}
	}

	copied := make([]types.Bar, len(bars))
	copy(copied, bars)

	return &Series{bars: copied}, nil
}

// Empty returns a series with no bars. A run over it produces an empty
// equity series, not an error.
func Empty() *Series {
	return &Series{bars: nil}
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.bars)
}

// Bar returns the bar at index i. Panics on out-of-range access, the same as
// a slice would.
func (s *Series) Bar(i int) types.Bar {
	return s.bars[i]
}

// Bars returns the underlying bars. Callers must treat the slice as read-only.
func (s *Series) Bars() []types.Bar {
	return s.bars
}

// Last returns the final bar, or false when the series is empty.
func (s *Series) Last() (types.Bar, bool) {
	if len(s.bars) == 0 {
		return types.Bar{}, false
	}

	return s.bars[len(s.bars)-1], true
}
