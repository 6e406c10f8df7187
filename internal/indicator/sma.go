package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/pkg/errors"
)

// SMA is the arithmetic mean of the last `period` closes. It becomes ready at
// the bar where the window first fills (index period-1 of the series).
type SMA struct {
	period int
	window []float64
	sum    float64
}

// NewSMA creates a simple moving average indicator.
func NewSMA(period int) (Indicator, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return &SMA{
		period: period,
		window: make([]float64, 0, period),
		sum:    0,
	}, nil
}

// Name returns the name of the indicator.
func (s *SMA) Name() Type {
	return TypeSMA
}

// Period returns the configured lookback period.
func (s *SMA) Period() int {
	return s.period
}

// Update consumes the next bar's close.
func (s *SMA) Update(bar types.Bar) {
	s.window = append(s.window, bar.Close)
	s.sum += bar.Close

	if len(s.window) > s.period {
		s.sum -= s.window[0]
		s.window = s.window[1:]
	}
}

// Value returns the current mean, or None during warm-up.
func (s *SMA) Value() optional.Option[float64] {
	if len(s.window) < s.period {
		return optional.None[float64]()
	}

	return optional.Some(s.sum / float64(s.period))
}

// Reset discards the accumulated window.
func (s *SMA) Reset() {
	s.window = s.window[:0]
	s.sum = 0
}
