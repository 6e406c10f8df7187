// Package indicator implements incremental technical indicators. Each
// indicator is a deterministic function of a bounded trailing window of bars:
// it reports None until the window is full ("warm-up") and one value per bar
// afterwards.
package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/types"
)

type Type string

const (
	TypeSMA Type = "sma"
	TypeATR Type = "atr"
)

// Indicator consumes bars one at a time and exposes the current value of its
// trailing window. Implementations carry no hidden state beyond that window,
// so a fresh instance replayed over the same bars reproduces every value.
type Indicator interface {
	// Name returns the indicator type.
	Name() Type
	// Period returns the configured lookback period.
	Period() int
	// Update consumes the next bar of the series.
	Update(bar types.Bar)
	// Value returns the current value, or None during warm-up.
	Value() optional.Option[float64]
	// Reset discards all accumulated window state.
	Reset()
}

// Constructor builds an indicator for a given period.
type Constructor func(period int) (Indicator, error)
