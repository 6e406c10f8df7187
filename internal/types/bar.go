package types

import (
	"math"
	"time"

	"github.com/quantforge/backtest/pkg/errors"
)

// Bar is one OHLCV sample for a fixed time interval. Bars are immutable once
// loaded; a series of them is the sole market input to a backtest run.
type Bar struct {
	Time   time.Time `yaml:"time" json:"time"`
	Open   float64   `yaml:"open" json:"open"`
	High   float64   `yaml:"high" json:"high"`
	Low    float64   `yaml:"low" json:"low"`
	Close  float64   `yaml:"close" json:"close"`
	Volume int64     `yaml:"volume" json:"volume"`
}

// Validate checks that the bar is well formed: a timestamp, finite positive
// prices, high/low bracketing open/close, and non-negative volume.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return errors.New(errors.ErrCodeDataMalformed, "bar has zero timestamp")
	}

	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return errors.Newf(errors.ErrCodeDataMalformed, "bar at %s has invalid price", b.Time)
		}
	}

	if b.High < b.Low {
		return errors.Newf(errors.ErrCodeDataMalformed, "bar at %s has high < low", b.Time)
	}

	if b.Volume < 0 {
		return errors.Newf(errors.ErrCodeDataMalformed, "bar at %s has negative volume", b.Time)
	}

	return nil
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// Pass a non-positive prevClose for the first bar of a series; the true
// range then degrades to high-low.
func (b Bar) TrueRange(prevClose float64) float64 {
	tr := b.High - b.Low
	if prevClose <= 0 {
		return tr
	}

	tr = math.Max(tr, math.Abs(b.High-prevClose))
	tr = math.Max(tr, math.Abs(b.Low-prevClose))

	return tr
}
