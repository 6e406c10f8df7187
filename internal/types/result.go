package types

import "time"

// EquityPoint is the mark-to-market account value after all fills for a bar
// were resolved. Exactly one point is recorded per processed bar.
type EquityPoint struct {
	Time  time.Time `yaml:"time" json:"time"`
	Value float64   `yaml:"value" json:"value"`
}

// RunResult is the full output of one backtest run.
type RunResult struct {
	FinalValue float64       `yaml:"final_value" json:"final_value"`
	Equity     []EquityPoint `yaml:"equity" json:"equity"`
	Trades     []Trade       `yaml:"trades" json:"trades"`
}

// Drawdown derives the drawdown series from the equity curve:
// (value - running_max) / running_max, zero at new highs.
func (r *RunResult) Drawdown() []EquityPoint {
	if len(r.Equity) == 0 {
		return nil
	}

	drawdown := make([]EquityPoint, len(r.Equity))
	runningMax := r.Equity[0].Value

	for i, point := range r.Equity {
		if point.Value > runningMax {
			runningMax = point.Value
		}

		var dd float64
		if runningMax > 0 {
			dd = (point.Value - runningMax) / runningMax
		}

		drawdown[i] = EquityPoint{Time: point.Time, Value: dd}
	}

	return drawdown
}

// MaxDrawdown returns the deepest drawdown as a non-negative fraction.
func (r *RunResult) MaxDrawdown() float64 {
	var maxDD float64

	for _, point := range r.Drawdown() {
		if point.Value < maxDD {
			maxDD = point.Value
		}
	}

	return -maxDD
}
