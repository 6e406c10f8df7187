package types

import "time"

// Trade is one closed round trip. It is created when the position returns to
// flat and is immutable afterwards; the ledger only ever appends.
type Trade struct {
	EntryIndex int       `yaml:"entry_index" json:"entry_index"`
	ExitIndex  int       `yaml:"exit_index" json:"exit_index"`
	EntryTime  time.Time `yaml:"entry_time" json:"entry_time"`
	ExitTime   time.Time `yaml:"exit_time" json:"exit_time"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price"`
	ExitPrice  float64   `yaml:"exit_price" json:"exit_price"`
	Size       int64     `yaml:"size" json:"size"`
	// GrossPnL is (exit - entry) * size before commission.
	GrossPnL float64 `yaml:"gross_pnl" json:"gross_pnl"`
	// NetPnL is GrossPnL minus all commission paid on the round trip.
	NetPnL     float64 `yaml:"net_pnl" json:"net_pnl"`
	Commission float64 `yaml:"commission" json:"commission"`
	// DurationBars counts bars between entry fill and exit fill.
	DurationBars int    `yaml:"duration_bars" json:"duration_bars"`
	ExitReason   Reason `yaml:"exit_reason" json:"exit_reason"`
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
}

// IsWin reports whether the round trip was profitable after commission.
func (t *Trade) IsWin() bool {
	return t.NetPnL > 0
}
