package types

import "time"

// Position represents the current holding for the single simulated instrument.
// Size is positive for long exposure; the position is mutated only by
// completed order fills.
type Position struct {
	Size          int64     `yaml:"size" json:"size"`
	AvgEntryPrice float64   `yaml:"avg_entry_price" json:"avg_entry_price"`
	OpenedAt      time.Time `yaml:"opened_at" json:"opened_at"`
	OpenedIndex   int       `yaml:"opened_index" json:"opened_index"`
}

// IsFlat reports whether there is no open exposure.
func (p Position) IsFlat() bool {
	return p.Size == 0
}

// MarketValue marks the position to the given close price.
func (p Position) MarketValue(close float64) float64 {
	return float64(p.Size) * close
}
