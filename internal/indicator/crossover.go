package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/types"
)

// Crossover compares a fast and a slow indicator across consecutive bars.
// It signals up when the fast value passes from at-or-below to above the
// slow value, down for the mirror case, and none otherwise. While either
// indicator is warming up the result is none; at the first bar where both
// become ready the current values are compared directly, so a fast average
// already above the slow one signals up at readiness.
type Crossover struct {
	fast     Indicator
	slow     Indicator
	prevFast optional.Option[float64]
	prevSlow optional.Option[float64]
}

// NewCrossover wraps a fast/slow indicator pair. Update drives both, so the
// caller must not update them separately.
func NewCrossover(fast Indicator, slow Indicator) *Crossover {
	return &Crossover{
		fast:     fast,
		slow:     slow,
		prevFast: optional.None[float64](),
		prevSlow: optional.None[float64](),
	}
}

// Update consumes the next bar and returns the crossover direction at it.
func (c *Crossover) Update(bar types.Bar) types.CrossDirection {
	prevFast := c.prevFast
	prevSlow := c.prevSlow

	c.fast.Update(bar)
	c.slow.Update(bar)

	curFast := c.fast.Value()
	curSlow := c.slow.Value()
	c.prevFast = curFast
	c.prevSlow = curSlow

	if curFast.IsNone() || curSlow.IsNone() {
		return types.CrossNone
	}

	if prevFast.IsNone() || prevSlow.IsNone() {
		switch {
		case curFast.Unwrap() > curSlow.Unwrap():
			return types.CrossUp
		case curFast.Unwrap() < curSlow.Unwrap():
			return types.CrossDown
		default:
			return types.CrossNone
		}
	}

	pf := prevFast.Unwrap()
	ps := prevSlow.Unwrap()
	f := curFast.Unwrap()
	s := curSlow.Unwrap()

	switch {
	case pf <= ps && f > s:
		return types.CrossUp
	case pf >= ps && f < s:
		return types.CrossDown
	default:
		return types.CrossNone
	}
}

// Fast returns the current fast indicator value.
func (c *Crossover) Fast() optional.Option[float64] {
	return c.fast.Value()
}

// Slow returns the current slow indicator value.
func (c *Crossover) Slow() optional.Option[float64] {
	return c.slow.Value()
}

// Reset discards both indicators' state and the previous value pair.
func (c *Crossover) Reset() {
	c.fast.Reset()
	c.slow.Reset()
	c.prevFast = optional.None[float64]()
	c.prevSlow = optional.None[float64]()
}
