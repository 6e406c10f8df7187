package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/types"
)

// TimedExit buys a fixed size on a golden cross and leaves on whichever comes
// first: a cross down or a maximum holding period in bars.
type TimedExit struct {
	base
	entryIndex int
}

func newTimedExit(params Params, reg indicator.Registry) (Strategy, error) {
	cross, err := newCrossPair(params, reg)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("sma_timed_%d_%d_%d", params.FastPeriod, params.SlowPeriod, params.MaxHoldBars)

	return &TimedExit{base: newBase(name, params, cross)}, nil
}

// WarmupPeriod returns the slow SMA period.
func (s *TimedExit) WarmupPeriod() int {
	return s.params.SlowPeriod
}

func (s *TimedExit) OnBar(ctx *Context) error {
	direction := s.observe(ctx.Bar)
	if s.barsSeen < s.WarmupPeriod() || s.hasPending() {
		return nil
	}

	pos := ctx.Broker.Position()
	if pos.IsFlat() {
		if direction != types.CrossUp {
			return nil
		}

		order, err := s.submitMarket(ctx, types.SideBuy, s.params.FixedSize, types.OrderReasonEntry, optional.None[string]())
		if err != nil {
			return err
		}

		s.trackPending(order)

		return nil
	}

	if direction == types.CrossDown {
		return s.closeAll(ctx, types.OrderReasonClose)
	}

	if ctx.Index-s.entryIndex >= s.params.MaxHoldBars {
		return s.closeAll(ctx, types.OrderReasonTimedExit)
	}

	return nil
}

// OnOrderCompleted records the fill bar so the holding clock starts at the
// fill, not the signal.
func (s *TimedExit) OnOrderCompleted(ctx *Context, order types.Order) error {
	s.settle(order)

	if order.Status == types.OrderStatusCompleted && order.IsBuy() {
		s.entryIndex = order.FillIndex
	}

	return nil
}
