package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/broker"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/types"
)

// TrailingStop buys a fixed size on a golden cross and protects the position
// with a trailing stop that follows the highest close since the fill. A cross
// down closes the position before the trail is hit.
type TrailingStop struct {
	base
}

func newTrailingStop(params Params, reg indicator.Registry) (Strategy, error) {
	cross, err := newCrossPair(params, reg)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("sma_trailing_%d_%d", params.FastPeriod, params.SlowPeriod)

	return &TrailingStop{base: newBase(name, params, cross)}, nil
}

// WarmupPeriod returns the slow SMA period.
func (s *TrailingStop) WarmupPeriod() int {
	return s.params.SlowPeriod
}

func (s *TrailingStop) OnBar(ctx *Context) error {
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

	return nil
}

// OnOrderCompleted places the trailing stop once the entry fills.
func (s *TrailingStop) OnOrderCompleted(ctx *Context, order types.Order) error {
	s.settle(order)

	if order.Status != types.OrderStatusCompleted || !order.IsBuy() {
		return nil
	}

	group := broker.NewBracketGroup()
	trail := types.Order{
		Side:           types.SideSell,
		Kind:           types.OrderKindStopTrail,
		TrailPercent:   optional.Some(s.params.TrailPct),
		Size:           order.Size,
		Reason:         types.Reason{Reason: types.OrderReasonTrailingStop},
		BracketGroup:   optional.Some(group),
		StrategyName:   s.name,
		SubmittedAt:    ctx.Bar.Time,
		SubmittedIndex: ctx.Index,
	}

	if _, err := ctx.Broker.Submit(trail); err != nil {
		return err
	}

	s.group = optional.Some(group)

	return nil
}
