package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/broker"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/types"
	"go.uber.org/zap"
)

// ATRSized buys on a golden cross with the position sized off volatility: the
// risk budget divided by an ATR multiple, which also sets the stop distance
// below the fill.
type ATRSized struct {
	base
	atr indicator.Indicator
	// stopDistance is the ATR multiple captured at signal time, applied to
	// the fill price when the entry completes.
	stopDistance float64
}

func newATRSized(params Params, reg indicator.Registry) (Strategy, error) {
	cross, err := newCrossPair(params, reg)
	if err != nil {
		return nil, err
	}

	atr, err := reg.NewIndicator(indicator.TypeATR, params.ATRPeriod)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("sma_atr_%d_%d_%d", params.FastPeriod, params.SlowPeriod, params.ATRPeriod)

	return &ATRSized{base: newBase(name, params, cross), atr: atr}, nil
}

// WarmupPeriod covers the slow SMA and the ATR, whichever is longer. The ATR
// needs one extra bar for its first true range.
func (s *ATRSized) WarmupPeriod() int {
	if s.params.SlowPeriod >= s.params.ATRPeriod+1 {
		return s.params.SlowPeriod
	}

	return s.params.ATRPeriod + 1
}

func (s *ATRSized) OnBar(ctx *Context) error {
	s.atr.Update(ctx.Bar)

	direction := s.observe(ctx.Bar)
	if s.barsSeen < s.WarmupPeriod() || s.hasPending() {
		return nil
	}

	pos := ctx.Broker.Position()
	if pos.IsFlat() {
		if direction != types.CrossUp {
			return nil
		}

		atrValue := s.atr.Value()
		if atrValue.IsNone() {
			return nil
		}

		dist := atrValue.Unwrap() * s.params.ATRMultiplier
		size := riskBudgetSize(ctx.Broker.Cash(), s.params.RiskPerTradePct, dist)
		if size <= 0 {
			ctx.Log.Debug("entry skipped, risk budget below one share",
				zap.String("strategy", s.name),
				zap.Float64("stop_distance", dist),
			)

			return nil
		}

		order, err := s.submitMarket(ctx, types.SideBuy, size, types.OrderReasonEntry, optional.None[string]())
		if err != nil {
			return err
		}

		s.trackPending(order)
		s.stopDistance = dist

		return nil
	}

	if direction == types.CrossDown {
		return s.closeAll(ctx, types.OrderReasonClose)
	}

	return nil
}

// OnOrderCompleted places the ATR stop once the entry fills.
func (s *ATRSized) OnOrderCompleted(ctx *Context, order types.Order) error {
	s.settle(order)

	if order.Status != types.OrderStatusCompleted || !order.IsBuy() {
		return nil
	}

	stop := order.FillPrice - s.stopDistance
	if stop <= 0 {
		ctx.Log.Warn("ATR stop below zero, position left unprotected",
			zap.String("strategy", s.name),
			zap.Float64("fill", order.FillPrice),
			zap.Float64("stop_distance", s.stopDistance),
		)

		return nil
	}

	group := broker.NewBracketGroup()
	if err := s.submitExit(ctx, types.OrderKindStop, stop, order.Size, types.OrderReasonStopLoss, group); err != nil {
		return err
	}

	s.group = optional.Some(group)

	return nil
}
