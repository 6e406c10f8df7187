package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/broker"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/types"
	"go.uber.org/zap"
)

// CrossoverBrackets buys on a golden cross and, once the entry fills, arms a
// stop-loss / take-profit pair around the fill price. Position size is the
// configured risk budget divided by the per-share loss at the stop.
type CrossoverBrackets struct {
	base
}

func newCrossoverBrackets(params Params, reg indicator.Registry) (Strategy, error) {
	cross, err := newCrossPair(params, reg)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("sma_cross_%d_%d", params.FastPeriod, params.SlowPeriod)

	return &CrossoverBrackets{base: newBase(name, params, cross)}, nil
}

// WarmupPeriod returns the slow SMA period.
func (s *CrossoverBrackets) WarmupPeriod() int {
	return s.params.SlowPeriod
}

// OnBar enters on a cross up when flat and closes on a cross down while in a
// position.
func (s *CrossoverBrackets) OnBar(ctx *Context) error {
	direction := s.observe(ctx.Bar)
	if s.barsSeen < s.WarmupPeriod() || s.hasPending() {
		return nil
	}

	pos := ctx.Broker.Position()
	if pos.IsFlat() {
		if direction != types.CrossUp {
			return nil
		}

		perShareRisk := ctx.Bar.Close * s.params.StopLossPct
		size := riskBudgetSize(ctx.Broker.Cash(), s.params.RiskPerTradePct, perShareRisk)
		if size <= 0 {
			ctx.Log.Debug("entry skipped, risk budget below one share",
				zap.String("strategy", s.name),
				zap.Float64("cash", ctx.Broker.Cash()),
				zap.Float64("per_share_risk", perShareRisk),
			)

			return nil
		}

		order, err := s.submitMarket(ctx, types.SideBuy, size, types.OrderReasonEntry, optional.None[string]())
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

// OnOrderCompleted arms the bracket pair when the entry fills.
func (s *CrossoverBrackets) OnOrderCompleted(ctx *Context, order types.Order) error {
	s.settle(order)

	if order.Status != types.OrderStatusCompleted || !order.IsBuy() {
		return nil
	}

	group := broker.NewBracketGroup()
	stop := order.FillPrice * (1 - s.params.StopLossPct)
	take := order.FillPrice * (1 + s.params.TakeProfitPct)

	if err := s.submitExit(ctx, types.OrderKindStop, stop, order.Size, types.OrderReasonStopLoss, group); err != nil {
		return err
	}

	if err := s.submitExit(ctx, types.OrderKindLimit, take, order.Size, types.OrderReasonTakeProfit, group); err != nil {
		return err
	}

	s.group = optional.Some(group)

	ctx.Log.Debug("bracket armed",
		zap.String("strategy", s.name),
		zap.Float64("fill", order.FillPrice),
		zap.Float64("stop", stop),
		zap.Float64("take", take),
	)

	return nil
}
