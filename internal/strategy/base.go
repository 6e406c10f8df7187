package strategy

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/types"
	"go.uber.org/zap"
)

// base carries the state every variant shares: the fast/slow crossover pair,
// the handle of the single in-flight strategic order, and the bracket group
// protecting the open position, if any.
type base struct {
	name     string
	params   Params
	cross    *indicator.Crossover
	pending  optional.Option[string]
	group    optional.Option[string]
	barsSeen int
}

func newBase(name string, params Params, cross *indicator.Crossover) base {
	return base{
		name:    name,
		params:  params,
		cross:   cross,
		pending: optional.None[string](),
		group:   optional.None[string](),
	}
}

// Name returns a human-readable strategy name.
func (b *base) Name() string {
	return b.name
}

// RequiresConfirmationSeries is false for single-series variants.
func (b *base) RequiresConfirmationSeries() bool {
	return false
}

// OnTradeClosed logs the round trip and drops the bracket group now that
// nothing protects a position.
func (b *base) OnTradeClosed(ctx *Context, trade types.Trade) {
	b.group = optional.None[string]()

	ctx.Log.Info("trade closed",
		zap.String("strategy", b.name),
		zap.Float64("entry", trade.EntryPrice),
		zap.Float64("exit", trade.ExitPrice),
		zap.Int64("size", trade.Size),
		zap.Float64("net_pnl", trade.NetPnL),
		zap.Int("duration_bars", trade.DurationBars),
		zap.String("exit_reason", trade.ExitReason.Reason),
	)
}

// observe feeds the bar to the crossover pair and returns the signal at it.
func (b *base) observe(bar types.Bar) types.CrossDirection {
	b.barsSeen++

	return b.cross.Update(bar)
}

// hasPending reports whether a strategic order is still in flight. Variants
// make no new decision while one is.
func (b *base) hasPending() bool {
	return b.pending.IsSome()
}

func (b *base) trackPending(order types.Order) {
	b.pending = optional.Some(order.ID)
}

// settle clears the in-flight handle when the terminal order is the tracked
// one, and reports whether it was.
func (b *base) settle(order types.Order) bool {
	if b.pending.IsSome() && b.pending.Unwrap() == order.ID {
		b.pending = optional.None[string]()

		return true
	}

	return false
}

// submitMarket submits a market order stamped with the current bar.
func (b *base) submitMarket(ctx *Context, side types.Side, size int64, reason string, group optional.Option[string]) (types.Order, error) {
	order := types.Order{
		Side:           side,
		Kind:           types.OrderKindMarket,
		Size:           size,
		Reason:         types.Reason{Reason: reason},
		BracketGroup:   group,
		StrategyName:   b.name,
		SubmittedAt:    ctx.Bar.Time,
		SubmittedIndex: ctx.Index,
	}

	return ctx.Broker.Submit(order)
}

// submitExit submits a protective sell (stop or limit) in the given bracket
// group.
func (b *base) submitExit(ctx *Context, kind types.OrderKind, trigger float64, size int64, reason string, group string) error {
	order := types.Order{
		Side:           types.SideSell,
		Kind:           kind,
		TriggerPrice:   optional.Some(trigger),
		Size:           size,
		Reason:         types.Reason{Reason: reason},
		BracketGroup:   optional.Some(group),
		StrategyName:   b.name,
		SubmittedAt:    ctx.Bar.Time,
		SubmittedIndex: ctx.Index,
	}

	_, err := ctx.Broker.Submit(order)

	return err
}

// closeAll submits a market sell for the entire position. The sell joins the
// current bracket group so the broker retires any protective exits the moment
// it fills.
func (b *base) closeAll(ctx *Context, reason string) error {
	pos := ctx.Broker.Position()
	if pos.IsFlat() {
		return nil
	}

	order, err := b.submitMarket(ctx, types.SideSell, pos.Size, reason, b.group)
	if err != nil {
		return err
	}

	b.trackPending(order)

	return nil
}

// riskBudgetSize converts a cash risk budget into whole shares given the
// per-share loss at the protective stop. A non-positive per-share risk or a
// budget below one share yields zero, which callers treat as "skip the entry".
func riskBudgetSize(cash float64, riskPct float64, perShareRisk float64) int64 {
	if perShareRisk <= 0 {
		return 0
	}

	return int64(math.Floor(cash * riskPct / perShareRisk))
}
