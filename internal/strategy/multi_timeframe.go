package strategy

import (
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/types"
)

// MultiTimeframe trades the daily golden cross only when the weekly trend
// agrees: entries require the latest closed weekly bar above its SMA, exits
// require it below. The weekly SMA uses the slow period.
type MultiTimeframe struct {
	base
	weekly indicator.Indicator
	// lastWeekly is the timestamp of the most recent weekly bar folded into
	// the weekly SMA, so each closed week is consumed exactly once.
	lastWeekly optional.Option[time.Time]
	trendUp    optional.Option[bool]
}

func newMultiTimeframe(params Params, reg indicator.Registry) (Strategy, error) {
	cross, err := newCrossPair(params, reg)
	if err != nil {
		return nil, err
	}

	weekly, err := reg.NewIndicator(indicator.TypeSMA, params.SlowPeriod)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("sma_mtf_%d_%d", params.FastPeriod, params.SlowPeriod)

	return &MultiTimeframe{
		base:       newBase(name, params, cross),
		weekly:     weekly,
		lastWeekly: optional.None[time.Time](),
		trendUp:    optional.None[bool](),
	}, nil
}

// WarmupPeriod returns the slow SMA period. The weekly trend additionally
// gates decisions until its own SMA is ready.
func (s *MultiTimeframe) WarmupPeriod() int {
	return s.params.SlowPeriod
}

// RequiresConfirmationSeries is true: the variant cannot run without a
// higher-timeframe series.
func (s *MultiTimeframe) RequiresConfirmationSeries() bool {
	return true
}

func (s *MultiTimeframe) OnBar(ctx *Context) error {
	s.confirmTrend(ctx)

	direction := s.observe(ctx.Bar)
	if s.barsSeen < s.WarmupPeriod() || s.hasPending() {
		return nil
	}

	pos := ctx.Broker.Position()
	if pos.IsFlat() {
		if direction != types.CrossUp || s.trendUp.IsNone() || !s.trendUp.Unwrap() {
			return nil
		}

		order, err := s.submitMarket(ctx, types.SideBuy, s.params.FixedSize, types.OrderReasonEntry, optional.None[string]())
		if err != nil {
			return err
		}

		s.trackPending(order)

		return nil
	}

	if direction == types.CrossDown && s.trendUp.IsSome() && !s.trendUp.Unwrap() {
		return s.closeAll(ctx, types.OrderReasonClose)
	}

	return nil
}

// confirmTrend folds a newly closed weekly bar into the weekly SMA and
// refreshes the trend flag. Until the weekly SMA is ready the trend stays
// unknown and no decision is taken.
func (s *MultiTimeframe) confirmTrend(ctx *Context) {
	if ctx.Secondary.IsNone() {
		return
	}

	bar := ctx.Secondary.Unwrap()
	if s.lastWeekly.IsSome() && !bar.Time.After(s.lastWeekly.Unwrap()) {
		return
	}

	s.weekly.Update(bar)
	s.lastWeekly = optional.Some(bar.Time)

	if value := s.weekly.Value(); value.IsSome() {
		s.trendUp = optional.Some(bar.Close > value.Unwrap())
	}
}

func (s *MultiTimeframe) OnOrderCompleted(ctx *Context, order types.Order) error {
	s.settle(order)

	return nil
}
