package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/broker"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/series"
	"github.com/quantforge/backtest/internal/strategy"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/pkg/errors"
	"go.uber.org/zap"
)

// Engine drives one simulation run: one strategy, one broker, one primary
// series, and optionally a resampled confirmation series. An engine is
// single-use; parallel runs each construct their own.
type Engine struct {
	cfg      Config
	strategy strategy.Strategy
	broker   *broker.Broker
	primary  *series.Series
	cursor   *series.Cursor
	state    *State
	log      *logger.Logger

	// BarHook, when set, is called after each processed bar. The CLI uses it
	// to drive a progress bar.
	BarHook func(done int, total int)
}

// New builds an engine from the validated config. Strategies that require a
// confirmation series fail construction when none is given.
func New(cfg Config, primary *series.Series, confirmation optional.Option[*series.Series], log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := strategy.New(cfg.Strategy, indicator.NewRegistry())
	if err != nil {
		return nil, err
	}

	if st.RequiresConfirmationSeries() && confirmation.IsNone() {
		return nil, errors.Newf(errors.ErrCodeMissingSeries,
			"strategy %s requires a confirmation series", st.Name())
	}

	var cursor *series.Cursor
	if confirmation.IsSome() {
		cursor = series.NewCursor(confirmation.Unwrap())
	}

	fee := broker.GetCommissionFeeHandler(cfg.Broker.Commission, cfg.Broker.CommissionRate)

	return &Engine{
		cfg:      cfg,
		strategy: st,
		broker:   broker.NewBroker(cfg.InitialCapital, fee, log),
		primary:  primary,
		cursor:   cursor,
		log:      log,
	}, nil
}

// SetState attaches a run ledger; every terminal order and closed trade is
// recorded into it during Run.
func (e *Engine) SetState(state *State) {
	e.state = state
}

// Strategy returns the strategy driven by this engine.
func (e *Engine) Strategy() strategy.Strategy {
	return e.strategy
}

// Broker returns the broker owned by this engine.
func (e *Engine) Broker() *broker.Broker {
	return e.broker
}

// Run executes the simulation over every bar of the primary series. Per bar:
// pending orders resolve first and their completion and trade notifications
// are delivered synchronously, then the strategy sees the bar, then the
// account is marked to the close. An empty series yields an empty equity
// curve and no error.
func (e *Engine) Run(ctx context.Context) (*types.RunResult, error) {
	total := e.primary.Len()
	equity := make([]types.EquityPoint, 0, total)
	trades := []types.Trade{}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "run interrupted", err)
		}

		bar := e.primary.Bar(i)

		secondary := optional.None[types.Bar]()
		if e.cursor != nil {
			secondary = e.cursor.Advance(bar.Time)
		}

		sctx := &strategy.Context{
			Bar:       bar,
			Index:     i,
			Broker:    e.broker,
			Secondary: secondary,
			Log:       e.log,
		}

		terminal, closed := e.broker.ResolveBar(bar, i)

		for _, order := range terminal {
			if e.state != nil {
				if err := e.state.RecordOrder(order); err != nil {
					return nil, err
				}
			}

			if err := e.strategy.OnOrderCompleted(sctx, order); err != nil {
				return nil, err
			}
		}

		for _, trade := range closed {
			trades = append(trades, trade)

			if e.state != nil {
				if err := e.state.RecordTrade(trade); err != nil {
					return nil, err
				}
			}

			e.strategy.OnTradeClosed(sctx, trade)
		}

		if err := e.strategy.OnBar(sctx); err != nil {
			return nil, err
		}

		equity = append(equity, types.EquityPoint{Time: bar.Time, Value: e.broker.Equity(bar.Close)})

		if e.BarHook != nil {
			e.BarHook(i+1, total)
		}
	}

	finalValue := e.cfg.InitialCapital
	if len(equity) > 0 {
		finalValue = equity[len(equity)-1].Value
	}

	e.log.Info("run finished",
		zap.String("strategy", e.strategy.Name()),
		zap.Int("bars", total),
		zap.Int("trades", len(trades)),
		zap.Float64("final_value", finalValue),
	)

	return &types.RunResult{
		FinalValue: finalValue,
		Equity:     equity,
		Trades:     trades,
	}, nil
}
