// Package strategy implements the per-bar decision logic. The five variants
// form a closed enumeration; a single simulation loop drives any of them
// through the shared Strategy interface.
package strategy

import (
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/broker"
	"github.com/quantforge/backtest/internal/indicator"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/pkg/errors"
)

type Kind string

const (
	KindCrossoverBrackets Kind = "crossover_brackets"
	KindTrailingStop      Kind = "trailing_stop"
	KindATRSized          Kind = "atr_sized"
	KindTimedExit         Kind = "timed_exit"
	KindMultiTimeframe    Kind = "multi_timeframe"
)

var AllKinds = []any{
	KindCrossoverBrackets,
	KindTrailingStop,
	KindATRSized,
	KindTimedExit,
	KindMultiTimeframe,
}

// JSONSchema restricts the schema to the known strategy kinds.
func (Kind) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "string",
		Enum: AllKinds,
	}
}

// Context is what a strategy sees on each callback: the bar being processed,
// its index, the broker owning orders and position, and - for confirmation
// strategies - the latest fully closed higher-timeframe bar.
type Context struct {
	Bar       types.Bar
	Index     int
	Broker    *broker.Broker
	Secondary optional.Option[types.Bar]
	Log       *logger.Logger
}

// Strategy is the per-bar decision state machine. The engine guarantees that
// order-completion and trade-closed notifications for a bar are delivered
// before OnBar runs for that bar, so a strategy always sees its own order's
// outcome before deciding the next action.
type Strategy interface {
	// Name returns a human-readable strategy name.
	Name() string
	// WarmupPeriod returns the longest indicator lookback; the strategy is
	// a no-op until that many bars have been seen.
	WarmupPeriod() int
	// RequiresConfirmationSeries reports whether the strategy needs a
	// second, higher-timeframe series.
	RequiresConfirmationSeries() bool
	// OnBar runs the per-bar decision step.
	OnBar(ctx *Context) error
	// OnOrderCompleted is invoked for every order that reached a terminal
	// status while resolving the current bar.
	OnOrderCompleted(ctx *Context, order types.Order) error
	// OnTradeClosed is invoked when a fill returned the position to flat.
	OnTradeClosed(ctx *Context, trade types.Trade)
}

// Params are the named numeric parameters of the strategy variants, with the
// defaults the variants were originally tuned with. Unused parameters are
// ignored by variants that do not reference them.
type Params struct {
	FastPeriod      int     `yaml:"fast_period" json:"fast_period" validate:"gt=0"`
	SlowPeriod      int     `yaml:"slow_period" json:"slow_period" validate:"gt=0"`
	StopLossPct     float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gt=0,lt=1"`
	TakeProfitPct   float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gt=0"`
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct" json:"risk_per_trade_pct" validate:"gt=0,lte=1"`
	TrailPct        float64 `yaml:"trail_pct" json:"trail_pct" validate:"gt=0,lt=1"`
	ATRPeriod       int     `yaml:"atr_period" json:"atr_period" validate:"gt=0"`
	ATRMultiplier   float64 `yaml:"atr_multiplier" json:"atr_multiplier" validate:"gt=0"`
	MaxHoldBars     int     `yaml:"max_hold_bars" json:"max_hold_bars" validate:"gt=0"`
	FixedSize       int64   `yaml:"fixed_size" json:"fixed_size" validate:"gt=0"`
}

// DefaultParams returns the documented defaults for every parameter.
func DefaultParams() Params {
	return Params{
		FastPeriod:      10,
		SlowPeriod:      30,
		StopLossPct:     0.02,
		TakeProfitPct:   0.05,
		RiskPerTradePct: 0.01,
		TrailPct:        0.03,
		ATRPeriod:       14,
		ATRMultiplier:   3,
		MaxHoldBars:     20,
		FixedSize:       1,
	}
}

// Config selects a strategy variant and its parameters.
type Config struct {
	Kind   Kind   `yaml:"kind" json:"kind" validate:"required,oneof=crossover_brackets trailing_stop atr_sized timed_exit multi_timeframe"`
	Params Params `yaml:"params" json:"params"`
}

// Validate checks the configuration, including the fast < slow requirement
// shared by every variant.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid strategy config", err)
	}

	if c.Params.FastPeriod >= c.Params.SlowPeriod {
		return errors.Newf(errors.ErrCodeStrategyConfigError,
			"fast period (%d) must be less than slow period (%d)", c.Params.FastPeriod, c.Params.SlowPeriod)
	}

	return nil
}

// New builds the configured strategy variant with fresh indicator state.
func New(cfg Config, reg indicator.Registry) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindCrossoverBrackets:
		return newCrossoverBrackets(cfg.Params, reg)
	case KindTrailingStop:
		return newTrailingStop(cfg.Params, reg)
	case KindATRSized:
		return newATRSized(cfg.Params, reg)
	case KindTimedExit:
		return newTimedExit(cfg.Params, reg)
	case KindMultiTimeframe:
		return newMultiTimeframe(cfg.Params, reg)
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "unsupported strategy kind: %s", cfg.Kind)
	}
}

// newCrossPair builds the fast/slow SMA pair every variant uses.
func newCrossPair(params Params, reg indicator.Registry) (*indicator.Crossover, error) {
	fast, err := reg.NewIndicator(indicator.TypeSMA, params.FastPeriod)
	if err != nil {
		return nil, err
	}

	slow, err := reg.NewIndicator(indicator.TypeSMA, params.SlowPeriod)
	if err != nil {
		return nil, err
	}

	return indicator.NewCrossover(fast, slow), nil
}
