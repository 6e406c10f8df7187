// Package engine runs the bar-by-bar simulation: config, the run loop, the
// result analyzer, the DuckDB run ledger, and the parameter sweep.
package engine

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/quantforge/backtest/internal/broker"
	"github.com/quantforge/backtest/internal/strategy"
	"github.com/quantforge/backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BrokerConfig selects the commission model applied to every fill.
type BrokerConfig struct {
	Commission broker.CommissionModel `yaml:"commission" json:"commission" validate:"required,oneof=zero_commission fixed_rate interactive_broker"`
	// CommissionRate is only meaningful for the fixed_rate model.
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0,lt=1"`
}

// Config is the full run configuration, parsed from yaml.
type Config struct {
	InitialCapital float64         `yaml:"initial_capital" json:"initial_capital" validate:"gt=0"`
	Broker         BrokerConfig    `yaml:"broker" json:"broker"`
	Strategy       strategy.Config `yaml:"strategy" json:"strategy"`
}

// DefaultConfig returns a runnable configuration: the crossover-brackets
// variant with its documented defaults, zero commission, and 10,000 starting
// cash.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10_000,
		Broker: BrokerConfig{
			Commission:     broker.CommissionModelZero,
			CommissionRate: 0,
		},
		Strategy: strategy.Config{
			Kind:   strategy.KindCrossoverBrackets,
			Params: strategy.DefaultParams(),
		},
	}
}

// ParseConfig unmarshals yaml over the defaults and validates the result, so
// a config file only needs to name the values it changes.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse config yaml", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration, including the strategy section.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid config", err)
	}

	return c.Strategy.Validate()
}

// ConfigSchema returns the JSON schema of the config file format.
func ConfigSchema() (string, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}

	schema := reflector.Reflect(&Config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to marshal config schema", err)
	}

	return string(out), nil
}
