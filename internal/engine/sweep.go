package engine

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/series"
	"github.com/quantforge/backtest/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ParamRange enumerates start, start+step, ... up to and including stop.
type ParamRange struct {
	Start int `yaml:"start" json:"start" validate:"gt=0"`
	Stop  int `yaml:"stop" json:"stop" validate:"gtefield=Start"`
	Step  int `yaml:"step" json:"step" validate:"gt=0"`
}

// Values expands the range into its concrete values.
func (r ParamRange) Values() []int {
	var values []int
	for v := r.Start; v <= r.Stop; v += r.Step {
		values = append(values, v)
	}

	return values
}

// SweepConfig describes a grid over the fast and slow SMA periods.
type SweepConfig struct {
	FastPeriod ParamRange `yaml:"fast_period" json:"fast_period"`
	SlowPeriod ParamRange `yaml:"slow_period" json:"slow_period"`
	// Workers caps run concurrency; zero means one worker per CPU.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
}

// ParseSweepConfig unmarshals and validates a sweep grid.
func ParseSweepConfig(data []byte) (SweepConfig, error) {
	var cfg SweepConfig

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SweepConfig{}, errors.Wrap(errors.ErrCodeSweepInvalidRange, "failed to parse sweep yaml", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return SweepConfig{}, errors.Wrap(errors.ErrCodeSweepInvalidRange, "invalid sweep range", err)
	}

	return cfg, nil
}

// SweepResult is the outcome of one parameter combination.
type SweepResult struct {
	FastPeriod  int     `yaml:"fast_period" json:"fast_period"`
	SlowPeriod  int     `yaml:"slow_period" json:"slow_period"`
	FinalValue  float64 `yaml:"final_value" json:"final_value"`
	Trades      int     `yaml:"trades" json:"trades"`
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// Sweep runs every valid fast/slow combination of the grid over the same
// series and returns the results ranked by final value, best first.
// Combinations where the fast period is not strictly below the slow period
// are skipped before any run starts. Each combination gets a fresh engine,
// broker, and strategy; runs execute concurrently across a bounded worker
// pool. onResult, when non-nil, is called once per finished combination.
func Sweep(ctx context.Context, cfg Config, grid SweepConfig, primary *series.Series, confirmation optional.Option[*series.Series], log *logger.Logger, onResult func(SweepResult)) ([]SweepResult, error) {
	type combo struct {
		fast int
		slow int
	}

	var combos []combo
	for _, fast := range grid.FastPeriod.Values() {
		for _, slow := range grid.SlowPeriod.Values() {
			if fast >= slow {
				continue
			}

			combos = append(combos, combo{fast: fast, slow: slow})
		}
	}

	if len(combos) == 0 {
		return nil, errors.New(errors.ErrCodeSweepInvalidRange, "sweep grid yields no combination with fast period below slow period")
	}

	workers := grid.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	if workers > len(combos) {
		workers = len(combos)
	}

	log.Info("sweep started",
		zap.Int("combinations", len(combos)),
		zap.Int("workers", workers),
	)

	jobs := make(chan combo)
	resultCh := make(chan SweepResult, len(combos))
	errCh := make(chan error, len(combos))
	runLog := logger.NewNopLogger()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for job := range jobs {
				runCfg := cfg
				runCfg.Strategy.Params.FastPeriod = job.fast
				runCfg.Strategy.Params.SlowPeriod = job.slow

				eng, err := New(runCfg, primary, confirmation, runLog)
				if err != nil {
					errCh <- err

					continue
				}

				result, err := eng.Run(ctx)
				if err != nil {
					errCh <- err

					continue
				}

				resultCh <- SweepResult{
					FastPeriod:  job.fast,
					SlowPeriod:  job.slow,
					FinalValue:  result.FinalValue,
					Trades:      len(result.Trades),
					MaxDrawdown: result.MaxDrawdown(),
				}
			}
		}()
	}

	go func() {
		defer close(jobs)

		for _, job := range combos {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
		close(errCh)
	}()

	results := make([]SweepResult, 0, len(combos))
	for result := range resultCh {
		results = append(results, result)

		if onResult != nil {
			onResult(result)
		}
	}

	if err := <-errCh; err != nil {
		return nil, err
	}

	// Cancellation can stop the feeder before any job errs; partial results
	// are not a ranking.
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "sweep interrupted", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FinalValue > results[j].FinalValue
	})

	log.Info("sweep finished", zap.Int("results", len(results)))

	return results, nil
}
