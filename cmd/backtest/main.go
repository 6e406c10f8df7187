package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/datasource"
	"github.com/quantforge/backtest/internal/engine"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/series"
	"github.com/quantforge/backtest/internal/strategy"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/internal/version"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	// Optional .env for local defaults; a missing file is not an error.
	_ = godotenv.Load()

	log, err := logger.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	app := &cli.Command{
		Name:    "backtest",
		Usage:   "bar-by-bar backtest engine",
		Version: version.Version,
		Commands: []*cli.Command{
			runCommand(log),
			sweepCommand(log),
			schemaCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func runCommand(log *logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run one backtest and write its results folder",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the run config yaml",
				Sources:  cli.EnvVars("BACKTEST_CONFIG"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "path to the OHLCV csv or parquet file",
				Sources:  cli.EnvVars("BACKTEST_DATA"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "results directory",
				Sources: cli.EnvVars("BACKTEST_OUTPUT"),
				Value:   "results",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, primary, confirmation, err := loadInputs(cmd.String("config"), cmd.String("data"), log)
			if err != nil {
				return err
			}

			eng, err := engine.New(cfg, primary, confirmation, log)
			if err != nil {
				return err
			}

			state, err := engine.NewState(log)
			if err != nil {
				return err
			}
			defer state.Close()

			eng.SetState(state)

			bar := progressbar.Default(int64(primary.Len()), "running")
			eng.BarHook = func(done int, total int) {
				_ = bar.Add(1)
			}

			result, err := eng.Run(ctx)
			if err != nil {
				return err
			}

			output := cmd.String("output")
			if err := os.MkdirAll(output, 0755); err != nil {
				return err
			}

			stats := eng.Analyze(result, cmd.String("data"))
			if err := types.WriteTradeStats(filepath.Join(output, "stats.yaml"), stats); err != nil {
				return err
			}

			if err := writeYaml(filepath.Join(output, "equity.yaml"), result.Equity); err != nil {
				return err
			}

			if err := state.WriteParquet(output); err != nil {
				return err
			}

			counts, err := state.OrderCountByStatus()
			if err != nil {
				return err
			}

			log.Info("results written",
				zap.String("output", output),
				zap.Float64("final_value", result.FinalValue),
				zap.Float64("max_drawdown", result.MaxDrawdown()),
				zap.Any("orders_by_status", counts),
			)

			return nil
		},
	}
}

func sweepCommand(log *logger.Logger) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "run a parameter grid and rank the results by final value",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to the run config yaml",
				Sources:  cli.EnvVars("BACKTEST_CONFIG"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "sweep",
				Aliases:  []string{"s"},
				Usage:    "path to the sweep grid yaml",
				Sources:  cli.EnvVars("BACKTEST_SWEEP"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "path to the OHLCV csv or parquet file",
				Sources:  cli.EnvVars("BACKTEST_DATA"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "results directory",
				Sources: cli.EnvVars("BACKTEST_OUTPUT"),
				Value:   "results",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, primary, confirmation, err := loadInputs(cmd.String("config"), cmd.String("data"), log)
			if err != nil {
				return err
			}

			sweepData, err := os.ReadFile(cmd.String("sweep"))
			if err != nil {
				return err
			}

			grid, err := engine.ParseSweepConfig(sweepData)
			if err != nil {
				return err
			}

			bar := progressbar.Default(-1, "sweeping")
			results, err := engine.Sweep(ctx, cfg, grid, primary, confirmation, log, func(engine.SweepResult) {
				_ = bar.Add(1)
			})
			if err != nil {
				return err
			}

			output := cmd.String("output")
			if err := os.MkdirAll(output, 0755); err != nil {
				return err
			}

			if err := writeYaml(filepath.Join(output, "sweep_results.yaml"), results); err != nil {
				return err
			}

			if len(results) > 0 {
				best := results[0]
				log.Info("sweep results written",
					zap.String("output", output),
					zap.Int("best_fast_period", best.FastPeriod),
					zap.Int("best_slow_period", best.SlowPeriod),
					zap.Float64("best_final_value", best.FinalValue),
				)
			}

			return nil
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "print the JSON schema of the run config file",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			schema, err := engine.ConfigSchema()
			if err != nil {
				return err
			}

			fmt.Println(schema)

			return nil
		},
	}
}

// loadInputs parses the run config and loads the primary series, deriving the
// weekly confirmation series when the configured strategy needs one.
func loadInputs(configPath string, dataPath string, log *logger.Logger) (engine.Config, *series.Series, optional.Option[*series.Series], error) {
	none := optional.None[*series.Series]()

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return engine.Config{}, nil, none, err
	}

	cfg, err := engine.ParseConfig(configData)
	if err != nil {
		return engine.Config{}, nil, none, err
	}

	source, err := datasource.NewDuckDBSource(log)
	if err != nil {
		return engine.Config{}, nil, none, err
	}
	defer source.Close()

	primary, err := source.ReadSeries(dataPath)
	if err != nil {
		return engine.Config{}, nil, none, err
	}

	confirmation := none
	if cfg.Strategy.Kind == strategy.KindMultiTimeframe {
		confirmation = optional.Some(series.ResampleWeekly(primary))
	}

	return cfg, primary, confirmation, nil
}

func writeYaml(path string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
