package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type TradeHoldingTime struct {
	// Minimum holding time of a trade in bars
	Min int `yaml:"min"`
	// Maximum holding time of a trade in bars
	Max int `yaml:"max"`
	// Average holding time of a trade in bars
	Avg int `yaml:"avg"`
}

type TradePnl struct {
	// Realized PnL summed over all closed trades, net of commission.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// Unrealized PnL of the open position marked to the final close.
	UnrealizedPnL float64 `yaml:"unrealized_pnl"`
	// Total PnL. RealizedPnL plus UnrealizedPnL.
	TotalPnL float64 `yaml:"total_pnl"`
	// Maximum loss. Minimum of all closed-trade net PnL values.
	MaximumLoss float64 `yaml:"maximum_loss"`
	// Maximum profit. Maximum of all closed-trade net PnL values.
	MaximumProfit float64 `yaml:"maximum_profit"`
}

type TradeResult struct {
	// Count of all closed trades.
	NumberOfTrades int `yaml:"number_of_trades"`
	// Count of winning trades with positive net PnL.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of losing trades with negative net PnL.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// Win rate.
	WinRate float64 `yaml:"win_rate"`
	// Maximum drawdown of the equity curve as a fraction of the running peak.
	MaxDrawdown float64 `yaml:"max_drawdown"`
}

// TradeStats is the summary written alongside each run's raw ledger.
type TradeStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// StrategyName is the strategy variant that produced these stats.
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
	// DataPath is the market data file used for this run.
	DataPath string `yaml:"data_path" json:"data_path"`
	// EngineVersion is the engine version the run executed under.
	EngineVersion string `yaml:"engine_version" json:"engine_version"`

	InitialCapital float64 `yaml:"initial_capital"`
	FinalValue     float64 `yaml:"final_value"`

	TradeResult      TradeResult      `yaml:"trade_result"`
	TotalFees        float64          `yaml:"total_fees"`
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time"`
	TradePnl         TradePnl         `yaml:"trade_pnl"`
}

func WriteTradeStats(path string, stats TradeStats) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal trade stats to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write trade stats to file: %w", err)
	}

	return nil
}
