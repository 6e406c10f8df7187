package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/quantforge/backtest/internal/types"
	"github.com/quantforge/backtest/internal/version"
)

// Analyze summarizes a completed run into the stats record written alongside
// the raw ledger. Unrealized PnL marks any still-open position to the final
// bar's close.
func (e *Engine) Analyze(result *types.RunResult, dataPath string) types.TradeStats {
	stats := types.TradeStats{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		StrategyName:   e.strategy.Name(),
		DataPath:       dataPath,
		EngineVersion:  version.Version,
		InitialCapital: e.cfg.InitialCapital,
		FinalValue:     result.FinalValue,
	}

	stats.TradeResult = tradeResult(result)
	stats.TradeHoldingTime = holdingTime(result.Trades)
	stats.TradePnl = tradePnl(e, result)

	for _, trade := range result.Trades {
		stats.TotalFees += trade.Commission
	}

	return stats
}

func tradeResult(result *types.RunResult) types.TradeResult {
	out := types.TradeResult{
		NumberOfTrades: len(result.Trades),
		MaxDrawdown:    result.MaxDrawdown(),
	}

	for _, trade := range result.Trades {
		if trade.IsWin() {
			out.NumberOfWinningTrades++
		} else if trade.NetPnL < 0 {
			out.NumberOfLosingTrades++
		}
	}

	if out.NumberOfTrades > 0 {
		out.WinRate = float64(out.NumberOfWinningTrades) / float64(out.NumberOfTrades)
	}

	return out
}

func holdingTime(trades []types.Trade) types.TradeHoldingTime {
	if len(trades) == 0 {
		return types.TradeHoldingTime{}
	}

	out := types.TradeHoldingTime{
		Min: trades[0].DurationBars,
		Max: trades[0].DurationBars,
	}

	total := 0
	for _, trade := range trades {
		if trade.DurationBars < out.Min {
			out.Min = trade.DurationBars
		}

		if trade.DurationBars > out.Max {
			out.Max = trade.DurationBars
		}

		total += trade.DurationBars
	}

	out.Avg = total / len(trades)

	return out
}

func tradePnl(e *Engine, result *types.RunResult) types.TradePnl {
	out := types.TradePnl{}

	for i, trade := range result.Trades {
		out.RealizedPnL += trade.NetPnL

		if i == 0 || trade.NetPnL < out.MaximumLoss {
			out.MaximumLoss = trade.NetPnL
		}

		if i == 0 || trade.NetPnL > out.MaximumProfit {
			out.MaximumProfit = trade.NetPnL
		}
	}

	pos := e.broker.Position()
	if !pos.IsFlat() && len(result.Equity) > 0 {
		lastClose := e.primary.Bar(e.primary.Len() - 1).Close
		out.UnrealizedPnL = (lastClose - pos.AvgEntryPrice) * float64(pos.Size)
	}

	out.TotalPnL = out.RealizedPnL + out.UnrealizedPnL

	return out
}
