package broker

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type BrokerTestSuite struct {
	suite.Suite
	broker *Broker
}

func TestBrokerSuite(t *testing.T) {
	suite.Run(t, new(BrokerTestSuite))
}

func (suite *BrokerTestSuite) SetupTest() {
	suite.broker = NewBroker(10_000, NewZeroCommissionFee(), logger.NewNopLogger())
}

func barAt(day int, open, high, low, close float64) types.Bar {
	return types.Bar{
		Time:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 1000,
	}
}

func marketOrder(side types.Side, size int64) types.Order {
	return types.Order{
		Side:   side,
		Kind:   types.OrderKindMarket,
		Size:   size,
		Reason: types.Reason{Reason: types.OrderReasonEntry},
	}
}

// enterLong fills a market buy so later cases start from an open position.
func (suite *BrokerTestSuite) enterLong(size int64, price float64) {
	_, err := suite.broker.Submit(marketOrder(types.SideBuy, size))
	suite.Require().NoError(err)

	terminal, _ := suite.broker.ResolveBar(barAt(0, price, price, price, price), 0)
	suite.Require().Len(terminal, 1)
	suite.Require().Equal(types.OrderStatusCompleted, terminal[0].Status)
}

func (suite *BrokerTestSuite) TestSubmitAssignsIDAndAccepts() {
	order, err := suite.broker.Submit(marketOrder(types.SideBuy, 10))
	suite.NoError(err)
	suite.NotEmpty(order.ID)
	suite.Equal(types.OrderStatusAccepted, order.Status)
	suite.Len(suite.broker.PendingOrders(), 1)
}

func (suite *BrokerTestSuite) TestSubmitRejectsInvalidOrder() {
	_, err := suite.broker.Submit(marketOrder(types.SideBuy, 0))
	suite.Error(err)

	missingTrigger := types.Order{
		Side:   types.SideSell,
		Kind:   types.OrderKindLimit,
		Size:   10,
		Reason: types.Reason{Reason: types.OrderReasonTakeProfit},
	}

	_, err = suite.broker.Submit(missingTrigger)
	suite.Error(err)
}

func (suite *BrokerTestSuite) TestMarketBuyFillsAtOpen() {
	_, err := suite.broker.Submit(marketOrder(types.SideBuy, 10))
	suite.NoError(err)

	terminal, trades := suite.broker.ResolveBar(barAt(0, 50, 55, 49, 54), 0)
	suite.Require().Len(terminal, 1)
	suite.Empty(trades)

	fill := terminal[0]
	suite.Equal(types.OrderStatusCompleted, fill.Status)
	suite.Equal(50.0, fill.FillPrice)

	suite.Equal(int64(10), suite.broker.Position().Size)
	suite.InDelta(50.0, suite.broker.Position().AvgEntryPrice, 1e-9)
	suite.InDelta(9_500.0, suite.broker.Cash(), 1e-9)
	suite.InDelta(10_040.0, suite.broker.Equity(54), 1e-9)
}

func (suite *BrokerTestSuite) TestLimitSellWaitsForTrigger() {
	suite.enterLong(10, 50)

	_, err := suite.broker.Submit(types.Order{
		Side:         types.SideSell,
		Kind:         types.OrderKindLimit,
		TriggerPrice: optional.Some(60.0),
		Size:         10,
		Reason:       types.Reason{Reason: types.OrderReasonTakeProfit},
	})
	suite.NoError(err)

	terminal, _ := suite.broker.ResolveBar(barAt(1, 52, 59, 51, 58), 1)
	suite.Empty(terminal, "high below the limit must not fill")
	suite.Len(suite.broker.PendingOrders(), 1)

	terminal, trades := suite.broker.ResolveBar(barAt(2, 58, 61, 57, 60), 2)
	suite.Require().Len(terminal, 1)
	suite.Equal(60.0, terminal[0].FillPrice, "limit fills at the limit price, not the high")
	suite.Require().Len(trades, 1)
	suite.InDelta(100.0, trades[0].NetPnL, 1e-9)
}

func (suite *BrokerTestSuite) TestLimitBuyFillsOnDip() {
	_, err := suite.broker.Submit(types.Order{
		Side:         types.SideBuy,
		Kind:         types.OrderKindLimit,
		TriggerPrice: optional.Some(45.0),
		Size:         10,
		Reason:       types.Reason{Reason: types.OrderReasonEntry},
	})
	suite.NoError(err)

	terminal, _ := suite.broker.ResolveBar(barAt(0, 50, 51, 44, 46), 0)
	suite.Require().Len(terminal, 1)
	suite.Equal(45.0, terminal[0].FillPrice)
	suite.Equal(int64(10), suite.broker.Position().Size)
}

func (suite *BrokerTestSuite) TestStopSellFillsAtStopPriceExactly() {
	suite.enterLong(10, 50)

	_, err := suite.broker.Submit(types.Order{
		Side:         types.SideSell,
		Kind:         types.OrderKindStop,
		TriggerPrice: optional.Some(45.0),
		Size:         10,
		Reason:       types.Reason{Reason: types.OrderReasonStopLoss},
	})
	suite.NoError(err)

	terminal, trades := suite.broker.ResolveBar(barAt(1, 48, 48, 40, 41), 1)
	suite.Require().Len(terminal, 1)
	suite.Equal(45.0, terminal[0].FillPrice, "stop fills at the stop price, not the bar low")
	suite.Require().Len(trades, 1)
	suite.InDelta(-50.0, trades[0].NetPnL, 1e-9)
}

func (suite *BrokerTestSuite) TestStopTrailFollowsHighestClose() {
	suite.enterLong(10, 100)

	_, err := suite.broker.Submit(types.Order{
		Side:         types.SideSell,
		Kind:         types.OrderKindStopTrail,
		TrailPercent: optional.Some(0.10),
		Size:         10,
		Reason:       types.Reason{Reason: types.OrderReasonTrailingStop},
	})
	suite.NoError(err)

	// First resolve bar only seeds the high-water mark.
	terminal, _ := suite.broker.ResolveBar(barAt(1, 100, 101, 95, 100), 1)
	suite.Empty(terminal)

	// Rally lifts the trail to 110 * 0.9 = 99.
	terminal, _ = suite.broker.ResolveBar(barAt(2, 100, 112, 100, 110), 2)
	suite.Empty(terminal)

	terminal, trades := suite.broker.ResolveBar(barAt(3, 105, 105, 98, 99), 3)
	suite.Require().Len(terminal, 1)
	suite.InDelta(99.0, terminal[0].FillPrice, 1e-9)
	suite.Require().Len(trades, 1)
	suite.Equal(types.OrderReasonTrailingStop, trades[0].ExitReason.Reason)
}

func (suite *BrokerTestSuite) TestBuyWithoutCashGoesToMargin() {
	suite.broker.Reset(100)

	_, err := suite.broker.Submit(marketOrder(types.SideBuy, 10))
	suite.NoError(err)

	terminal, _ := suite.broker.ResolveBar(barAt(0, 50, 50, 50, 50), 0)
	suite.Require().Len(terminal, 1)
	suite.Equal(types.OrderStatusMargin, terminal[0].Status)
	suite.Equal(int64(0), terminal[0].Size)
	suite.True(suite.broker.Position().IsFlat())
	suite.InDelta(100.0, suite.broker.Cash(), 1e-9)
}

func (suite *BrokerTestSuite) TestSellWhileFlatIsRejected() {
	_, err := suite.broker.Submit(types.Order{
		Side:   types.SideSell,
		Kind:   types.OrderKindMarket,
		Size:   10,
		Reason: types.Reason{Reason: types.OrderReasonClose},
	})
	suite.NoError(err)

	terminal, trades := suite.broker.ResolveBar(barAt(0, 50, 50, 50, 50), 0)
	suite.Require().Len(terminal, 1)
	suite.Equal(types.OrderStatusRejected, terminal[0].Status)
	suite.Empty(trades)
}

func (suite *BrokerTestSuite) TestOversizedSellIsClampedToPosition() {
	suite.enterLong(5, 50)

	_, err := suite.broker.Submit(types.Order{
		Side:   types.SideSell,
		Kind:   types.OrderKindMarket,
		Size:   10,
		Reason: types.Reason{Reason: types.OrderReasonClose},
	})
	suite.NoError(err)

	terminal, trades := suite.broker.ResolveBar(barAt(1, 52, 52, 52, 52), 1)
	suite.Require().Len(terminal, 1)
	suite.Equal(int64(5), terminal[0].Size)
	suite.Require().Len(trades, 1)
	suite.Equal(int64(5), trades[0].Size)
	suite.True(suite.broker.Position().IsFlat())
}

func (suite *BrokerTestSuite) TestWeightedAverageEntryOnAdds() {
	suite.enterLong(10, 50)

	_, err := suite.broker.Submit(marketOrder(types.SideBuy, 10))
	suite.NoError(err)

	_, _ = suite.broker.ResolveBar(barAt(1, 60, 60, 60, 60), 1)

	pos := suite.broker.Position()
	suite.Equal(int64(20), pos.Size)
	suite.InDelta(55.0, pos.AvgEntryPrice, 1e-9)
}

func (suite *BrokerTestSuite) TestBracketSiblingCanceledOnFill() {
	suite.enterLong(10, 50)

	group := NewBracketGroup()

	_, err := suite.broker.Submit(types.Order{
		Side:         types.SideSell,
		Kind:         types.OrderKindStop,
		TriggerPrice: optional.Some(45.0),
		Size:         10,
		Reason:       types.Reason{Reason: types.OrderReasonStopLoss},
		BracketGroup: optional.Some(group),
	})
	suite.Require().NoError(err)

	_, err = suite.broker.Submit(types.Order{
		Side:         types.SideSell,
		Kind:         types.OrderKindLimit,
		TriggerPrice: optional.Some(60.0),
		Size:         10,
		Reason:       types.Reason{Reason: types.OrderReasonTakeProfit},
		BracketGroup: optional.Some(group),
	})
	suite.Require().NoError(err)

	terminal, trades := suite.broker.ResolveBar(barAt(1, 55, 62, 54, 61), 1)
	suite.Require().Len(terminal, 2)
	suite.Require().Len(trades, 1)

	byReason := make(map[string]types.Order)
	for _, order := range terminal {
		byReason[order.Reason.Reason] = order
	}

	suite.Equal(types.OrderStatusCompleted, byReason[types.OrderReasonTakeProfit].Status)
	suite.Equal(types.OrderStatusCanceled, byReason[types.OrderReasonStopLoss].Status)
	suite.Empty(suite.broker.PendingOrders(), "no bracket order may be left dangling")
}

func (suite *BrokerTestSuite) TestCancelPendingOrder() {
	order, err := suite.broker.Submit(marketOrder(types.SideBuy, 10))
	suite.NoError(err)

	canceled := suite.broker.Cancel(order.ID)
	suite.Require().True(canceled.IsSome())
	suite.Equal(types.OrderStatusCanceled, canceled.Unwrap().Status)
	suite.Empty(suite.broker.PendingOrders())

	suite.True(suite.broker.Cancel("unknown").IsNone())
}

func (suite *BrokerTestSuite) TestCancelAll() {
	_, err := suite.broker.Submit(marketOrder(types.SideBuy, 10))
	suite.NoError(err)

	_, err = suite.broker.Submit(marketOrder(types.SideBuy, 5))
	suite.NoError(err)

	canceled := suite.broker.CancelAll()
	suite.Len(canceled, 2)
	suite.Empty(suite.broker.PendingOrders())
}

func (suite *BrokerTestSuite) TestTradeNetPnlIncludesCommission() {
	b := NewBroker(10_000, NewFixedRateCommissionFee(0.001), logger.NewNopLogger())

	_, err := b.Submit(marketOrder(types.SideBuy, 10))
	suite.Require().NoError(err)

	_, _ = b.ResolveBar(barAt(0, 50, 50, 50, 50), 0)

	_, err = b.Submit(types.Order{
		Side:   types.SideSell,
		Kind:   types.OrderKindMarket,
		Size:   10,
		Reason: types.Reason{Reason: types.OrderReasonClose},
	})
	suite.Require().NoError(err)

	_, trades := b.ResolveBar(barAt(1, 55, 55, 55, 55), 1)
	suite.Require().Len(trades, 1)

	trade := trades[0]
	suite.InDelta(50.0, trade.GrossPnL, 1e-9)
	// Entry fee 0.5, exit fee 0.55.
	suite.InDelta(1.05, trade.Commission, 1e-9)
	suite.InDelta(48.95, trade.NetPnL, 1e-9)
	suite.Equal(1, trade.DurationBars)
}

func (suite *BrokerTestSuite) TestResetClearsState() {
	suite.enterLong(10, 50)
	suite.broker.Reset(5_000)

	suite.InDelta(5_000.0, suite.broker.Cash(), 1e-9)
	suite.True(suite.broker.Position().IsFlat())
	suite.Empty(suite.broker.PendingOrders())
}

func TestCommissionModels(t *testing.T) {
	suite.Run(t, new(CommissionTestSuite))
}

type CommissionTestSuite struct {
	suite.Suite
}

func (suite *CommissionTestSuite) TestZeroCommission() {
	suite.Equal(0.0, NewZeroCommissionFee().Calculate(100, 50))
}

func (suite *CommissionTestSuite) TestFixedRateCommission() {
	fee := NewFixedRateCommissionFee(0.001)
	suite.InDelta(5.0, fee.Calculate(100, 50), 1e-9)
}

func (suite *CommissionTestSuite) TestInteractiveBrokerMinimum() {
	fee := NewInteractiveBrokerCommissionFee()
	suite.Equal(1.0, fee.Calculate(100, 50), "per-share fee below the minimum is rounded up to $1")
	suite.InDelta(2.5, fee.Calculate(500, 50), 1e-9)
}

func (suite *CommissionTestSuite) TestHandlerSelection() {
	suite.IsType(&ZeroCommissionFee{}, GetCommissionFeeHandler(CommissionModelZero, 0))
	suite.IsType(&FixedRateCommissionFee{}, GetCommissionFeeHandler(CommissionModelFixedRate, 0.001))
	suite.IsType(&InteractiveBrokerCommissionFee{}, GetCommissionFeeHandler(CommissionModelInteractiveBroker, 0))
}
