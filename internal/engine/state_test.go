package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type StateTestSuite struct {
	suite.Suite
	state *State
}

func TestStateSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}

func (suite *StateTestSuite) SetupTest() {
	state, err := NewState(logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.state = state
}

func (suite *StateTestSuite) TearDownTest() {
	suite.NoError(suite.state.Close())
}

func (suite *StateTestSuite) sampleOrder(status types.OrderStatus) types.Order {
	return types.Order{
		ID:             uuid.New().String(),
		Side:           types.SideBuy,
		Kind:           types.OrderKindMarket,
		TriggerPrice:   optional.None[float64](),
		TrailPercent:   optional.None[float64](),
		Size:           100,
		Status:         status,
		Reason:         types.Reason{Reason: types.OrderReasonEntry},
		BracketGroup:   optional.None[string](),
		StrategyName:   "sma_cross_10_30",
		SubmittedAt:    time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		SubmittedIndex: 4,
		FillPrice:      50,
		FilledAt:       time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		FillIndex:      5,
		Fee:            1,
	}
}

func (suite *StateTestSuite) sampleTrade(netPnl float64) types.Trade {
	return types.Trade{
		EntryIndex:   5,
		ExitIndex:    9,
		EntryTime:    time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		ExitTime:     time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		EntryPrice:   50,
		ExitPrice:    50 + netPnl/100,
		Size:         100,
		GrossPnL:     netPnl,
		NetPnL:       netPnl,
		Commission:   0,
		DurationBars: 4,
		ExitReason:   types.Reason{Reason: types.OrderReasonTakeProfit},
		StrategyName: "sma_cross_10_30",
	}
}

func (suite *StateTestSuite) TestRecordAndCountOrders() {
	suite.NoError(suite.state.RecordOrder(suite.sampleOrder(types.OrderStatusCompleted)))
	suite.NoError(suite.state.RecordOrder(suite.sampleOrder(types.OrderStatusCompleted)))
	suite.NoError(suite.state.RecordOrder(suite.sampleOrder(types.OrderStatusCanceled)))

	counts, err := suite.state.OrderCountByStatus()
	suite.Require().NoError(err)
	suite.Equal(int64(2), counts[types.OrderStatusCompleted])
	suite.Equal(int64(1), counts[types.OrderStatusCanceled])
}

func (suite *StateTestSuite) TestRecordOrderWithBracketFields() {
	order := suite.sampleOrder(types.OrderStatusCompleted)
	order.Kind = types.OrderKindStop
	order.TriggerPrice = optional.Some(49.0)
	order.BracketGroup = optional.Some(uuid.New().String())

	suite.NoError(suite.state.RecordOrder(order))
}

func (suite *StateTestSuite) TestRealizedPnl() {
	pnl, err := suite.state.RealizedPnL()
	suite.Require().NoError(err)
	suite.Equal(0.0, pnl, "empty ledger sums to zero")

	suite.NoError(suite.state.RecordTrade(suite.sampleTrade(300)))
	suite.NoError(suite.state.RecordTrade(suite.sampleTrade(-120)))

	pnl, err = suite.state.RealizedPnL()
	suite.Require().NoError(err)
	suite.InDelta(180.0, pnl, 1e-9)
}

func (suite *StateTestSuite) TestWriteParquet() {
	suite.NoError(suite.state.RecordOrder(suite.sampleOrder(types.OrderStatusCompleted)))
	suite.NoError(suite.state.RecordTrade(suite.sampleTrade(300)))

	dir := suite.T().TempDir()
	suite.Require().NoError(suite.state.WriteParquet(dir))

	for _, name := range []string{"orders.parquet", "trades.parquet"} {
		info, err := os.Stat(filepath.Join(dir, name))
		suite.NoError(err)
		suite.Positive(info.Size())
	}
}
