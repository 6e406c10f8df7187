package indicator

import (
	"testing"
	"time"

	"github.com/quantforge/backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

// closeBar builds a bar where all prices equal the close, offset by day index.
func closeBar(day int, close float64) types.Bar {
	return types.Bar{
		Time:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1000,
	}
}

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) TestSMAWarmupAndValues() {
	sma, err := NewSMA(3)
	suite.NoError(err)

	closes := []float64{1, 2, 3, 4, 5}
	expected := []float64{0, 0, 2, 3, 4}

	for i, close := range closes {
		sma.Update(closeBar(i, close))

		value := sma.Value()
		if i < 2 {
			suite.True(value.IsNone(), "SMA must not be ready at bar %d", i)

			continue
		}

		suite.True(value.IsSome())
		suite.InDelta(expected[i], value.Unwrap(), 1e-9)
	}
}

func (suite *IndicatorTestSuite) TestSMARejectsInvalidPeriod() {
	_, err := NewSMA(0)
	suite.Error(err)

	_, err = NewSMA(-5)
	suite.Error(err)
}

func (suite *IndicatorTestSuite) TestSMAReset() {
	sma, err := NewSMA(2)
	suite.NoError(err)

	sma.Update(closeBar(0, 10))
	sma.Update(closeBar(1, 20))
	suite.True(sma.Value().IsSome())

	sma.Reset()
	suite.True(sma.Value().IsNone())
}

func (suite *IndicatorTestSuite) TestATRFirstBarTrueRangeIsHighLow() {
	bar := types.Bar{
		Time:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Open:   9,
		High:   10,
		Low:    8,
		Close:  9,
		Volume: 1,
	}

	suite.InDelta(2.0, bar.TrueRange(0), 1e-9)
	// With a previous close far below the bar, the gap dominates.
	suite.InDelta(5.0, bar.TrueRange(5), 1e-9)
}

func (suite *IndicatorTestSuite) TestATRWarmupAndValue() {
	atr, err := NewATR(2)
	suite.NoError(err)

	bars := []types.Bar{
		{Time: closeBar(0, 9).Time, Open: 9, High: 10, Low: 8, Close: 9, Volume: 1},
		{Time: closeBar(1, 10).Time, Open: 9, High: 11, Low: 9, Close: 10, Volume: 1},
		{Time: closeBar(2, 11).Time, Open: 10, High: 12, Low: 10, Close: 11, Volume: 1},
	}

	atr.Update(bars[0])
	suite.True(atr.Value().IsNone())

	atr.Update(bars[1])
	suite.True(atr.Value().IsNone(), "ATR needs one bar beyond its period for a real previous close")

	atr.Update(bars[2])

	value := atr.Value()
	suite.True(value.IsSome())
	// TR(bar1)=2 with prev close 9, TR(bar2)=2 with prev close 10.
	suite.InDelta(2.0, value.Unwrap(), 1e-9)
}

func (suite *IndicatorTestSuite) TestCrossoverSignalsUpThenDown() {
	fast, err := NewSMA(1)
	suite.NoError(err)

	slow, err := NewSMA(2)
	suite.NoError(err)

	cross := NewCrossover(fast, slow)

	suite.Equal(types.CrossNone, cross.Update(closeBar(0, 10)))
	// Readiness bar: fast == slow, no direction yet.
	suite.Equal(types.CrossNone, cross.Update(closeBar(1, 10)))
	suite.Equal(types.CrossUp, cross.Update(closeBar(2, 12)))
	suite.Equal(types.CrossNone, cross.Update(closeBar(3, 12)))
	suite.Equal(types.CrossDown, cross.Update(closeBar(4, 8)))
}

func (suite *IndicatorTestSuite) TestCrossoverSignalsAtReadiness() {
	fast, err := NewSMA(1)
	suite.NoError(err)

	slow, err := NewSMA(2)
	suite.NoError(err)

	cross := NewCrossover(fast, slow)

	suite.Equal(types.CrossNone, cross.Update(closeBar(0, 1)))
	// First bar with both averages ready: the fast one is already above.
	suite.Equal(types.CrossUp, cross.Update(closeBar(1, 2)))
	// Still above, so no further signal.
	suite.Equal(types.CrossNone, cross.Update(closeBar(2, 3)))
}

func (suite *IndicatorTestSuite) TestCrossoverReset() {
	fast, err := NewSMA(1)
	suite.NoError(err)

	slow, err := NewSMA(2)
	suite.NoError(err)

	cross := NewCrossover(fast, slow)
	cross.Update(closeBar(0, 1))
	cross.Update(closeBar(1, 2))

	cross.Reset()
	suite.True(cross.Fast().IsNone())
	suite.True(cross.Slow().IsNone())
	suite.Equal(types.CrossNone, cross.Update(closeBar(2, 3)))
}

func (suite *IndicatorTestSuite) TestRegistryBuildsKnownIndicators() {
	registry := NewRegistry()

	sma, err := registry.NewIndicator(TypeSMA, 10)
	suite.NoError(err)
	suite.Equal(TypeSMA, sma.Name())
	suite.Equal(10, sma.Period())

	atr, err := registry.NewIndicator(TypeATR, 14)
	suite.NoError(err)
	suite.Equal(TypeATR, atr.Name())

	names := registry.ListIndicators()
	suite.Len(names, 2)
}

func (suite *IndicatorTestSuite) TestRegistryUnknownIndicator() {
	registry := NewRegistry()

	_, err := registry.NewIndicator(Type("rsi"), 14)
	suite.Error(err)
}

func (suite *IndicatorTestSuite) TestRegistryDuplicateRegistration() {
	registry := NewRegistry()

	err := registry.RegisterIndicator(TypeSMA, NewSMA)
	suite.Error(err)
	suite.Contains(err.Error(), "already registered")
}

func (suite *IndicatorTestSuite) TestRegistryRemove() {
	registry := NewRegistry()

	suite.NoError(registry.RemoveIndicator(TypeATR))

	_, err := registry.NewIndicator(TypeATR, 14)
	suite.Error(err)

	err = registry.RemoveIndicator(TypeATR)
	suite.Error(err)
}
