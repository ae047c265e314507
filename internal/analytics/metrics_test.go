package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"speedquant/internal/exchange"
)

func snap(ts time.Time, equity, cash float64) exchange.Snapshot {
	return exchange.Snapshot{Timestamp: ts, Equity: equity, Cash: cash}
}

func day(n int) time.Time {
	return time.Date(2023, 1, n, 16, 0, 0, 0, time.UTC)
}

func TestCalculateEmptyHistory(t *testing.T) {
	m := Calculate(100000, nil, nil)

	assert.Zero(t, m.TotalReturn)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdown)
	assert.Zero(t, m.TotalTrades)
	assert.NotNil(t, m.DailyReturns)
	assert.Empty(t, m.DailyReturns)
}

// The three-bar scenario: buy 10 units at 100, closes 100/110/90.
func TestCalculateThreeBarScenario(t *testing.T) {
	history := []exchange.Snapshot{
		snap(day(2), 100000, 99000),
		snap(day(3), 100100, 99000),
		snap(day(4), 99900, 99000),
	}

	m := Calculate(100000, history, nil)

	assert.InDelta(t, -100, m.TotalReturn, 1e-9)
	assert.InDelta(t, -0.1, m.TotalReturnPct, 1e-9)

	// Running max 100100 after bar 2; drawdown at bar 3 is 200.
	assert.InDelta(t, 200, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 200.0/100100*100, m.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 0.1998, m.MaxDrawdownPct, 1e-3)

	// Only one period is in drawdown, so the averages equal the max.
	assert.InDelta(t, m.MaxDrawdown, m.AvgDrawdown, 1e-9)
	assert.InDelta(t, m.MaxDrawdownPct, m.AvgDrawdownPct, 1e-9)
}

func TestDailyReduction(t *testing.T) {
	// Two intraday snapshots on day 2: only the last one counts.
	history := []exchange.Snapshot{
		snap(time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC), 100000, 100000),
		snap(time.Date(2023, 1, 2, 16, 0, 0, 0, time.UTC), 101000, 100000),
		snap(day(3), 102010, 100000),
	}

	m := Calculate(100000, history, nil)

	assert.Len(t, m.DailyReturns, 1)
	assert.InDelta(t, 1.0, m.DailyReturns[0], 1e-9) // 102010/101000-1 = 1%
}

func TestAnnualizedReturn(t *testing.T) {
	// +10% over 73 calendar days: (1.1)^(365/73)-1 = 1.1^5-1.
	history := []exchange.Snapshot{
		snap(day(1), 100000, 100000),
		snap(time.Date(2023, 3, 15, 16, 0, 0, 0, time.UTC), 110000, 110000),
	}

	m := Calculate(100000, history, nil)

	expected := (math.Pow(1.1, 5) - 1) * 100
	assert.InDelta(t, expected, m.AnnualizedReturn, 1e-6)
}

func TestSharpeZeroWhenFlat(t *testing.T) {
	history := []exchange.Snapshot{
		snap(day(2), 100000, 100000),
		snap(day(3), 100000, 100000),
		snap(day(4), 100000, 100000),
	}

	m := Calculate(100000, history, nil)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.CalmarRatio)
}

func TestSharpeAndSortino(t *testing.T) {
	history := []exchange.Snapshot{
		snap(day(2), 100000, 0),
		snap(day(3), 101000, 0),   // +1%
		snap(day(4), 99990, 0),    // -1%
		snap(day(5), 100989.9, 0), // +1%
	}

	m := Calculate(100000, history, nil)

	rets := []float64{0.01, -0.01, 0.01}
	mu := (0.01 - 0.01 + 0.01) / 3
	variance := 0.0
	for _, r := range rets {
		variance += (r - mu) * (r - mu)
	}
	std := math.Sqrt(variance / 3)
	assert.InDelta(t, mu/std*math.Sqrt(252), m.SharpeRatio, 1e-6)

	// One negative return: its population std is 0, so the denominator is
	// floored at 1e-4.
	assert.InDelta(t, mu/1e-4*math.Sqrt(252), m.SortinoRatio, 1e-6)
}

func TestDrawdownNonNegative(t *testing.T) {
	history := []exchange.Snapshot{
		snap(day(2), 100, 0),
		snap(day(3), 50, 0),
		snap(day(4), 120, 0),
		snap(day(5), 1, 0),
	}

	m := Calculate(100, history, nil)
	assert.GreaterOrEqual(t, m.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, m.MaxDrawdownPct, 100.0)
	assert.GreaterOrEqual(t, m.AvgDrawdown, 0.0)
}

func TestTradeMetricsAggregate(t *testing.T) {
	trades := []*exchange.Trade{
		{Side: exchange.OrderSideBuy, Value: 1000, Commission: 1},
		{Side: exchange.OrderSideSell, Value: 1100, Commission: 1.1},
	}

	m := Calculate(100000, nil, trades)

	assert.Equal(t, 2, m.TotalTrades)
	assert.InDelta(t, 1100-1.1-(1000+1), m.TotalProfitLoss, 1e-9)
	assert.Equal(t, 100.0, m.WinRate)
	assert.InDelta(t, m.TotalProfitLoss/2, m.AvgTrade, 1e-9)
}

func TestTradeMetricsLosingRun(t *testing.T) {
	trades := []*exchange.Trade{
		{Side: exchange.OrderSideBuy, Value: 1000, Commission: 1},
		{Side: exchange.OrderSideSell, Value: 900, Commission: 0.9},
	}

	m := Calculate(100000, nil, trades)
	assert.Equal(t, 0.0, m.WinRate)
	assert.Negative(t, m.TotalProfitLoss)
}
