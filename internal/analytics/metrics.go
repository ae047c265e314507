// Package analytics derives risk/return statistics from a recorded backtest
// history. Everything here is a pure function of its inputs; nothing is
// shared across invocations.
package analytics

import (
	"math"
	"time"

	"speedquant/internal/exchange"
)

// minDownsideDev floors the Sortino denominator so a run without downside
// variance does not divide by zero.
const minDownsideDev = 1e-4

// tradingDaysPerYear annualizes daily return ratios.
const tradingDaysPerYear = 252

// Metrics is the flat result set persisted to metrics.json. Key names are
// fixed for downstream tooling.
type Metrics struct {
	TotalReturn      float64   `json:"total_return"`
	TotalReturnPct   float64   `json:"total_return_pct"`
	AnnualizedReturn float64   `json:"annualized_return"`
	DailyReturns     []float64 `json:"daily_returns"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	MaxDrawdownPct   float64   `json:"max_drawdown_pct"`
	AvgDrawdown      float64   `json:"avg_drawdown"`
	AvgDrawdownPct   float64   `json:"avg_drawdown_pct"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	SortinoRatio     float64   `json:"sortino_ratio"`
	CalmarRatio      float64   `json:"calmar_ratio"`
	TotalTrades      int       `json:"total_trades"`
	WinRate          float64   `json:"win_rate"`
	TotalProfitLoss  float64   `json:"total_profit_loss"`
	AvgTrade         float64   `json:"avg_trade"`
}

// Calculate computes every metric over the full run history. history must
// be in replay order; trades is the engine's trade log.
func Calculate(initialCapital float64, history []exchange.Snapshot, trades []*exchange.Trade) *Metrics {
	m := &Metrics{DailyReturns: []float64{}}

	if len(history) > 0 {
		m.calculateReturns(initialCapital, history)
		m.calculateDrawdowns(history)
		m.calculateRatios(history)
	}
	m.calculateTradeMetrics(trades)
	return m
}

type dailyPoint struct {
	date   time.Time // midnight UTC
	equity float64
}

// reduceDaily keeps the last snapshot of each calendar day.
func reduceDaily(history []exchange.Snapshot) []dailyPoint {
	var daily []dailyPoint
	for _, snap := range history {
		t := snap.Timestamp.UTC()
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if n := len(daily); n > 0 && daily[n-1].date.Equal(date) {
			daily[n-1].equity = snap.Equity
		} else {
			daily = append(daily, dailyPoint{date: date, equity: snap.Equity})
		}
	}
	return daily
}

// dailyReturnRatios returns day-over-day equity changes as fractions.
func dailyReturnRatios(daily []dailyPoint) []float64 {
	var returns []float64
	for i := 1; i < len(daily); i++ {
		if daily[i-1].equity != 0 {
			returns = append(returns, daily[i].equity/daily[i-1].equity-1)
		}
	}
	return returns
}

func (m *Metrics) calculateReturns(initialCapital float64, history []exchange.Snapshot) {
	finalEquity := history[len(history)-1].Equity
	m.TotalReturn = finalEquity - initialCapital
	m.TotalReturnPct = m.TotalReturn / initialCapital * 100

	daily := reduceDaily(history)
	for _, r := range dailyReturnRatios(daily) {
		m.DailyReturns = append(m.DailyReturns, r*100)
	}

	// Annualization spans the calendar days between the first and last
	// daily observation.
	if len(daily) > 1 {
		days := daily[len(daily)-1].date.Sub(daily[0].date).Hours() / 24
		if days > 0 {
			m.AnnualizedReturn = (math.Pow(1+m.TotalReturnPct/100, 365/days) - 1) * 100
		}
	}
}

func (m *Metrics) calculateDrawdowns(history []exchange.Snapshot) {
	var (
		runningMax float64
		sumDd      float64
		sumDdPct   float64
		ddPeriods  int
	)

	for _, snap := range history {
		if snap.Equity > runningMax {
			runningMax = snap.Equity
		}
		dd := runningMax - snap.Equity
		ddPct := 0.0
		if runningMax > 0 {
			ddPct = dd / runningMax * 100
		}

		if dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
		if ddPct > m.MaxDrawdownPct {
			m.MaxDrawdownPct = ddPct
		}
		if dd > 0 {
			sumDd += dd
			sumDdPct += ddPct
			ddPeriods++
		}
	}

	// Averages count only periods actually in drawdown.
	if ddPeriods > 0 {
		m.AvgDrawdown = sumDd / float64(ddPeriods)
		m.AvgDrawdownPct = sumDdPct / float64(ddPeriods)
	}
}

func (m *Metrics) calculateRatios(history []exchange.Snapshot) {
	returns := dailyReturnRatios(reduceDaily(history))
	if len(returns) == 0 {
		return
	}

	meanRet := mean(returns)
	stdRet := stddev(returns, meanRet)

	if stdRet > 0 {
		m.SharpeRatio = meanRet / stdRet * math.Sqrt(tradingDaysPerYear)
	}

	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	downside := 0.0
	if len(negative) > 0 {
		downside = stddev(negative, mean(negative))
	}
	if downside < minDownsideDev {
		downside = minDownsideDev
	}
	m.SortinoRatio = meanRet / downside * math.Sqrt(tradingDaysPerYear)

	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = m.AnnualizedReturn / m.MaxDrawdownPct
	}
}

// calculateTradeMetrics aggregates buys against sells for the whole run.
// There is deliberately no per-trade buy/sell pairing: the win rate is
// binary on aggregate P&L. FIFO/LIFO matching would change reported
// numbers downstream tools rely on.
func (m *Metrics) calculateTradeMetrics(trades []*exchange.Trade) {
	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return
	}

	var buyCost, sellRevenue float64
	for _, t := range trades {
		switch t.Side {
		case exchange.OrderSideBuy:
			buyCost += t.Value + t.Commission
		case exchange.OrderSideSell:
			sellRevenue += t.Value - t.Commission
		}
	}

	m.TotalProfitLoss = sellRevenue - buyCost
	if m.TotalProfitLoss > 0 {
		m.WinRate = 100
	}
	m.AvgTrade = m.TotalProfitLoss / float64(m.TotalTrades)
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(xs)))
}
