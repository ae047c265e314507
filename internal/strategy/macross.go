package strategy

import (
	"context"

	"speedquant/internal/exchange"
	"speedquant/internal/market"
)

// MACrossover is the moving-average crossover template strategy: buy when
// the short average crosses above the long one, sell when it crosses below.
//
// Parameters: short_window (default 20), long_window (50), quantity (1).
type MACrossover struct {
	*BaseStrategy

	closes map[string][]float64
	signal map[string]float64
}

// NewMACrossover creates the crossover strategy for the given symbols.
func NewMACrossover(name string, symbols []string, params map[string]float64) *MACrossover {
	defaults := map[string]float64{
		"short_window": 20,
		"long_window":  50,
		"quantity":     1,
	}
	for k, v := range params {
		defaults[k] = v
	}

	closes := make(map[string][]float64, len(symbols))
	signal := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		closes[s] = nil
		signal[s] = 0
	}

	return &MACrossover{
		BaseStrategy: NewBaseStrategy(name, symbols, defaults),
		closes:       closes,
		signal:       signal,
	}
}

// OnBar appends the close and trades on signal changes.
func (s *MACrossover) OnBar(ctx context.Context, bar *market.Bar) error {
	if _, ok := s.closes[bar.Symbol]; !ok {
		return nil
	}

	s.closes[bar.Symbol] = append(s.closes[bar.Symbol], bar.Close)

	short := int(s.Param("short_window", 20))
	long := int(s.Param("long_window", 50))
	quantity := s.Param("quantity", 1)

	prices := s.closes[bar.Symbol]
	if len(prices) < long || short <= 0 || long <= short {
		return nil
	}

	signal := 0.0
	if sma(prices, short) > sma(prices, long) {
		signal = 1.0
	}

	delta := signal - s.signal[bar.Symbol]
	s.signal[bar.Symbol] = signal

	switch {
	case delta > 0:
		if s.Position(bar.Symbol) <= 0 {
			s.Buy(bar.Symbol, quantity, 0, exchange.OrderTypeMarket)
		}
	case delta < 0:
		// A short position never exists here, so any non-negative holding
		// gets the sell intent; a flat one is left for the execution port
		// to reject.
		if s.Position(bar.Symbol) >= 0 {
			s.Sell(bar.Symbol, quantity, 0, exchange.OrderTypeMarket)
		}
	}
	return nil
}

// sma averages the trailing window of prices.
func sma(prices []float64, window int) float64 {
	sum := 0.0
	for _, p := range prices[len(prices)-window:] {
		sum += p
	}
	return sum / float64(window)
}
