package strategy

import (
	"context"

	"speedquant/internal/exchange"
	"speedquant/internal/market"
)

// Strategy is the contract the backtest engine drives. OnBar and OnTick are
// the required market hooks; everything else has a no-op default in
// BaseStrategy that implementations may override.
type Strategy interface {
	// OnStart is invoked before the first event. The execution port is
	// valid until OnStop returns and must not be retained across runs.
	OnStart(ctx context.Context, port exchange.ExecutionPort) error

	// OnStop is invoked after the last event.
	OnStop(ctx context.Context) error

	// OnBar handles a full OHLCV bar.
	OnBar(ctx context.Context, bar *market.Bar) error

	// OnTick handles a trade observation. Called for every event: derived
	// from the bar's close when the event carries a bar.
	OnTick(ctx context.Context, tick *market.Tick) error

	// OnPositionUpdate is invoked after a fill changes a holding.
	OnPositionUpdate(ctx context.Context, pos *exchange.Position) error

	// OnOrderUpdate is invoked with each order record created for this
	// strategy.
	OnOrderUpdate(ctx context.Context, order *exchange.Order) error

	// Symbols returns the instruments the strategy trades.
	Symbols() []string

	// Parameters returns the current parameter set.
	Parameters() map[string]float64

	// SetParameters merges the given values into the parameter set.
	SetParameters(params map[string]float64)

	// Position returns the tracked holding for a symbol.
	Position(symbol string) float64
}

// BaseStrategy carries the bookkeeping every strategy needs: name, symbols,
// parameters and the position map fed by OnPositionUpdate. Embed it and
// override the hooks that matter.
type BaseStrategy struct {
	name      string
	symbols   []string
	params    map[string]float64
	positions map[string]float64
	port      exchange.ExecutionPort
}

// NewBaseStrategy creates the embedded base for a strategy.
func NewBaseStrategy(name string, symbols []string, params map[string]float64) *BaseStrategy {
	merged := make(map[string]float64, len(params))
	for k, v := range params {
		merged[k] = v
	}
	positions := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		positions[s] = 0
	}
	return &BaseStrategy{
		name:      name,
		symbols:   symbols,
		params:    merged,
		positions: positions,
	}
}

// Name returns the strategy name.
func (s *BaseStrategy) Name() string { return s.name }

// OnStart stores the run's execution port.
func (s *BaseStrategy) OnStart(ctx context.Context, port exchange.ExecutionPort) error {
	s.port = port
	return nil
}

// OnStop releases the execution port.
func (s *BaseStrategy) OnStop(ctx context.Context) error {
	s.port = nil
	return nil
}

// OnBar implements Strategy.
func (s *BaseStrategy) OnBar(ctx context.Context, bar *market.Bar) error { return nil }

// OnTick implements Strategy.
func (s *BaseStrategy) OnTick(ctx context.Context, tick *market.Tick) error { return nil }

// OnPositionUpdate records the new holding.
func (s *BaseStrategy) OnPositionUpdate(ctx context.Context, pos *exchange.Position) error {
	s.positions[pos.Symbol] = pos.Quantity
	return nil
}

// OnOrderUpdate implements Strategy.
func (s *BaseStrategy) OnOrderUpdate(ctx context.Context, order *exchange.Order) error { return nil }

// Symbols implements Strategy.
func (s *BaseStrategy) Symbols() []string { return s.symbols }

// Parameters implements Strategy.
func (s *BaseStrategy) Parameters() map[string]float64 { return s.params }

// SetParameters implements Strategy.
func (s *BaseStrategy) SetParameters(params map[string]float64) {
	for k, v := range params {
		s.params[k] = v
	}
}

// Position implements Strategy.
func (s *BaseStrategy) Position(symbol string) float64 { return s.positions[symbol] }

// Param returns a parameter value, falling back to def when unset.
func (s *BaseStrategy) Param(name string, def float64) float64 {
	if v, ok := s.params[name]; ok {
		return v
	}
	return def
}

// Buy places a buy order through the run's port. Returns the empty string
// when no run is active or the order was rejected.
func (s *BaseStrategy) Buy(symbol string, quantity, price float64, orderType exchange.OrderType) string {
	if s.port == nil {
		return ""
	}
	return s.port.Buy(symbol, quantity, price, orderType)
}

// Sell places a sell order through the run's port.
func (s *BaseStrategy) Sell(symbol string, quantity, price float64, orderType exchange.OrderType) string {
	if s.port == nil {
		return ""
	}
	return s.port.Sell(symbol, quantity, price, orderType)
}
