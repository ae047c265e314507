package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"speedquant/internal/exchange"
	"speedquant/internal/logging"
	"speedquant/internal/market"
	"speedquant/internal/strategy"
)

// simulator is the per-run execution port plus portfolio ledger. It fills
// admitted orders synchronously against the most recent price ingested for
// the instrument, applies slippage and commission, and mutates cash and
// positions before the next event is processed.
type simulator struct {
	ctx  context.Context
	strt strategy.Strategy
	cfg  *Config
	log  *logging.Logger

	cash      float64
	positions map[string]float64
	lastPrice map[string]float64
	lastTime  map[string]time.Time

	orders  []*exchange.Order
	trades  []*exchange.Trade
	history []exchange.Snapshot
}

func newSimulator(ctx context.Context, strt strategy.Strategy, cfg *Config, log *logging.Logger) *simulator {
	return &simulator{
		ctx:       ctx,
		strt:      strt,
		cfg:       cfg,
		log:       log,
		cash:      cfg.InitialCapital,
		positions: make(map[string]float64),
		lastPrice: make(map[string]float64),
		lastTime:  make(map[string]time.Time),
	}
}

// observe advances the last-known price for the event's instrument.
func (s *simulator) observe(ev *market.Event) {
	s.lastPrice[ev.Symbol] = ev.Tick.Price
	s.lastTime[ev.Symbol] = ev.Timestamp
}

// Buy implements exchange.ExecutionPort. Rejections return "" and are
// logged, never raised; the order and trade logs are untouched.
func (s *simulator) Buy(symbol string, quantity, price float64, orderType exchange.OrderType) string {
	last, ok := s.lastPrice[symbol]
	if !ok {
		s.log.WithField("symbol", symbol).Warn("buy rejected: symbol not found in data")
		return ""
	}

	execPrice := price
	if execPrice == 0 {
		execPrice = last
	}
	execPrice *= 1 + s.cfg.Slippage // buys pay the impact

	value := execPrice * quantity
	commission := value * s.cfg.Commission
	total := value + commission

	if s.cash < total {
		s.log.Warnf("buy rejected: %.2f required, %.2f available", total, s.cash)
		return ""
	}

	order := s.fill(symbol, exchange.OrderSideBuy, quantity, execPrice, commission, value)
	s.cash -= total
	s.positions[symbol] += quantity
	s.notify(order, symbol)
	return order.ID
}

// Sell implements exchange.ExecutionPort. Short selling is not permitted:
// a request beyond the held quantity is rejected outright.
func (s *simulator) Sell(symbol string, quantity, price float64, orderType exchange.OrderType) string {
	last, ok := s.lastPrice[symbol]
	if !ok {
		s.log.WithField("symbol", symbol).Warn("sell rejected: symbol not found in data")
		return ""
	}

	if held := s.positions[symbol]; held < quantity {
		s.log.Warnf("sell rejected: %.4f requested, %.4f held", quantity, held)
		return ""
	}

	execPrice := price
	if execPrice == 0 {
		execPrice = last
	}
	execPrice *= 1 - s.cfg.Slippage // sells receive less

	value := execPrice * quantity
	commission := value * s.cfg.Commission

	order := s.fill(symbol, exchange.OrderSideSell, quantity, execPrice, commission, value)
	s.cash += value - commission
	s.positions[symbol] -= quantity
	s.notify(order, symbol)
	return order.ID
}

// Position implements exchange.ExecutionPort.
func (s *simulator) Position(symbol string) float64 {
	return s.positions[symbol]
}

// fill creates the immutable order and trade records. The timestamp is the
// last ingested event time for the instrument, not wall-clock time.
func (s *simulator) fill(symbol string, side exchange.OrderSide, quantity, price, commission, value float64) *exchange.Order {
	order := &exchange.Order{
		ID:         fmt.Sprintf("%s-%s-%s", side, symbol, uuid.NewString()),
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Timestamp:  s.lastTime[symbol],
		Status:     exchange.OrderStatusFilled,
		Commission: commission,
	}
	s.orders = append(s.orders, order)

	s.trades = append(s.trades, &exchange.Trade{
		OrderID:    order.ID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Timestamp:  order.Timestamp,
		Commission: commission,
		Value:      value,
	})
	return order
}

// notify reports the fill back to the strategy. Feedback hooks cannot fail
// a fill that already happened; their errors are logged and dropped.
func (s *simulator) notify(order *exchange.Order, symbol string) {
	if err := s.strt.OnOrderUpdate(s.ctx, order); err != nil {
		s.log.WithError(err).Warn("strategy OnOrderUpdate failed")
	}
	pos := &exchange.Position{Symbol: symbol, Quantity: s.positions[symbol]}
	if err := s.strt.OnPositionUpdate(s.ctx, pos); err != nil {
		s.log.WithError(err).Warn("strategy OnPositionUpdate failed")
	}
}

// snapshot appends one equity-curve point, marking every holding to the
// most recent price at or before ts.
func (s *simulator) snapshot(ts time.Time) {
	equity := s.cash
	positions := make(map[string]float64, len(s.positions))
	for symbol, quantity := range s.positions {
		positions[symbol] = quantity
		if quantity > 0 {
			equity += quantity * s.lastPrice[symbol]
		}
	}

	s.history = append(s.history, exchange.Snapshot{
		Timestamp: ts,
		Equity:    equity,
		Cash:      s.cash,
		Positions: positions,
	})
}
