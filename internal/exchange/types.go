package exchange

import "time"

// OrderSide represents the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the order type requested by a strategy. The
// simulator fills every admitted order immediately regardless of type; the
// type is recorded for the order log only.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus represents the lifecycle state of an order. In simulation an
// order is either immediately FILLED or rejected and discarded, so FILLED
// is the only status that ever reaches the order log.
type OrderStatus string

const (
	OrderStatusFilled OrderStatus = "FILLED"
)

// Order is a fill record created by the execution simulator. Immutable
// after creation; owned by the engine's order log. Field names match the
// persisted orders.csv columns.
type Order struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Side       OrderSide   `json:"side"`
	Quantity   float64     `json:"quantity"`
	Price      float64     `json:"price"`
	Timestamp  time.Time   `json:"timestamp"`
	Status     OrderStatus `json:"status"`
	Commission float64     `json:"commission"`
}

// Trade is a realized fill: the order plus its notional value. Appended to
// the trade log, never mutated. Field names match trades.csv columns.
type Trade struct {
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
	Commission float64   `json:"commission"`
	Value      float64   `json:"value"`
}

// Position is the per-instrument holding reported back to a strategy.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

// Snapshot is one point of the equity curve: cash, holdings and
// mark-to-market equity at an event timestamp. Field names match
// portfolio_history.csv columns.
type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Equity    float64            `json:"equity"`
	Cash      float64            `json:"cash"`
	Positions map[string]float64 `json:"positions"`
}

// ExecutionPort is the order entry surface handed to a strategy for the
// duration of one run. A rejected order returns the empty string; the
// caller must check for it. Ports are created per run, so two runs against
// distinct ports never share order-placement state.
type ExecutionPort interface {
	// Buy places a buy order. price 0 means market: fill at the most
	// recent observed price for the symbol.
	Buy(symbol string, quantity, price float64, orderType OrderType) string

	// Sell places a sell order with the same price convention.
	Sell(symbol string, quantity, price float64, orderType OrderType) string

	// Position returns the currently held quantity for a symbol.
	Position(symbol string) float64
}
