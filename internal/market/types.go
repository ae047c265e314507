package market

import "time"

// Bar represents one OHLCV bar for an instrument. Immutable once produced
// by the feed.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Tick represents a single trade observation. In this design ticks are
// usually derived 1:1 from a bar's close, but a feed may supply them
// directly.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
}

// TickFromBar derives the tick dispatched alongside a bar.
func TickFromBar(b *Bar) *Tick {
	return &Tick{
		Symbol:    b.Symbol,
		Timestamp: b.Timestamp,
		Price:     b.Close,
		Volume:    b.Volume,
	}
}

// Series holds one instrument's events in their original feed order.
type Series struct {
	Symbol string
	Bars   []Bar
	Ticks  []Tick
}

// Event is one element of the merged replay sequence. Bar is nil for
// tick-only events; Tick is always set.
type Event struct {
	Symbol    string
	Timestamp time.Time
	Bar       *Bar
	Tick      *Tick
}
