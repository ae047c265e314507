package backtest

import (
	"time"

	"speedquant/internal/analytics"
	"speedquant/internal/errors"
	"speedquant/internal/exchange"
)

// Result is the structured outcome of one backtest run. Failures are
// carried in Error instead of propagating across the core boundary.
type Result struct {
	Success        bool                `json:"success"`
	Error          *errors.AppError    `json:"error,omitempty"`
	InitialCapital float64             `json:"initial_capital"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        time.Time           `json:"end_time"`
	History        []exchange.Snapshot `json:"history"`
	Trades         []*exchange.Trade   `json:"trades"`
	Orders         []*exchange.Order   `json:"orders"`
	Metrics        *analytics.Metrics  `json:"metrics,omitempty"`
}

func failure(initialCapital float64, err *errors.AppError) *Result {
	return &Result{
		Success:        false,
		Error:          err,
		InitialCapital: initialCapital,
	}
}
