// Package backtest replays historical market data through a strategy and
// records the resulting cash/position/equity trajectory.
package backtest

import (
	"context"
	"fmt"
	"sync/atomic"

	"speedquant/internal/analytics"
	"speedquant/internal/errors"
	"speedquant/internal/logging"
	"speedquant/internal/market"
	"speedquant/internal/strategy"
)

// Config represents engine configuration.
type Config struct {
	InitialCapital float64
	Commission     float64 // fraction of notional
	Slippage       float64 // fraction of price, unfavorable to the trader
}

// Engine orchestrates one time-ordered replay. Create one engine per run;
// Run refuses to execute twice. The engine hands the strategy a per-run
// execution port, so only strategy-internal state limits concurrency: one
// strategy instance must not be driven by two engines at once.
type Engine struct {
	strategy strategy.Strategy
	series   []market.Series
	config   *Config
	log      *logging.Logger
	running  atomic.Bool
}

// NewEngine creates a backtest engine over the given series. Series order
// is the tie-break order for events with equal timestamps.
func NewEngine(strat strategy.Strategy, series []market.Series, config *Config, log *logging.Logger) *Engine {
	return &Engine{
		strategy: strat,
		series:   series,
		config:   config,
		log:      log.WithComponent("backtest"),
	}
}

// Run executes the replay and returns a structured result. A run with no
// price data for any instrument fails without invoking the strategy.
// Panics inside strategy hooks are converted to failure results.
func (e *Engine) Run(ctx context.Context) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("backtest panicked: %v", r)
			result = failure(e.config.InitialCapital,
				errors.NewAppError(errors.ErrCodeStrategyFailed, fmt.Sprintf("backtest failed: %v", r), nil))
		}
	}()

	if !e.running.CompareAndSwap(false, true) {
		return failure(e.config.InitialCapital,
			errors.NewAppError(errors.ErrCodeInvalidInput, "engine is already running", nil))
	}
	defer e.running.Store(false)

	sim := newSimulator(ctx, e.strategy, e.config, e.log)

	// The start hook runs before the dataset is inspected, so a strategy
	// sees OnStart even on a run that fails for lack of data.
	if err := e.strategy.OnStart(ctx, sim); err != nil {
		return failure(e.config.InitialCapital,
			errors.WrapError(err, errors.ErrCodeStrategyFailed, "strategy OnStart failed"))
	}

	events := market.Merge(e.series)
	if len(events) == 0 {
		e.log.Error("no data available for backtest")
		return failure(e.config.InitialCapital,
			errors.NewAppError(errors.ErrCodeDataUnavailable, "no data available for backtest", nil))
	}

	for i := range events {
		ev := &events[i]

		// The fill price reference advances before dispatch: an order
		// placed inside a hook fills against this event's price, the
		// last one ingested for the instrument.
		sim.observe(ev)

		if ev.Bar != nil {
			if err := e.strategy.OnBar(ctx, ev.Bar); err != nil {
				return failure(e.config.InitialCapital,
					errors.WrapError(err, errors.ErrCodeStrategyFailed, "strategy OnBar failed"))
			}
		}
		if err := e.strategy.OnTick(ctx, ev.Tick); err != nil {
			return failure(e.config.InitialCapital,
				errors.WrapError(err, errors.ErrCodeStrategyFailed, "strategy OnTick failed"))
		}

		sim.snapshot(ev.Timestamp)
	}

	if err := e.strategy.OnStop(ctx); err != nil {
		return failure(e.config.InitialCapital,
			errors.WrapError(err, errors.ErrCodeStrategyFailed, "strategy OnStop failed"))
	}

	metrics := analytics.Calculate(e.config.InitialCapital, sim.history, sim.trades)

	return &Result{
		Success:        true,
		InitialCapital: e.config.InitialCapital,
		StartTime:      events[0].Timestamp,
		EndTime:        events[len(events)-1].Timestamp,
		History:        sim.history,
		Trades:         sim.trades,
		Orders:         sim.orders,
		Metrics:        metrics,
	}
}
