// speedquant runs the simulation core as an HTTP service or as a one-shot
// backtest / optimization from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"speedquant/internal/api"
	"speedquant/internal/backtest"
	"speedquant/internal/config"
	"speedquant/internal/logging"
	"speedquant/internal/market"
	"speedquant/internal/optimizer"
	"speedquant/internal/strategy"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to configuration file")
		mode       = flag.String("mode", "server", "run mode: server, backtest or optimize")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	switch *mode {
	case "server":
		runServer(cfg, log)
	case "backtest":
		runBacktest(cfg, log)
	case "optimize":
		runOptimize(cfg, log)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
}

func runServer(cfg *config.Config, log *logging.Logger) {
	server := api.NewServer(cfg, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func runBacktest(cfg *config.Config, log *logging.Logger) {
	if len(cfg.Backtest.Symbols) == 0 {
		log.Fatalf("no symbols configured for backtest")
	}

	start := parseDate(cfg.Backtest.StartDate)
	end := parseDate(cfg.Backtest.EndDate)

	loader := market.NewLoader(cfg.Backtest.DataDir, log)
	series := loader.Load(cfg.Backtest.Symbols, start, end)

	strat := strategy.NewMACrossover("ma_crossover", cfg.Backtest.Symbols, nil)
	engine := backtest.NewEngine(strat, series, &backtest.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		Commission:     cfg.Backtest.Commission,
		Slippage:       cfg.Backtest.Slippage,
	}, log)

	result := engine.Run(context.Background())
	if !result.Success {
		log.Fatalf("backtest failed: %v", result.Error)
	}

	dir := filepath.Join(cfg.Backtest.OutputDir, uuid.NewString())
	if err := result.Save(dir); err != nil {
		log.Fatalf("failed to save results: %v", err)
	}

	log.WithFields(map[string]interface{}{
		"output_dir":   dir,
		"trades":       len(result.Trades),
		"total_return": result.Metrics.TotalReturnPct,
		"sharpe":       result.Metrics.SharpeRatio,
		"max_drawdown": result.Metrics.MaxDrawdownPct,
	}).Info("backtest completed")
}

func runOptimize(cfg *config.Config, log *logging.Logger) {
	if len(cfg.Backtest.Symbols) == 0 {
		log.Fatalf("no symbols configured for optimization")
	}

	loader := market.NewLoader(cfg.Backtest.DataDir, log)
	series := loader.Load(cfg.Backtest.Symbols, parseDate(cfg.Backtest.StartDate), parseDate(cfg.Backtest.EndDate))
	returns := closeReturns(series)

	opt := optimizer.New(&optimizer.Config{
		Method:       cfg.Optimizer.Method,
		RiskFreeRate: cfg.Optimizer.RiskFreeRate,
		Constraints: optimizer.Constraints{
			MinWeight: cfg.Optimizer.MinWeight,
			MaxWeight: cfg.Optimizer.MaxWeight,
		},
	}, log)

	result := opt.Run(&optimizer.Request{Returns: returns})
	if !result.Success {
		log.Fatalf("optimization failed: %v", result.Error)
	}

	for asset, weight := range result.Weights {
		log.Infof("weight %s = %.4f", asset, weight)
	}
	log.WithFields(map[string]interface{}{
		"method":     result.Method,
		"return":     result.ExpectedReturn,
		"volatility": result.ExpectedVolatility,
		"sharpe":     result.SharpeRatio,
	}).Info("optimization completed")
}

// closeReturns derives per-symbol simple returns from bar closes, truncated
// to the shortest series so the optimizer sees an aligned table.
func closeReturns(series []market.Series) map[string][]float64 {
	shortest := -1
	for _, s := range series {
		if n := len(s.Bars) - 1; shortest < 0 || n < shortest {
			shortest = n
		}
	}
	if shortest < 0 {
		shortest = 0
	}

	returns := make(map[string][]float64, len(series))
	for _, s := range series {
		rets := make([]float64, 0, shortest)
		for i := 1; i <= shortest; i++ {
			prev := s.Bars[i-1].Close
			if prev == 0 {
				rets = append(rets, 0)
				continue
			}
			rets = append(rets, s.Bars[i].Close/prev-1)
		}
		returns[s.Symbol] = rets
	}
	return returns
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	// Validate already ran in config.Load.
	t, _ := time.Parse("2006-01-02", s)
	return t
}
