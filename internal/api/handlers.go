package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"speedquant/internal/backtest"
	"speedquant/internal/errors"
	"speedquant/internal/market"
	"speedquant/internal/optimizer"
	"speedquant/internal/strategy"
)

// BacktestRequest is the payload for POST /api/v1/backtest/run. Omitted
// numeric fields fall back to the configured defaults.
type BacktestRequest struct {
	Symbols        []string           `json:"symbols" binding:"required"`
	InitialCapital *float64           `json:"initial_capital"`
	Commission     *float64           `json:"commission"`
	Slippage       *float64           `json:"slippage"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Parameters     map[string]float64 `json:"parameters"`
	Save           bool               `json:"save"`
}

// OptimizeRequest is the payload for POST /api/v1/optimizer/run.
type OptimizeRequest struct {
	Returns         map[string][]float64   `json:"returns" binding:"required"`
	ExpectedReturns map[string]float64     `json:"expected_returns"`
	ReturnTarget    *float64               `json:"return_target"`
	Method          string                 `json:"method"`
	RiskFreeRate    *float64               `json:"risk_free_rate"`
	Constraints     *optimizer.Constraints `json:"constraints"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"name":    s.config.App.Name,
		"version": s.config.App.Version,
		"env":     s.config.App.Env,
	})
}

func (s *Server) handleBacktestRun(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInvalidInput, "invalid backtest request"))
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInvalidInput, "invalid start_date"))
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInvalidInput, "invalid end_date"))
		return
	}

	engineCfg := &backtest.Config{
		InitialCapital: valueOr(req.InitialCapital, s.config.Backtest.InitialCapital),
		Commission:     valueOr(req.Commission, s.config.Backtest.Commission),
		Slippage:       valueOr(req.Slippage, s.config.Backtest.Slippage),
	}

	loader := market.NewLoader(s.config.Backtest.DataDir, s.log)
	series := loader.Load(req.Symbols, start, end)

	strat := strategy.NewMACrossover("ma_crossover", req.Symbols, req.Parameters)
	engine := backtest.NewEngine(strat, series, engineCfg, s.log)

	began := time.Now()
	result := engine.Run(c.Request.Context())
	s.metrics.RecordBacktest(statusOf(result.Success), time.Since(began))

	if !result.Success {
		c.Error(result.Error)
		return
	}

	runID := uuid.NewString()
	if req.Save {
		dir := filepath.Join(s.config.Backtest.OutputDir, runID)
		if err := result.Save(dir); err != nil {
			c.Error(errors.WrapError(err, errors.ErrCodeInternal, "failed to save results"))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"result": result,
	})
}

func (s *Server) handleOptimizerRun(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInvalidInput, "invalid optimization request"))
		return
	}

	cfg := &optimizer.Config{
		Method:       s.config.Optimizer.Method,
		RiskFreeRate: valueOr(req.RiskFreeRate, s.config.Optimizer.RiskFreeRate),
		Constraints: optimizer.Constraints{
			MinWeight: s.config.Optimizer.MinWeight,
			MaxWeight: s.config.Optimizer.MaxWeight,
		},
	}
	if req.Method != "" {
		cfg.Method = req.Method
	}
	if req.Constraints != nil {
		cfg.Constraints = *req.Constraints
	}

	began := time.Now()
	result := optimizer.New(cfg, s.log).Run(&optimizer.Request{
		Returns:         req.Returns,
		ExpectedReturns: req.ExpectedReturns,
		ReturnTarget:    req.ReturnTarget,
	})
	s.metrics.RecordOptimization(cfg.Method, statusOf(result.Success), time.Since(began))

	if !result.Success {
		c.Error(result.Error)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": uuid.NewString(),
		"result": result,
	})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func valueOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func statusOf(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
