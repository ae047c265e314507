package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Save writes the run's flat-file export into dir, one directory per run:
// portfolio_history.csv, trades.csv, orders.csv and metrics.json. Column
// and key names are fixed for downstream tooling.
func (r *Result) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.saveHistory(filepath.Join(dir, "portfolio_history.csv")); err != nil {
		return err
	}
	if err := r.saveTrades(filepath.Join(dir, "trades.csv")); err != nil {
		return err
	}
	if err := r.saveOrders(filepath.Join(dir, "orders.csv")); err != nil {
		return err
	}
	return r.saveMetrics(filepath.Join(dir, "metrics.json"))
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r *Result) saveHistory(path string) error {
	rows := make([][]string, 0, len(r.History))
	for _, snap := range r.History {
		// Map keys are sorted by the JSON encoder, keeping rows
		// byte-stable across runs.
		positions, err := json.Marshal(snap.Positions)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			formatTime(snap.Timestamp),
			formatFloat(snap.Equity),
			formatFloat(snap.Cash),
			string(positions),
		})
	}
	return writeCSV(path, []string{"timestamp", "equity", "cash", "positions"}, rows)
}

func (r *Result) saveTrades(path string) error {
	rows := make([][]string, 0, len(r.Trades))
	for _, t := range r.Trades {
		rows = append(rows, []string{
			t.OrderID,
			t.Symbol,
			string(t.Side),
			formatFloat(t.Quantity),
			formatFloat(t.Price),
			formatTime(t.Timestamp),
			formatFloat(t.Commission),
			formatFloat(t.Value),
		})
	}
	return writeCSV(path,
		[]string{"order_id", "symbol", "side", "quantity", "price", "timestamp", "commission", "value"},
		rows)
}

func (r *Result) saveOrders(path string) error {
	rows := make([][]string, 0, len(r.Orders))
	for _, o := range r.Orders {
		rows = append(rows, []string{
			o.ID,
			o.Symbol,
			string(o.Side),
			formatFloat(o.Quantity),
			formatFloat(o.Price),
			formatTime(o.Timestamp),
			string(o.Status),
			formatFloat(o.Commission),
		})
	}
	return writeCSV(path,
		[]string{"id", "symbol", "side", "quantity", "price", "timestamp", "status", "commission"},
		rows)
}

func (r *Result) saveMetrics(path string) error {
	data, err := json.MarshalIndent(r.Metrics, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
