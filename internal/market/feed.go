package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"speedquant/internal/logging"
)

// Merge flattens all series into one time-ordered event sequence. The sort
// is stable and the input order is per-series feed order, series in caller
// order, so ties at equal timestamps replay identically across runs.
func Merge(series []Series) []Event {
	var events []Event
	for i := range series {
		s := &series[i]
		for j := range s.Bars {
			b := &s.Bars[j]
			events = append(events, Event{
				Symbol:    s.Symbol,
				Timestamp: b.Timestamp,
				Bar:       b,
				Tick:      TickFromBar(b),
			})
		}
		for j := range s.Ticks {
			t := &s.Ticks[j]
			events = append(events, Event{
				Symbol:    s.Symbol,
				Timestamp: t.Timestamp,
				Tick:      t,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// Loader reads per-symbol CSV files from a data directory.
type Loader struct {
	dir string
	log *logging.Logger
}

// NewLoader creates a loader for the given directory.
func NewLoader(dir string, log *logging.Logger) *Loader {
	return &Loader{dir: dir, log: log.WithComponent("loader")}
}

// timestamp layouts accepted in data files, most specific first
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Load reads <symbol>.csv for each requested symbol. Symbols without a data
// file are logged as warnings and omitted; they are not fatal here. The
// engine fails the run only when every instrument is missing.
func (l *Loader) Load(symbols []string, start, end time.Time) []Series {
	var out []Series
	for _, symbol := range symbols {
		path := filepath.Join(l.dir, symbol+".csv")
		bars, err := l.loadFile(path, symbol)
		if err != nil {
			l.log.WithField("symbol", symbol).Warnf("no data found for symbol: %v", err)
			continue
		}

		bars = filterByDate(bars, start, end)
		sort.SliceStable(bars, func(i, j int) bool {
			return bars[i].Timestamp.Before(bars[j].Timestamp)
		})
		out = append(out, Series{Symbol: symbol, Bars: bars})
	}
	return out
}

func (l *Loader) loadFile(path, symbol string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s has no data rows", path)
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[name] = i
	}
	for _, required := range []string{"timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s is missing column %q", path, required)
		}
	}

	bars := make([]Bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		ts, err := parseTime(rec[col["timestamp"]])
		if err != nil {
			return nil, err
		}
		bar := Bar{Symbol: symbol, Timestamp: ts}
		for _, fld := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low},
			{"close", &bar.Close}, {"volume", &bar.Volume},
		} {
			v, err := strconv.ParseFloat(rec[col[fld.name]], 64)
			if err != nil {
				return nil, fmt.Errorf("bad %s value %q: %w", fld.name, rec[col[fld.name]], err)
			}
			*fld.dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func filterByDate(bars []Bar, start, end time.Time) []Bar {
	if start.IsZero() && end.IsZero() {
		return bars
	}
	out := bars[:0]
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
