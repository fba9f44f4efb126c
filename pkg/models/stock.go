// Package models defines the core data structures used throughout StockWatcher.
package models

import "time"

// OHLCV represents a single daily candlestick bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Closes extracts the close series from a bar sequence.
func Closes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Fundamentals holds the externally supplied ratios used for scoring.
// A nil *Fundamentals means the provider had nothing for the symbol.
type Fundamentals struct {
	DebtToEquity  float64 `json:"debt_to_equity"`
	ProfitMargins float64 `json:"profit_margins"`
}

// MarketStructure labels the six-month higher-high/higher-low regime.
type MarketStructure string

const (
	StructureBullish    MarketStructure = "BULLISH (HH/HL)"
	StructureBearish    MarketStructure = "BEARISH (LH/LL)"
	StructureRangeBound MarketStructure = "RANGE_BOUND"
)

// IsBullish reports whether the structure is HH/HL.
func (s MarketStructure) IsBullish() bool { return s == StructureBullish }

// IsBearish reports whether the structure is LH/LL.
func (s MarketStructure) IsBearish() bool { return s == StructureBearish }

// PriceSnapshot is the technical state of one ticker for one scan cycle.
// It is never mutated after creation; the next cycle replaces it.
type PriceSnapshot struct {
	Symbol           string          `json:"symbol"`
	Price            float64         `json:"price"`
	EMA50            float64         `json:"ema_50"`
	EMA20            float64         `json:"ema_20"` // informational only, not scored
	IsStructuralBull bool            `json:"is_structural_bull"`
	MarketStructure  MarketStructure `json:"market_structure"`
	RecentHigh       float64         `json:"recent_high"`
	RecentLow        float64         `json:"recent_low"`
	PriorHigh        float64         `json:"prior_high"`
	PriorLow         float64         `json:"prior_low"`
	DebtRatio        float64         `json:"debt_ratio"`
	Margins          float64         `json:"margins"`
	Timestamp        time.Time       `json:"timestamp"`
}

// SnapshotStatus distinguishes a computed snapshot from a failed ticker.
type SnapshotStatus string

const (
	StatusAvailable   SnapshotStatus = "AVAILABLE"
	StatusUnavailable SnapshotStatus = "UNAVAILABLE"
)

// TickerSnapshot is the per-ticker entry of a snapshot set. Exactly one of
// Snapshot (AVAILABLE) or Reason (UNAVAILABLE) is meaningful.
type TickerSnapshot struct {
	Symbol   string         `json:"symbol"`
	Status   SnapshotStatus `json:"status"`
	Snapshot *PriceSnapshot `json:"snapshot,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// Available wraps a computed snapshot.
func Available(s PriceSnapshot) TickerSnapshot {
	return TickerSnapshot{Symbol: s.Symbol, Status: StatusAvailable, Snapshot: &s}
}

// Unavailable records a ticker whose snapshot could not be built.
func Unavailable(symbol, reason string) TickerSnapshot {
	return TickerSnapshot{Symbol: symbol, Status: StatusUnavailable, Reason: reason}
}

// IsAvailable reports whether the entry carries a snapshot.
func (t TickerSnapshot) IsAvailable() bool {
	return t.Status == StatusAvailable && t.Snapshot != nil
}

// SnapshotSet is the complete price state produced by one scan cycle.
type SnapshotSet struct {
	Date    string                    `json:"date"` // IST, YYYY-MM-DD
	RunID   string                    `json:"run_id,omitempty"`
	Tickers map[string]TickerSnapshot `json:"tickers"`
}

// NewSnapshotSet returns an empty set for the given date.
func NewSnapshotSet(date, runID string) SnapshotSet {
	return SnapshotSet{Date: date, RunID: runID, Tickers: make(map[string]TickerSnapshot)}
}

// Put stores an entry, replacing any prior entry for the same symbol.
func (s *SnapshotSet) Put(t TickerSnapshot) {
	if s.Tickers == nil {
		s.Tickers = make(map[string]TickerSnapshot)
	}
	s.Tickers[t.Symbol] = t
}

// Len returns the number of tickers in the set.
func (s SnapshotSet) Len() int { return len(s.Tickers) }

// AvailableCount returns how many entries carry a snapshot.
func (s SnapshotSet) AvailableCount() int {
	n := 0
	for _, t := range s.Tickers {
		if t.IsAvailable() {
			n++
		}
	}
	return n
}
