package technical

import (
	"fmt"
	"time"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

const (
	// DurabilitySpan is the EMA span used as the structural-bull filter.
	DurabilitySpan = 50
	// ShortSpan is carried for reference and not scored.
	ShortSpan = 20
)

// BuildSnapshot combines EMA-50, the latest close, the six-month structure
// and the supplied fundamentals into a PriceSnapshot. A nil fundamentals
// value is treated as zero ratios. bars must be in chronological order.
func BuildSnapshot(symbol string, bars []models.OHLCV, f *models.Fundamentals, now time.Time) (models.PriceSnapshot, error) {
	if len(bars) < MinHistoryBars {
		return models.PriceSnapshot{}, fmt.Errorf("%w: %s has %d bars, need %d",
			ErrInsufficientHistory, symbol, len(bars), MinHistoryBars)
	}

	closes := models.Closes(bars)
	price := closes[len(closes)-1]
	ema50 := EMALatest(closes, DurabilitySpan)
	ema20 := EMALatest(closes, ShortSpan)

	reading, err := ClassifyStructure(bars)
	if err != nil {
		return models.PriceSnapshot{}, err
	}

	snap := models.PriceSnapshot{
		Symbol:           symbol,
		Price:            round2(price),
		EMA50:            round2(ema50),
		EMA20:            round2(ema20),
		IsStructuralBull: price > ema50,
		MarketStructure:  reading.Structure,
		RecentHigh:       round2(reading.RecentHigh),
		RecentLow:        round2(reading.RecentLow),
		PriorHigh:        round2(reading.PriorHigh),
		PriorLow:         round2(reading.PriorLow),
		Timestamp:        now,
	}
	if f != nil {
		snap.DebtRatio = f.DebtToEquity
		snap.Margins = f.ProfitMargins
	}
	return snap, nil
}
