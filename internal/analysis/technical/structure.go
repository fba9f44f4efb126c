package technical

import (
	"errors"
	"fmt"
	"math"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

const (
	// WindowBars is one comparison window (~3 months of sessions).
	WindowBars = 63
	// StructureBars is the trailing span the structure check reads.
	StructureBars = 2 * WindowBars
	// MinHistoryBars is the shortest series a snapshot can be built from
	// (~6 months plus EMA lead-in).
	MinHistoryBars = 130
)

// ErrInsufficientHistory is returned when a price series is too short.
var ErrInsufficientHistory = errors.New("technical: insufficient price history")

// StructureReading is the outcome of a structure classification along
// with the window extremes it was derived from.
type StructureReading struct {
	Structure  models.MarketStructure `json:"structure"`
	RecentHigh float64                `json:"recent_high"`
	RecentLow  float64                `json:"recent_low"`
	PriorHigh  float64                `json:"prior_high"`
	PriorLow   float64                `json:"prior_low"`
}

// ClassifyStructure compares the last 63 bars against the 63 before them.
// Strictly higher high and higher low is bullish, strictly lower high and
// lower low is bearish; every other combination, ties included, is range
// bound.
func ClassifyStructure(bars []models.OHLCV) (StructureReading, error) {
	if len(bars) < StructureBars {
		return StructureReading{}, fmt.Errorf("%w: need %d bars for structure, got %d",
			ErrInsufficientHistory, StructureBars, len(bars))
	}

	n := len(bars)
	prior := bars[n-StructureBars : n-WindowBars]
	recent := bars[n-WindowBars:]

	r := StructureReading{}
	r.PriorHigh, r.PriorLow = extremes(prior)
	r.RecentHigh, r.RecentLow = extremes(recent)
	r.Structure = Compare(r.RecentHigh, r.RecentLow, r.PriorHigh, r.PriorLow)
	return r, nil
}

// Compare is the total labelling function over window extremes.
func Compare(recentHigh, recentLow, priorHigh, priorLow float64) models.MarketStructure {
	switch {
	case recentHigh > priorHigh && recentLow > priorLow:
		return models.StructureBullish
	case recentHigh < priorHigh && recentLow < priorLow:
		return models.StructureBearish
	default:
		return models.StructureRangeBound
	}
}

// extremes returns max(high) and min(low) over the bars.
func extremes(bars []models.OHLCV) (high, low float64) {
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}
