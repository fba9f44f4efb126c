package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnmolBhardwaj/StockWatcher/internal/analysis/technical"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/utils"
)

// ScanPrices builds a fresh snapshot set for every watchlist ticker. Per-
// ticker failures become UNAVAILABLE entries; only cancellation of ctx is
// returned as an error.
func (p *Pipeline) ScanPrices(ctx context.Context, runID string) (models.SnapshotSet, error) {
	now := p.now()
	tickers := p.settings.Tickers
	results := make([]models.TickerSnapshot, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Concurrency)
	for i, sym := range tickers {
		g.Go(func() error {
			results[i] = p.scanOne(gctx, sym, now)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return models.SnapshotSet{}, err
	}

	set := models.NewSnapshotSet(utils.FormatDateIST(now), runID)
	for _, r := range results {
		set.Put(r)
	}
	p.logger.Info("price scan complete",
		zap.String("run_id", runID),
		zap.Int("tickers", set.Len()),
		zap.Int("available", set.AvailableCount()))
	return set, nil
}

func (p *Pipeline) scanOne(ctx context.Context, symbol string, now time.Time) models.TickerSnapshot {
	log := p.logger.With(zap.String("ticker", symbol))

	fctx, cancel := withTimeout(ctx, p.settings.FetchTimeout)
	bars, err := p.deps.Prices.History(fctx, symbol, now.Add(-p.settings.Lookback), now)
	cancel()
	if err != nil {
		log.Warn("price history unavailable", zap.Error(err))
		return models.Unavailable(symbol, err.Error())
	}

	fctx, cancel = withTimeout(ctx, p.settings.FetchTimeout)
	fund, err := p.deps.Prices.Fundamentals(fctx, symbol)
	cancel()
	if err != nil {
		log.Warn("fundamentals unavailable, using zero ratios", zap.Error(err))
		fund = nil
	}

	snap, err := technical.BuildSnapshot(symbol, bars, fund, now)
	if err != nil {
		log.Warn("snapshot not built", zap.Int("bars", len(bars)), zap.Error(err))
		return models.Unavailable(symbol, err.Error())
	}
	log.Debug("snapshot built",
		zap.Float64("price", snap.Price),
		zap.Float64("ema50", snap.EMA50),
		zap.String("structure", string(snap.MarketStructure)))
	return models.Available(snap)
}
