package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/internal/analysis/relevance"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

// NewsReport summarises one collection pass.
type NewsReport struct {
	relevance.MergeStats
	FeedsOK     int      `json:"feeds_ok"`
	FeedsFailed []string `json:"feeds_failed,omitempty"`
}

// CollectNews fetches every feed in order and merges the accepted items
// into existing. A feed that fails is skipped.
func (p *Pipeline) CollectNews(ctx context.Context, existing []models.NewsItem) ([]models.NewsItem, NewsReport, error) {
	var (
		incoming []models.RawNewsItem
		report   NewsReport
	)
	for _, feed := range p.settings.Feeds {
		if err := ctx.Err(); err != nil {
			return existing, report, err
		}
		fctx, cancel := withTimeout(ctx, p.settings.FetchTimeout)
		items, err := p.deps.Feeds.Fetch(fctx, feed)
		cancel()
		if err != nil {
			p.logger.Warn("feed skipped", zap.String("feed", feed.Name), zap.Error(err))
			report.FeedsFailed = append(report.FeedsFailed, feed.Name)
			continue
		}
		report.FeedsOK++
		incoming = append(incoming, items...)
	}

	merged, stats := p.deps.Filter.Merge(existing, incoming, p.now())
	report.MergeStats = stats
	p.logger.Info("news collected",
		zap.Int("feeds_ok", report.FeedsOK),
		zap.Int("feeds_failed", len(report.FeedsFailed)),
		zap.Int("accepted", stats.Accepted),
		zap.Int("critical", stats.Critical),
		zap.Int("buffer", len(merged)))
	return merged, report, nil
}
