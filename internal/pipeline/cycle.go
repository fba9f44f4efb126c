package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/internal/store"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

// CycleResult reports a full run.
type CycleResult struct {
	RunID      string             `json:"run_id"`
	Snapshots  models.SnapshotSet `json:"snapshots"`
	News       NewsReport         `json:"news"`
	PersistErr error              `json:"-"`
	Audit      *AuditResult       `json:"audit,omitempty"`
}

// Scan refreshes the snapshot set and persists it with the stored news.
func (p *Pipeline) Scan(ctx context.Context) (models.SnapshotSet, error) {
	runID := p.newRunID()
	st, err := p.deps.Store.LoadLatest(ctx)
	if err != nil {
		return models.SnapshotSet{}, err
	}
	set, err := p.ScanPrices(ctx, runID)
	if err != nil {
		return models.SnapshotSet{}, err
	}
	st.Snapshots = set
	if err := p.deps.Store.Persist(ctx, st); err != nil {
		return set, fmt.Errorf("pipeline: persist snapshots: %w", err)
	}
	return set, nil
}

// News refreshes the news buffer and persists it with the stored snapshots.
func (p *Pipeline) News(ctx context.Context) (NewsReport, error) {
	st, err := p.deps.Store.LoadLatest(ctx)
	if err != nil {
		return NewsReport{}, err
	}
	merged, report, err := p.CollectNews(ctx, st.News)
	if err != nil {
		return report, err
	}
	st.News = merged
	if err := p.deps.Store.Persist(ctx, st); err != nil {
		return report, fmt.Errorf("pipeline: persist news: %w", err)
	}
	return report, nil
}

// AuditStored runs the audit against the persisted state.
func (p *Pipeline) AuditStored(ctx context.Context, dryRun bool) (*AuditResult, error) {
	st, err := p.deps.Store.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}
	runID := st.Snapshots.RunID
	if runID == "" {
		runID = p.newRunID()
	}
	return p.Audit(ctx, st, runID, dryRun)
}

// RunCycle scans prices and collects news, persists both in one write,
// then audits the fresh state. A failed write is logged and the audit
// still runs on the in-memory state.
func (p *Pipeline) RunCycle(ctx context.Context, dryRun bool) (*CycleResult, error) {
	runID := p.newRunID()
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("cycle started", zap.Int("tickers", len(p.settings.Tickers)), zap.Int("feeds", len(p.settings.Feeds)))

	prev, err := p.deps.Store.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}

	res := &CycleResult{RunID: runID}
	if res.Snapshots, err = p.ScanPrices(ctx, runID); err != nil {
		return res, err
	}
	merged, report, err := p.CollectNews(ctx, prev.News)
	if err != nil {
		return res, err
	}
	res.News = report

	st := store.State{Snapshots: res.Snapshots, News: merged}
	if err := p.deps.Store.Persist(ctx, st); err != nil {
		log.Error("state not persisted", zap.Error(err))
		res.PersistErr = err
	}

	res.Audit, err = p.Audit(ctx, st, runID, dryRun)
	if err != nil {
		return res, err
	}
	log.Info("cycle finished", zap.Bool("dispatched", res.Audit.Dispatched))
	return res, nil
}
