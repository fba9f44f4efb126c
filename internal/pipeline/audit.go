package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/internal/llm"
	"github.com/AnmolBhardwaj/StockWatcher/internal/notify"
	"github.com/AnmolBhardwaj/StockWatcher/internal/prompt"
	"github.com/AnmolBhardwaj/StockWatcher/internal/scoring"
	"github.com/AnmolBhardwaj/StockWatcher/internal/store"
)

// AuditResult is everything one audit produced.
type AuditResult struct {
	RunID      string         `json:"run_id"`
	Payload    prompt.Payload `json:"payload"`
	Reply      string         `json:"reply,omitempty"`
	Report     string         `json:"report,omitempty"` // reply plus any validation note
	Validation scoring.Report `json:"validation"`
	Provider   string         `json:"provider,omitempty"`
	Delivery   notify.Result  `json:"delivery"`
	Dispatched bool           `json:"dispatched"`
}

// Compose renders the oracle payload for a stored state.
func (p *Pipeline) Compose(st store.State) (prompt.Payload, error) {
	return prompt.Compose(prompt.Input{
		Snapshots: st.Snapshots,
		News:      st.News,
		Budget:    p.settings.Budget,
		Weights:   p.settings.Weights,
		NewsMode:  p.settings.NewsMode,
		NewsLimit: p.settings.NewsLimit,
		Rules:     p.settings.Rules,
		Now:       p.now(),
	})
}

// Audit composes the payload for st, asks the oracle for a verdict and,
// unless dryRun, dispatches the report. An oracle error or empty reply
// returns ErrOracleFailure and nothing is sent.
func (p *Pipeline) Audit(ctx context.Context, st store.State, runID string, dryRun bool) (*AuditResult, error) {
	log := p.logger.With(zap.String("run_id", runID))

	payload, err := p.Compose(st)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compose payload: %w", err)
	}
	res := &AuditResult{RunID: runID, Payload: payload}

	if p.deps.Oracle == nil {
		return res, fmt.Errorf("%w: no oracle configured", ErrOracleFailure)
	}
	octx, cancel := withTimeout(ctx, p.settings.OracleTimeout)
	opts := p.settings.Chat
	resp, err := p.deps.Oracle.Chat(octx, []llm.Message{
		llm.SystemMessage(payload.SystemMessage()),
		llm.UserMessage(payload.User),
	}, &opts)
	cancel()
	if err != nil {
		log.Error("oracle call failed", zap.Error(err))
		return res, fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		log.Error("oracle returned empty content")
		return res, fmt.Errorf("%w: empty reply", ErrOracleFailure)
	}
	res.Reply = resp.Content
	res.Provider = resp.Provider
	log.Info("oracle replied", zap.String("provider", resp.Provider), zap.Int("tokens", resp.Usage.TotalTokens))

	res.Validation = scoring.Validate(res.Reply, payload.Tickers, p.settings.Budget)
	for _, w := range res.Validation.Warnings {
		log.Warn("verdict validation", zap.String("warning", w))
	}
	res.Report = scoring.Annotate(res.Reply, res.Validation)

	if dryRun {
		return res, nil
	}
	if p.deps.Dispatcher == nil {
		return res, ErrNoDispatcher
	}

	res.Delivery, err = p.deps.Dispatcher.Dispatch(ctx, res.Report)
	res.Dispatched = res.Delivery.Delivered > 0
	if err != nil {
		log.Error("report dispatch incomplete", zap.Int("failed", res.Delivery.Failed), zap.Error(err))
		return res, err
	}
	log.Info("report dispatched",
		zap.Int("chunks", len(res.Delivery.Chunks)),
		zap.Int("plain_fallbacks", res.Delivery.Fallbacks))
	return res, nil
}
