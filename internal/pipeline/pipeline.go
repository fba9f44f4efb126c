// Package pipeline wires the scan cycle together: price scan and news
// collection feed the store, the stored state is composed into a payload,
// the oracle scores it, and the report is dispatched.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/internal/analysis/relevance"
	"github.com/AnmolBhardwaj/StockWatcher/internal/datasource"
	"github.com/AnmolBhardwaj/StockWatcher/internal/llm"
	"github.com/AnmolBhardwaj/StockWatcher/internal/notify"
	"github.com/AnmolBhardwaj/StockWatcher/internal/prompt"
	"github.com/AnmolBhardwaj/StockWatcher/internal/store"
)

var (
	// ErrOracleFailure means the oracle errored or replied with nothing.
	// Nothing is dispatched when it is returned.
	ErrOracleFailure = errors.New("pipeline: oracle failure")
	// ErrNoDispatcher is returned by a non-dry-run audit with no dispatcher.
	ErrNoDispatcher = errors.New("pipeline: no dispatcher configured")
)

// Oracle is the reasoning backend; *llm.Router satisfies it.
type Oracle interface {
	Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error)
}

// Dispatcher delivers a finished report; *notify.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, report string) (notify.Result, error)
}

// Deps are the collaborators of a Pipeline. Oracle and Dispatcher may be
// nil for commands that never reach the audit stage.
type Deps struct {
	Prices     datasource.PriceProvider
	Feeds      datasource.FeedProvider
	Store      store.Store
	Filter     *relevance.Filter
	Oracle     Oracle
	Dispatcher Dispatcher
}

// Settings carries the tunables read from config.
type Settings struct {
	Tickers       []string
	Feeds         []datasource.Feed
	Concurrency   int
	Lookback      time.Duration
	FetchTimeout  time.Duration
	OracleTimeout time.Duration
	Budget        decimal.Decimal
	Weights       prompt.Weights
	NewsMode      string
	NewsLimit     int
	Rules         []string
	Chat          llm.ChatOptions
}

// Pipeline runs the stages of a cycle.
type Pipeline struct {
	deps     Deps
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
	newRunID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(gen func() string) Option {
	return func(p *Pipeline) { p.newRunID = gen }
}

// New creates a Pipeline.
func New(deps Deps, s Settings, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 5
	}
	if s.Lookback <= 0 {
		s.Lookback = 365 * 24 * time.Hour
	}
	if s.Weights == (prompt.Weights{}) {
		s.Weights = prompt.DefaultWeights
	}
	if deps.Filter == nil {
		deps.Filter = relevance.NewFilter(relevance.DefaultRules(s.Tickers))
	}
	p := &Pipeline{
		deps:     deps,
		settings: s,
		logger:   logger.Named("pipeline"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// withTimeout derives a child context when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
