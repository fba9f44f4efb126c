package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AnmolBhardwaj/StockWatcher/internal/analysis/relevance"
	"github.com/AnmolBhardwaj/StockWatcher/internal/config"
	"github.com/AnmolBhardwaj/StockWatcher/internal/datasource"
	"github.com/AnmolBhardwaj/StockWatcher/internal/infra"
	"github.com/AnmolBhardwaj/StockWatcher/internal/llm"
	"github.com/AnmolBhardwaj/StockWatcher/internal/notify"
	"github.com/AnmolBhardwaj/StockWatcher/internal/pipeline"
	"github.com/AnmolBhardwaj/StockWatcher/internal/prompt"
	"github.com/AnmolBhardwaj/StockWatcher/internal/store"
)

// stage marks how far a command goes, so only the needed clients are built.
type stage int

const (
	stageCollect stage = iota // prices and news only
	stageCompose              // plus payload composition
	stageOracle               // plus the reasoning oracle
	stageDispatch             // plus Telegram delivery
)

// app holds the wired pipeline and the resources that need closing.
type app struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	router   *llm.Router
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// buildApp wires every collaborator from the loaded config.
func buildApp(c *config.Config, upTo stage) (*app, error) {
	st, err := store.Open(store.Options{Driver: c.Storage.Driver, Dir: c.Storage.Dir}, logger)
	if err != nil {
		return nil, err
	}
	a := &app{store: st}

	fetchTimeout := time.Duration(c.Network.RequestTimeoutSec) * time.Second
	client := datasource.NewHTTPClient(fetchTimeout)
	if c.Network.UserAgent != "" {
		client = infra.NewHTTPClient(fetchTimeout, c.Network.UserAgent)
	}
	limiter := infra.PerSecond(c.Network.RateLimit)

	deps := pipeline.Deps{
		Prices: datasource.NewYahoo(
			datasource.WithYahooHTTPClient(client),
			datasource.WithYahooRateLimiter(limiter),
		),
		Feeds: datasource.NewRSS(
			datasource.WithRSSHTTPClient(client),
			datasource.WithRSSRateLimiter(limiter),
		),
		Store:  st,
		Filter: relevance.NewFilter(rulesFrom(c)),
	}

	weights, err := weightsFrom(c.Scoring)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	budget, err := c.Budget()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if upTo >= stageOracle {
		if err := c.RequireOracle(); err != nil {
			_ = st.Close()
			return nil, err
		}
		router, err := llm.NewRouterFromConfig(c.LLM, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		a.router = router
		deps.Oracle = router
	}

	if upTo >= stageDispatch {
		d, err := dispatcherFrom(c)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		deps.Dispatcher = d
	}

	settings := pipeline.Settings{
		Tickers:       c.Watchlist.Tickers,
		Feeds:         feedsFrom(c.News.Feeds),
		Concurrency:   c.Analysis.ConcurrentFetches,
		Lookback:      time.Duration(c.Analysis.LookbackDays) * 24 * time.Hour,
		FetchTimeout:  fetchTimeout,
		OracleTimeout: time.Duration(c.LLM.TimeoutSec) * time.Second,
		Budget:        budget,
		Weights:       weights,
		NewsMode:      c.News.Mode,
		NewsLimit:     c.News.Limit,
		Rules:         c.Watchlist.Rules,
		Chat: llm.ChatOptions{
			Model:       c.LLM.Model,
			Temperature: c.LLM.Temperature,
			MaxTokens:   c.LLM.MaxTokens,
		},
	}
	a.pipeline = pipeline.New(deps, settings, logger)
	return a, nil
}

func rulesFrom(c *config.Config) relevance.Rules {
	r := relevance.DefaultRules(c.Watchlist.Tickers)
	if len(c.News.ImpactKeywords) > 0 {
		r.ImpactKeywords = c.News.ImpactKeywords
	}
	if len(c.News.DomainKeywords) > 0 {
		r.DomainKeywords = c.News.DomainKeywords
	}
	r.AcceptThreshold = c.News.AcceptThreshold
	r.CriticalThreshold = c.News.CriticalThreshold
	r.Capacity = c.News.Capacity
	return r
}

func weightsFrom(s config.ScoringConfig) (prompt.Weights, error) {
	if s.WeightsPreset != prompt.PresetCustom {
		return prompt.Preset(s.WeightsPreset)
	}
	w := prompt.Weights{Trend: s.Trend, News: s.News, Fundamentals: s.Fundamentals}
	if err := w.Validate(); err != nil {
		return prompt.Weights{}, err
	}
	return w, nil
}

func feedsFrom(fc []config.FeedConfig) []datasource.Feed {
	if len(fc) == 0 {
		return datasource.DefaultFeeds
	}
	feeds := make([]datasource.Feed, 0, len(fc))
	for _, f := range fc {
		feeds = append(feeds, datasource.Feed{Name: f.Name, URL: f.URL})
	}
	return feeds
}

func telegramFrom(c *config.Config) (*notify.Telegram, error) {
	timeout := time.Duration(c.Telegram.TimeoutSec) * time.Second
	return notify.NewTelegram(c.Telegram.Token,
		notify.WithTelegramBaseURL(c.Telegram.BaseURL),
		notify.WithTelegramHTTPClient(&http.Client{Timeout: timeout}),
	)
}

func dispatcherFrom(c *config.Config) (*notify.Dispatcher, error) {
	if err := c.RequireTelegram(); err != nil {
		return nil, err
	}
	tg, err := telegramFrom(c)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return notify.NewDispatcher(tg, notify.Options{
		ChatID:     c.Telegram.ChatID,
		ChunkLimit: c.Telegram.ChunkLimit,
		Delay:      time.Duration(c.Telegram.ChunkDelayMs) * time.Millisecond,
	}, logger), nil
}
