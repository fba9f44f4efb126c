package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/internal/config"
)

// Router sends requests to the primary provider and falls back through
// the configured chain when it fails.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithLogger sets the router logger.
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]Provider),
		primary:    primary,
		maxRetries: 2,
		retryDelay: 1 * time.Second,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (Provider, error) {
	p, ok := r.GetProvider(r.primary)
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat routes a chat request through the provider chain with fallback.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()

	var lastErr error
	tried := 0
	for _, name := range chain {
		provider, ok := r.GetProvider(name)
		if !ok {
			continue
		}
		tried++

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.logger.Warn("oracle provider failed", zap.String("provider", name), zap.Error(err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if tried == 0 {
		return nil, ErrNoProviders
	}

	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p Provider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies Provider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Ping checks the primary provider's health (satisfies Provider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// Chain returns the registered providers in the order they are tried.
func (r *Router) Chain() []string {
	var out []string
	for _, n := range r.providerChain() {
		if _, ok := r.GetProvider(n); ok {
			out = append(out, n)
		}
	}
	return out
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider Provider, messages []Message, opts *ChatOptions) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if isNonRetryable(err) {
			return nil, err
		}
		r.logger.Debug("oracle attempt failed",
			zap.String("provider", provider.Name()), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

// isNonRetryable reports errors that the same provider will repeat.
func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength) ||
		errors.Is(err, context.Canceled)
}

// NewRouterFromConfig builds a Router from the oracle config. Providers
// are registered for every backend that has credentials; the primary is
// tried first and the rest follow as fallbacks.
func NewRouterFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	router := NewRouter(cfg.Primary,
		WithMaxRetries(cfg.MaxRetries),
		WithRetryDelay(time.Second),
		WithLogger(logger.Named("llm")),
	)

	var fallbacks []string
	register := func(p Provider) {
		router.RegisterProvider(p)
		if p.Name() != cfg.Primary {
			fallbacks = append(fallbacks, p.Name())
		}
	}

	if cfg.GroqKey != "" {
		opts := []OpenAIOption{WithOpenAIHTTPClient(client)}
		if cfg.GroqURL != "" {
			opts = append(opts, WithOpenAIBaseURL(cfg.GroqURL))
		}
		if cfg.Model != "" && cfg.Primary == ProviderGroq {
			opts = append(opts, WithOpenAIModel(cfg.Model))
		}
		if p, err := NewGroqProvider(cfg.GroqKey, opts...); err == nil {
			register(p)
		}
	}

	if cfg.OpenAIKey != "" {
		opts := []OpenAIOption{WithOpenAIHTTPClient(client)}
		if cfg.Model != "" && cfg.Primary == ProviderOpenAI {
			opts = append(opts, WithOpenAIModel(cfg.Model))
		}
		if p, err := NewOpenAIProvider(cfg.OpenAIKey, opts...); err == nil {
			register(p)
		}
	}

	if cfg.OllamaURL != "" {
		model := cfg.FallbackModel
		if cfg.Primary == ProviderOllama && cfg.Model != "" {
			model = cfg.Model
		}
		opts := []OllamaOption{WithOllamaHTTPClient(client)}
		if model != "" {
			opts = append(opts, WithOllamaModel(model))
		}
		register(NewOllamaProvider(cfg.OllamaURL, opts...))
	}

	if _, ok := router.GetProvider(cfg.Primary); !ok {
		return nil, fmt.Errorf("%w: primary %q has no credentials", ErrNoProviders, cfg.Primary)
	}

	router.fallbacks = fallbacks
	return router, nil
}
