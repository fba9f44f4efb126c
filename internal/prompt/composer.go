// Package prompt renders the scoring payload sent to the reasoning oracle.
// Compose is a pure function: the same Input always yields the same text.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/pretty"

	"github.com/AnmolBhardwaj/StockWatcher/internal/analysis/relevance"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/utils"
)

// ErrInvalidBudget is returned for a non-positive monthly budget.
var ErrInvalidBudget = errors.New("prompt: budget must be positive")

// News selection modes.
const (
	NewsModeRecent    = "recent"
	NewsModeRelevance = "relevance"

	DefaultRecentLimit    = 15
	DefaultRelevanceLimit = 80
)

// Persona is the oracle's system role.
const Persona = "You are a Senior Portfolio Manager specializing in Indian Strategic Industrials (Defence, Nuclear, Infra). " +
	"Your tone is blunt, logical, and highly technical. You ignore cosmetic news and focus only on direct growth catalysts. " +
	"Your goal: decide how this month's SIP should be deployed across the watchlist, checking whether price structure " +
	"agrees with nuclear and defence policy shifts such as the SHANTI Bill or AERB tenders."

// DefaultWatchlistRules are the standing interpretation rules.
var DefaultWatchlistRules = []string{
	"AERB licensing guidelines = Long-term growth",
	"SMR tenders = Direct catalyst",
	"New supplier contracts for MTAR/BHEL/LT = Earnings visibility",
}

// Input is everything a payload is derived from.
type Input struct {
	Snapshots models.SnapshotSet
	News      []models.NewsItem // relevance-sorted buffer
	Budget    decimal.Decimal
	Weights   Weights
	Bands     []models.Band
	NewsMode  string
	NewsLimit int
	Rules     []string
	Now       time.Time
}

// Payload is the composed oracle request.
type Payload struct {
	System  string   `json:"system"`
	Context string   `json:"context"`
	User    string   `json:"user"`
	Tickers []string `json:"tickers"`
}

// SystemMessage joins the persona and context block.
func (p Payload) SystemMessage() string {
	return p.System + "\n\nCONTEXT:\n" + p.Context
}

// Text renders the payload as one instruction text.
func (p Payload) Text() string {
	return p.SystemMessage() + "\n\nUSER TASK:\n" + p.User
}

// ── context document ──

type technicals struct {
	Price            float64                `json:"price"`
	EMA50            float64                `json:"ema_50"`
	IsStructuralBull bool                   `json:"is_structural_bull"`
	MarketStructure  models.MarketStructure `json:"market_structure"`
	DebtRatio        float64                `json:"debt_ratio"`
	Margins          float64                `json:"margins"`
	AsOf             string                 `json:"as_of"`
}

type marketEntry struct {
	Ticker     string                `json:"ticker"`
	Status     models.SnapshotStatus `json:"status"`
	Reason     string                `json:"reason,omitempty"`
	Technicals *technicals           `json:"technicals,omitempty"`
}

type newsEntry struct {
	Category   models.NewsCategory `json:"category"`
	Title      string              `json:"title"`
	Source     string              `json:"source"`
	Published  string              `json:"published,omitempty"`
	Relevance  int                 `json:"relevance_score"`
	IsCritical bool                `json:"is_critical"`
}

type bandEntry struct {
	Action models.Action `json:"action"`
	Range  string        `json:"score_range"`
}

type contextDoc struct {
	AsOf           string        `json:"as_of"`
	SnapshotDate   string        `json:"snapshot_date"`
	MonthlyBudget  string        `json:"monthly_budget_inr"`
	ScoringWeights Weights       `json:"scoring_weights"`
	ActionBands    []bandEntry   `json:"action_bands"`
	MarketData     []marketEntry `json:"market_data"`
	StrategicNews  []newsEntry   `json:"strategic_news"`
	WatchlistRules []string      `json:"watchlist_rules"`
}

// Compose renders in as a Payload.
func Compose(in Input) (Payload, error) {
	if err := in.Weights.Validate(); err != nil {
		return Payload{}, err
	}
	if !in.Budget.IsPositive() {
		return Payload{}, fmt.Errorf("%w: %s", ErrInvalidBudget, in.Budget)
	}
	bands := in.Bands
	if len(bands) == 0 {
		bands = models.DefaultBands
	}
	rules := in.Rules
	if rules == nil {
		rules = DefaultWatchlistRules
	}

	news, err := SelectNews(in.News, in.NewsMode, in.NewsLimit)
	if err != nil {
		return Payload{}, err
	}

	doc := contextDoc{
		AsOf:           utils.FormatDateTimeIST(in.Now),
		SnapshotDate:   in.Snapshots.Date,
		MonthlyBudget:  utils.FormatINR(in.Budget),
		ScoringWeights: in.Weights,
		WatchlistRules: rules,
		MarketData:     []marketEntry{},
		StrategicNews:  []newsEntry{},
	}
	for _, b := range bands {
		doc.ActionBands = append(doc.ActionBands, bandEntry{Action: b.Action, Range: bandRange(b)})
	}

	tickers := make([]string, 0, len(in.Snapshots.Tickers))
	for sym := range in.Snapshots.Tickers {
		tickers = append(tickers, sym)
	}
	sort.Strings(tickers)
	for _, sym := range tickers {
		doc.MarketData = append(doc.MarketData, marketFor(in.Snapshots.Tickers[sym]))
	}
	for _, n := range news {
		doc.StrategicNews = append(doc.StrategicNews, newsFor(n))
	}

	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return Payload{}, fmt.Errorf("prompt: encode context: %w", err)
	}

	return Payload{
		System:  systemText(in.Weights, bands),
		Context: strings.TrimRight(string(pretty.Pretty(raw.Bytes())), "\n"),
		User:    userText(tickers, in.Budget),
		Tickers: tickers,
	}, nil
}

// SelectNews slices the buffer for the given mode. An empty mode means
// recent.
func SelectNews(buf []models.NewsItem, mode string, limit int) ([]models.NewsItem, error) {
	switch mode {
	case "", NewsModeRecent:
		if limit <= 0 {
			limit = DefaultRecentLimit
		}
		return relevance.Recent(buf, limit), nil
	case NewsModeRelevance:
		if limit <= 0 {
			limit = DefaultRelevanceLimit
		}
		return relevance.Top(buf, limit), nil
	default:
		return nil, fmt.Errorf("prompt: unknown news mode %q", mode)
	}
}

func marketFor(t models.TickerSnapshot) marketEntry {
	e := marketEntry{Ticker: t.Symbol, Status: t.Status}
	if !t.IsAvailable() {
		e.Status = models.StatusUnavailable
		e.Reason = t.Reason
		if e.Reason == "" {
			e.Reason = "no data"
		}
		return e
	}
	s := t.Snapshot
	e.Technicals = &technicals{
		Price:            s.Price,
		EMA50:            s.EMA50,
		IsStructuralBull: s.IsStructuralBull,
		MarketStructure:  s.MarketStructure,
		DebtRatio:        s.DebtRatio,
		Margins:          s.Margins,
		AsOf:             utils.FormatDateTimeIST(s.Timestamp),
	}
	return e
}

func newsFor(n models.NewsItem) newsEntry {
	e := newsEntry{
		Category:   n.Category,
		Title:      n.Title,
		Source:     n.Source,
		Relevance:  n.RelevanceScore,
		IsCritical: n.IsCritical,
	}
	if !n.Published.IsZero() {
		e.Published = utils.FormatDateTimeIST(n.Published)
	}
	return e
}

func bandRange(b models.Band) string {
	if b.Max >= 1 {
		return fmt.Sprintf(">= %.1f", b.Min)
	}
	if b.Min <= 0 {
		return fmt.Sprintf("< %.1f", b.Max)
	}
	return fmt.Sprintf("[%.1f, %.1f)", b.Min, b.Max)
}

func systemText(w Weights, bands []models.Band) string {
	var sb strings.Builder
	sb.WriteString(Persona)
	sb.WriteString("\n\nSCORING MODEL:\n")
	fmt.Fprintf(&sb, "- Trend (EMA-50 position and HH/HL structure): %s%%\n", pct(w.Trend))
	fmt.Fprintf(&sb, "- News catalysts (strategic_news, ORDER_WIN first): %s%%\n", pct(w.News))
	fmt.Fprintf(&sb, "- Fundamentals (debt_ratio, margins): %s%%\n", pct(w.Fundamentals))
	sb.WriteString("Each ticker gets a score in [0.00, 1.00].\n\nACTION BANDS:\n")
	for _, b := range bands {
		fmt.Fprintf(&sb, "- %s: score %s\n", b.Action, bandRange(b))
	}
	sb.WriteString("A ticker with status UNAVAILABLE must be scored 0.00 with action NO_SIP.")
	return sb.String()
}

func userText(tickers []string, budget decimal.Decimal) string {
	var sb strings.Builder
	sb.WriteString("Score every ticker in market_data and allocate this month's SIP.\n")
	sb.WriteString("Output exactly one line per ticker, in this format and nothing else on the line:\n")
	sb.WriteString("TICKER | SCORE=<0.00-1.00> | ACTION=<AGGRESSIVE|NORMAL|PAUSE|NO_SIP> | ALLOCATION=₹<amount>\n")
	if len(tickers) > 0 {
		fmt.Fprintf(&sb, "Tickers: %s\n", strings.Join(tickers, ", "))
	}
	fmt.Fprintf(&sb, "Constraint: the ALLOCATION values must sum to at most %s. ACTION must match the band for SCORE.\n",
		utils.FormatINR(budget))
	sb.WriteString("Then flag any news that is purely cosmetic with no commercial impact, ")
	sb.WriteString("and finish with a 3-sentence 'Strategic Alpha' summary for a Telegram alert.")
	return sb.String()
}
