// Package relevance scores feed headlines against the watchlist and keeps
// the bounded, relevance-sorted news buffer.
package relevance

import (
	"sort"
	"strings"
	"time"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/utils"
)

const (
	TickerWeight = 5
	ImpactWeight = 4
	DomainWeight = 3

	DefaultAcceptThreshold   = 5
	DefaultCriticalThreshold = 9
	DefaultCapacity          = 80
)

// DefaultImpactKeywords are the high-impact verbs and sector words.
var DefaultImpactKeywords = []string{
	"ORDER", "CONTRACT", "TENDER", "WINS", "BAGS", "SECURES",
	"DEFENCE", "INFRA", "POWER",
}

// DefaultDomainKeywords track the nuclear regulatory context.
var DefaultDomainKeywords = []string{
	"NUCLEAR", "SMR", "SMALL MODULAR REACTOR", "AERB", "NPCIL",
	"SHANTI BILL", "ATOMIC ENERGY", "KUDANKULAM", "KAIGA",
}

// Rules is the immutable configuration of a Filter.
type Rules struct {
	Tickers           []string
	ImpactKeywords    []string
	DomainKeywords    []string
	AcceptThreshold   int
	CriticalThreshold int
	Capacity          int
}

// DefaultRules returns the stock rule set for the given watchlist.
func DefaultRules(tickers []string) Rules {
	return Rules{
		Tickers:           tickers,
		ImpactKeywords:    DefaultImpactKeywords,
		DomainKeywords:    DefaultDomainKeywords,
		AcceptThreshold:   DefaultAcceptThreshold,
		CriticalThreshold: DefaultCriticalThreshold,
		Capacity:          DefaultCapacity,
	}
}

// Filter evaluates raw feed items. Safe for concurrent use.
type Filter struct {
	rules  Rules
	names  []string // normalised ticker names, whole-word matched
	impact []string
	domain []string
}

// NewFilter builds a Filter. Zero thresholds and capacity take defaults.
func NewFilter(r Rules) *Filter {
	if r.AcceptThreshold <= 0 {
		r.AcceptThreshold = DefaultAcceptThreshold
	}
	if r.CriticalThreshold <= 0 {
		r.CriticalThreshold = DefaultCriticalThreshold
	}
	if r.Capacity <= 0 {
		r.Capacity = DefaultCapacity
	}

	f := &Filter{rules: r}
	seen := make(map[string]bool)
	for _, t := range r.Tickers {
		for _, name := range utils.HeadlineNames(t) {
			n := normalize(name)
			if n != "" && !seen[n] {
				seen[n] = true
				f.names = append(f.names, n)
			}
		}
	}
	f.impact = inflectAll(normalizeAll(r.ImpactKeywords))
	f.domain = inflectAll(normalizeAll(r.DomainKeywords))
	return f
}

// Rules returns the filter's configuration.
func (f *Filter) Rules() Rules { return f.rules }

// Match is the per-category outcome of scoring one title.
type Match struct {
	Ticker bool
	Impact bool
	Domain bool
}

// Score returns the additive relevance score for the match.
func (m Match) Score() int {
	s := 0
	if m.Ticker {
		s += TickerWeight
	}
	if m.Impact {
		s += ImpactWeight
	}
	if m.Domain {
		s += DomainWeight
	}
	return s
}

// MatchTitle tests a headline against the three keyword categories.
func (f *Filter) MatchTitle(title string) Match {
	padded := " " + normalize(title) + " "
	return Match{
		Ticker: containsWord(padded, f.names),
		Impact: containsWord(padded, f.impact),
		Domain: containsWord(padded, f.domain),
	}
}

// Evaluate scores a raw item and reports whether it is accepted.
func (f *Filter) Evaluate(raw models.RawNewsItem, now time.Time) (models.NewsItem, bool) {
	m := f.MatchTitle(raw.Title)
	score := m.Score()

	var category models.NewsCategory
	switch {
	case m.Ticker && m.Impact:
		category = models.CategoryOrderWin
	case score >= f.rules.AcceptThreshold:
		category = models.CategoryStrategic
	default:
		return models.NewsItem{}, false
	}

	item := models.NewsItem{
		Source:         raw.Source,
		Category:       category,
		Title:          strings.TrimSpace(raw.Title),
		Link:           raw.Link,
		Published:      raw.Published,
		FetchedAt:      now,
		RelevanceScore: score,
		IsCritical:     score >= f.rules.CriticalThreshold,
	}
	if m.Domain {
		item.Tags = append(item.Tags, models.CategoryNuclear)
	}
	if m.Ticker {
		item.Tags = append(item.Tags, models.CategoryCorporate)
	}
	return item, true
}

// MergeStats summarises one Merge call.
type MergeStats struct {
	Seen       int `json:"seen"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Discarded  int `json:"discarded"`
	Evicted    int `json:"evicted"`
	Critical   int `json:"critical"`
}

// Merge folds incoming raw items into the existing buffer. Items whose link
// is already buffered (or repeated within the batch) are dropped, accepted
// items are placed ahead of older ones, the buffer is stable-sorted by
// descending score and cut to capacity. On equal scores newer items rank
// first, so the oldest are evicted.
func (f *Filter) Merge(existing []models.NewsItem, incoming []models.RawNewsItem, now time.Time) ([]models.NewsItem, MergeStats) {
	var stats MergeStats
	links := make(map[string]bool, len(existing)+len(incoming))

	kept := make([]models.NewsItem, 0, len(existing))
	for _, item := range existing {
		if item.Link == "" || links[item.Link] {
			continue
		}
		links[item.Link] = true
		kept = append(kept, item)
	}

	var accepted []models.NewsItem
	for _, raw := range incoming {
		stats.Seen++
		if raw.Link == "" || links[raw.Link] {
			stats.Duplicates++
			continue
		}
		item, ok := f.Evaluate(raw, now)
		if !ok {
			stats.Discarded++
			continue
		}
		links[raw.Link] = true
		accepted = append(accepted, item)
		stats.Accepted++
		if item.IsCritical {
			stats.Critical++
		}
	}

	buf := append(accepted, kept...)
	sort.SliceStable(buf, func(i, j int) bool {
		return buf[i].RelevanceScore > buf[j].RelevanceScore
	})
	if len(buf) > f.rules.Capacity {
		stats.Evicted = len(buf) - f.rules.Capacity
		buf = buf[:f.rules.Capacity]
	}
	return buf, stats
}

// Top returns the first n items of a sorted buffer.
func Top(buf []models.NewsItem, n int) []models.NewsItem {
	if n <= 0 || n >= len(buf) {
		return buf
	}
	return buf[:n]
}

// Recent returns the n most recently fetched items, newest first.
func Recent(buf []models.NewsItem, n int) []models.NewsItem {
	out := make([]models.NewsItem, len(buf))
	copy(out, buf)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FetchedAt.After(out[j].FetchedAt)
	})
	return Top(out, n)
}

// normalize upper-cases s and blanks every rune outside [A-Z0-9&].
func normalize(s string) string {
	upper := strings.ToUpper(s)
	b := make([]rune, 0, len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '&' {
			b = append(b, r)
		} else {
			b = append(b, ' ')
		}
	}
	return strings.Join(strings.Fields(string(b)), " ")
}

func normalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := normalize(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// containsWord reports whether any name occurs as whole words in padded.
func containsWord(padded string, names []string) bool {
	for _, n := range names {
		if strings.Contains(padded, " "+n+" ") {
			return true
		}
	}
	return false
}

// inflections are the word endings accepted after a keyword, so ORDER
// matches ORDERS but not ORDERLY.
var inflections = []string{"", "S", "ES", "ED", "ING"}

// inflectAll expands every keyword with its inflected forms.
func inflectAll(keywords []string) []string {
	out := make([]string, 0, len(keywords)*len(inflections))
	for _, k := range keywords {
		for _, suffix := range inflections {
			out = append(out, k+suffix)
		}
	}
	return out
}
