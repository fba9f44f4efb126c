package datasource

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/AnmolBhardwaj/StockWatcher/internal/infra"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

// Feed is one RSS/Atom source.
type Feed struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DefaultFeeds are the business, defence, energy and nuclear-policy feeds
// the watchlist is tuned for.
var DefaultFeeds = []Feed{
	{Name: "Moneycontrol_Business", URL: "https://www.moneycontrol.com/rss/business.xml"},
	{Name: "ET_Defence", URL: "https://b2b.economictimes.indiatimes.com/rss/defence"},
	{Name: "ET_Energy", URL: "https://energy.economictimes.indiatimes.com/rss/power"},
	{Name: "Nuclear_Strategic", URL: "https://news.google.com/rss/search?q=Nuclear+Power+India+SMR+AERB+SHANTI+Bill&hl=en-IN&gl=IN&ceid=IN:en"},
}

// RSS implements FeedProvider with gofeed.
type RSS struct {
	fetcher fetcher
	parser  *gofeed.Parser
}

// RSSOption configures the feed provider.
type RSSOption func(*RSS)

// WithRSSHTTPClient sets the HTTP client.
func WithRSSHTTPClient(c *http.Client) RSSOption {
	return func(r *RSS) { r.fetcher.client = c }
}

// WithRSSRateLimiter shares a limiter across providers.
func WithRSSRateLimiter(rl *infra.RateLimiter) RSSOption {
	return func(r *RSS) { r.fetcher.limiter = rl }
}

// NewRSS creates a feed provider.
func NewRSS(opts ...RSSOption) *RSS {
	r := &RSS{
		fetcher: fetcher{
			client:  NewHTTPClient(30 * time.Second),
			limiter: infra.NewRateLimiter(2, time.Second), // conservative: 2 req/s
		},
		parser: gofeed.NewParser(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch downloads and parses one feed. Items without a title or link are
// skipped. Any transport or parse failure is wrapped in ErrFeedUnavailable.
func (r *RSS) Fetch(ctx context.Context, feed Feed) ([]models.RawNewsItem, error) {
	data, err := r.fetcher.get(ctx, feed.URL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml, text/xml, */*",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, feed.Name, err)
	}

	parsed, err := r.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrFeedUnavailable, feed.Name, err)
	}

	items := make([]models.RawNewsItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		title := strings.TrimSpace(cleanHTML(it.Title))
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}
		item := models.RawNewsItem{
			Source:  feed.Name,
			Title:   title,
			Link:    link,
			Summary: cleanHTML(it.Description),
		}
		switch {
		case it.PublishedParsed != nil:
			item.Published = it.PublishedParsed.UTC()
		case it.UpdatedParsed != nil:
			item.Published = it.UpdatedParsed.UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" || !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
