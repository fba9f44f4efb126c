package models

import "time"

// NewsCategory classifies a stored news item for prompt prioritisation.
type NewsCategory string

const (
	CategoryOrderWin  NewsCategory = "ORDER_WIN"
	CategoryStrategic NewsCategory = "STRATEGIC"
	CategoryCorporate NewsCategory = "CORPORATE"
	CategoryNuclear   NewsCategory = "NUCLEAR"
)

// RawNewsItem is one entry as delivered by a feed, before scoring.
type RawNewsItem struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary,omitempty"`
	Published time.Time `json:"published"`
}

// NewsItem is a scored, accepted news entry. Link is the dedup key.
type NewsItem struct {
	Source         string         `json:"source"`
	Category       NewsCategory   `json:"category"`
	Tags           []NewsCategory `json:"tags,omitempty"`
	Title          string         `json:"title"`
	Link           string         `json:"link"`
	Published      time.Time      `json:"published"`
	FetchedAt      time.Time      `json:"fetched_at"`
	RelevanceScore int            `json:"relevance_score"`
	IsCritical     bool           `json:"is_critical"`
}

// HasTag reports whether the item carries the given secondary tag.
func (n NewsItem) HasTag(c NewsCategory) bool {
	for _, t := range n.Tags {
		if t == c {
			return true
		}
	}
	return false
}
