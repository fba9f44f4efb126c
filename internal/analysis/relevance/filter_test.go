package relevance

import (
	"fmt"
	"testing"
	"time"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

var watchlist = []string{"BHEL", "MTARTECH", "WALCHANNAG", "LT", "NTPC"}

func raw(title, link string) models.RawNewsItem {
	return models.RawNewsItem{Source: "test", Title: title, Link: link}
}

func TestEvaluateOrderWin(t *testing.T) {
	f := NewFilter(DefaultRules(watchlist))
	item, ok := f.Evaluate(raw("BHEL WINS ORDER FROM NPCIL", "https://x/1"), time.Now())
	if !ok {
		t.Fatal("expected item to be accepted")
	}
	if item.RelevanceScore != 12 {
		t.Errorf("score = %d, want 12", item.RelevanceScore)
	}
	if item.Category != models.CategoryOrderWin {
		t.Errorf("category = %s, want ORDER_WIN", item.Category)
	}
	if !item.IsCritical {
		t.Error("expected is_critical")
	}
	if !item.HasTag(models.CategoryNuclear) || !item.HasTag(models.CategoryCorporate) {
		t.Errorf("tags = %v, want NUCLEAR and CORPORATE", item.Tags)
	}
}

func TestEvaluateTable(t *testing.T) {
	f := NewFilter(DefaultRules(watchlist))
	tests := []struct {
		title    string
		accept   bool
		score    int
		category models.NewsCategory
		critical bool
	}{
		{"L&T bags contract for Mumbai metro", true, 9, models.CategoryOrderWin, true},
		{"Larsen & Toubro secures mega order", true, 9, models.CategoryOrderWin, true},
		{"Defence ministry floats nuclear tender", true, 7, models.CategoryStrategic, false},
		{"NTPC Q3 profit rises 12%", true, 5, models.CategoryStrategic, false},
		{"MTAR Technologies ships SMR components", true, 8, models.CategoryStrategic, false},
		{"AERB issues licensing guidelines", false, 3, "", false},
		{"Power sector outlook for 2027", false, 4, "", false},
		{"Q2 RESULT season opens with a whimper", false, 0, "", false},
		{"Bolt action shares climb", false, 0, "", false},
		{"NTPC shares see orderly trading", true, 5, models.CategoryStrategic, false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			item, ok := f.Evaluate(raw(tt.title, "https://x/"+tt.title), time.Now())
			if ok != tt.accept {
				t.Fatalf("accepted = %v, want %v (match %+v)", ok, tt.accept, f.MatchTitle(tt.title))
			}
			if got := f.MatchTitle(tt.title).Score(); got != tt.score {
				t.Errorf("score = %d, want %d", got, tt.score)
			}
			if !ok {
				return
			}
			if item.Category != tt.category {
				t.Errorf("category = %s, want %s", item.Category, tt.category)
			}
			if item.IsCritical != tt.critical {
				t.Errorf("is_critical = %v, want %v", item.IsCritical, tt.critical)
			}
		})
	}
}

func TestMatchTitleWordBoundaries(t *testing.T) {
	f := NewFilter(DefaultRules(watchlist))

	if m := f.MatchTitle("Company RESULTS beat street"); m.Ticker {
		t.Error("LT must not match inside RESULTS")
	}
	if m := f.MatchTitle("Fresh orders lift the sector"); !m.Impact {
		t.Error("ORDERS should count as an ORDER impact match")
	}
	if m := f.MatchTitle("NPCIL tendered two reactors"); !m.Impact {
		t.Error("TENDERED should count as a TENDER impact match")
	}
	if m := f.MatchTitle("NTPC shares see orderly trading"); m.Impact {
		t.Error("ORDERLY must not count as an ORDER impact match")
	}
	if m := f.MatchTitle("Smriti Irani visits plant"); m.Domain {
		t.Error("SMRITI must not count as an SMR domain match")
	}
	if m := f.MatchTitle("Small Modular Reactor push"); !m.Domain {
		t.Error("multi-word domain keyword should match")
	}
	if m := f.MatchTitle("lt, ntpc rally"); !m.Ticker {
		t.Error("ticker match should be case-insensitive and ignore punctuation")
	}
}

func TestMergeDedup(t *testing.T) {
	f := NewFilter(DefaultRules(watchlist))
	now := time.Now()

	buf, stats := f.Merge(nil, []models.RawNewsItem{
		raw("BHEL WINS ORDER FROM NPCIL", "https://x/dup"),
		raw("BHEL WINS ORDER FROM NPCIL", "https://x/dup"),
	}, now)
	if len(buf) != 1 {
		t.Fatalf("expected 1 item, got %d", len(buf))
	}
	if stats.Accepted != 1 || stats.Duplicates != 1 {
		t.Errorf("stats = %+v", stats)
	}

	buf, stats = f.Merge(buf, []models.RawNewsItem{
		raw("NTPC commissions new unit, secures power contract", "https://x/dup"),
	}, now)
	if len(buf) != 1 || stats.Duplicates != 1 {
		t.Fatalf("link already stored must be discarded: len=%d stats=%+v", len(buf), stats)
	}
	if buf[0].Title != "BHEL WINS ORDER FROM NPCIL" {
		t.Errorf("stored item replaced: %q", buf[0].Title)
	}
}

func TestMergeBufferBound(t *testing.T) {
	rules := DefaultRules(watchlist)
	rules.Capacity = 10
	f := NewFilter(rules)

	titles := []string{
		"BHEL WINS ORDER FROM NPCIL",         // 12
		"NTPC bags power contract",           // 9
		"Defence ministry floats SMR tender", // 7
		"LT profit rises",                    // 5
		"Atomic energy tender opens",         // 7
	}
	var buf []models.NewsItem
	var evictedMax int
	for i := 0; i < 25; i++ {
		title := titles[i%len(titles)]
		var stats MergeStats
		before := buf
		buf, stats = f.Merge(buf, []models.RawNewsItem{raw(title, fmt.Sprintf("https://x/%d", i))}, time.Now())
		if len(buf) > rules.Capacity {
			t.Fatalf("buffer exceeded capacity: %d", len(buf))
		}
		if stats.Evicted > 0 {
			kept := make(map[string]bool)
			for _, it := range buf {
				kept[it.Link] = true
			}
			candidates := append(before, models.NewsItem{Link: fmt.Sprintf("https://x/%d", i), RelevanceScore: f.MatchTitle(title).Score()})
			for _, it := range candidates {
				if !kept[it.Link] && it.RelevanceScore > evictedMax {
					evictedMax = it.RelevanceScore
				}
			}
		}
	}

	if len(buf) != rules.Capacity {
		t.Fatalf("expected %d items, got %d", rules.Capacity, len(buf))
	}
	for i, it := range buf {
		if it.RelevanceScore < evictedMax {
			t.Errorf("retained item %d has score %d below evicted %d", i, it.RelevanceScore, evictedMax)
		}
		if i > 0 && buf[i-1].RelevanceScore < it.RelevanceScore {
			t.Errorf("buffer not sorted at %d", i)
		}
	}
}

func TestMergeTiesEvictOldest(t *testing.T) {
	rules := DefaultRules(watchlist)
	rules.Capacity = 1
	f := NewFilter(rules)

	buf, _ := f.Merge(nil, []models.RawNewsItem{raw("NTPC profit rises", "https://x/old")}, time.Now())
	buf, stats := f.Merge(buf, []models.RawNewsItem{raw("BHEL profit rises", "https://x/new")}, time.Now())
	if len(buf) != 1 || buf[0].Link != "https://x/new" {
		t.Fatalf("expected newer tie to survive, got %+v", buf)
	}
	if stats.Evicted != 1 {
		t.Errorf("evicted = %d, want 1", stats.Evicted)
	}
}

func TestRecentAndTop(t *testing.T) {
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	buf := []models.NewsItem{
		{Link: "a", RelevanceScore: 12, FetchedAt: base},
		{Link: "b", RelevanceScore: 9, FetchedAt: base.Add(2 * time.Hour)},
		{Link: "c", RelevanceScore: 5, FetchedAt: base.Add(time.Hour)},
	}

	recent := Recent(buf, 2)
	if len(recent) != 2 || recent[0].Link != "b" || recent[1].Link != "c" {
		t.Errorf("Recent = %+v", recent)
	}
	if buf[0].Link != "a" {
		t.Error("Recent must not reorder its input")
	}
	if top := Top(buf, 1); len(top) != 1 || top[0].Link != "a" {
		t.Errorf("Top = %+v", top)
	}
	if top := Top(buf, 0); len(top) != 3 {
		t.Errorf("Top(0) should return everything, got %d", len(top))
	}
}
