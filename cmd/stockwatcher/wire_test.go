package main

import (
	"errors"
	"testing"

	"github.com/AnmolBhardwaj/StockWatcher/internal/config"
	"github.com/AnmolBhardwaj/StockWatcher/internal/datasource"
	"github.com/AnmolBhardwaj/StockWatcher/internal/prompt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Default()
	c.Storage.Dir = t.TempDir()
	return c
}

func TestWeightsFrom(t *testing.T) {
	w, err := weightsFrom(config.ScoringConfig{WeightsPreset: prompt.PresetMomentum})
	if err != nil || w != prompt.MomentumWeights {
		t.Fatalf("momentum preset: got %v, %v", w, err)
	}

	custom := config.ScoringConfig{WeightsPreset: prompt.PresetCustom, Trend: 0.5, News: 0.25, Fundamentals: 0.25}
	w, err = weightsFrom(custom)
	if err != nil || w.Trend != 0.5 {
		t.Fatalf("custom weights: got %v, %v", w, err)
	}

	custom.Fundamentals = 0.5
	if _, err := weightsFrom(custom); !errors.Is(err, prompt.ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestFeedsFrom(t *testing.T) {
	if got := feedsFrom(nil); len(got) != len(datasource.DefaultFeeds) {
		t.Errorf("empty config should use default feeds, got %d", len(got))
	}
	got := feedsFrom([]config.FeedConfig{{Name: "Local", URL: "http://localhost/rss"}})
	if len(got) != 1 || got[0].Name != "Local" || got[0].URL != "http://localhost/rss" {
		t.Errorf("feedsFrom = %+v", got)
	}
}

func TestRulesFromOverrides(t *testing.T) {
	c := testConfig(t)
	c.News.ImpactKeywords = []string{"ORDER"}
	c.News.Capacity = 10

	r := rulesFrom(c)
	if len(r.ImpactKeywords) != 1 || r.Capacity != 10 {
		t.Errorf("rules = %+v", r)
	}
	if len(r.DomainKeywords) == 0 {
		t.Error("domain keywords should fall back to defaults")
	}
}

func TestBuildAppCollectNeedsNoCredentials(t *testing.T) {
	c := testConfig(t)
	c.LLM.GroqKey = ""
	c.Telegram.Token = ""

	a, err := buildApp(c, stageCollect)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()
	if a.pipeline == nil || a.store == nil || a.router != nil {
		t.Errorf("unexpected app: %+v", a)
	}
}

func TestBuildAppOracleRequiresKey(t *testing.T) {
	c := testConfig(t)
	c.LLM.Primary = "groq"
	c.LLM.GroqKey = ""

	if _, err := buildApp(c, stageOracle); !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}

func TestBuildAppDispatchRequiresTelegram(t *testing.T) {
	c := testConfig(t)
	c.LLM.GroqKey = "gsk_test"
	c.Telegram.Token = ""

	if _, err := buildApp(c, stageDispatch); !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
}
