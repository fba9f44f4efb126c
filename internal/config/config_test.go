package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var secretEnv = []string{
	"STOCKWATCHER_LLM_GROQ_KEY", "GROQ_API_KEY",
	"STOCKWATCHER_LLM_OPENAI_KEY", "OPENAI_API_KEY",
	"STOCKWATCHER_TELEGRAM_TOKEN", "TELEGRAM_TOKEN",
	"STOCKWATCHER_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID",
}

func clearSecrets(t *testing.T) {
	t.Helper()
	for _, e := range secretEnv {
		t.Setenv(e, "")
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearSecrets(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LLM.Primary != "groq" {
		t.Errorf("LLM.Primary: got %q, want groq", cfg.LLM.Primary)
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("LLM.Model: got %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.1 {
		t.Errorf("LLM.Temperature: got %f, want 0.1", cfg.LLM.Temperature)
	}
	if cfg.Telegram.ChunkLimit != 3500 || cfg.Telegram.ChunkDelayMs != 1200 {
		t.Errorf("Telegram chunking: got %d/%d", cfg.Telegram.ChunkLimit, cfg.Telegram.ChunkDelayMs)
	}
	if len(cfg.Watchlist.Tickers) != 5 || cfg.Watchlist.Tickers[0] != "BHEL.NS" {
		t.Errorf("Watchlist.Tickers: got %v", cfg.Watchlist.Tickers)
	}
	if len(cfg.News.Feeds) != 4 || cfg.News.Feeds[0].Name != "Moneycontrol_Business" {
		t.Errorf("News.Feeds: got %+v", cfg.News.Feeds)
	}
	if cfg.News.AcceptThreshold != 5 || cfg.News.CriticalThreshold != 9 || cfg.News.Capacity != 80 {
		t.Errorf("News thresholds: got %+v", cfg.News)
	}
	if cfg.Storage.Driver != "json" || cfg.Storage.Dir != "data" {
		t.Errorf("Storage: got %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q", cfg.Logging.Level)
	}

	b, err := cfg.Budget()
	if err != nil || b.String() != "20000" {
		t.Errorf("Budget: got %s, %v", b, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearSecrets(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
watchlist:
  tickers: [BHEL.NS, LT.NS]
scoring:
  monthly_budget: "25,000"
  weights_preset: momentum
storage:
  driver: sqlite
  dir: /tmp/sw
telegram:
  chat_id: "-100123"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile error: %v", err)
	}
	if len(cfg.Watchlist.Tickers) != 2 {
		t.Errorf("Tickers: got %v", cfg.Watchlist.Tickers)
	}
	if b, _ := cfg.Budget(); b.String() != "25000" {
		t.Errorf("Budget: got %s, want 25000", b)
	}
	if cfg.Scoring.WeightsPreset != "momentum" || cfg.Storage.Driver != "sqlite" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Scoring, cfg.Storage)
	}
	if cfg.Telegram.ChatID != "-100123" {
		t.Errorf("ChatID: got %q", cfg.Telegram.ChatID)
	}
	// untouched sections keep defaults
	if cfg.News.Capacity != 80 {
		t.Errorf("News.Capacity: got %d, want 80", cfg.News.Capacity)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// ── Env overrides ──

func TestBareEnvSecrets(t *testing.T) {
	clearSecrets(t)
	t.Setenv("GROQ_API_KEY", "gsk_test_1234567890")
	t.Setenv("TELEGRAM_TOKEN", "123:abcdefghijk")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg := Default()
	overrideFromEnv(cfg)
	if cfg.LLM.GroqKey != "gsk_test_1234567890" || cfg.Telegram.Token != "123:abcdefghijk" || cfg.Telegram.ChatID != "42" {
		t.Errorf("bare env not applied: %+v %+v", cfg.LLM, cfg.Telegram)
	}
	if err := cfg.RequireOracle(); err != nil {
		t.Errorf("RequireOracle: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		t.Errorf("RequireTelegram: %v", err)
	}
}

func TestPrefixedEnvWins(t *testing.T) {
	clearSecrets(t)
	t.Setenv("TELEGRAM_CHAT_ID", "1")
	t.Setenv("STOCKWATCHER_TELEGRAM_CHAT_ID", "2")

	cfg := Default()
	overrideFromEnv(cfg)
	if cfg.Telegram.ChatID != "2" {
		t.Errorf("ChatID: got %q, want 2", cfg.Telegram.ChatID)
	}
}

func TestAutomaticEnv(t *testing.T) {
	clearSecrets(t)
	t.Chdir(t.TempDir())
	t.Setenv("STOCKWATCHER_NEWS_MODE", "relevance")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.News.Mode != "relevance" {
		t.Errorf("News.Mode: got %q, want relevance", cfg.News.Mode)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearSecrets(t)
	os.Unsetenv("TELEGRAM_CHAT_ID")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TELEGRAM_CHAT_ID=777\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	defer os.Unsetenv("TELEGRAM_CHAT_ID")
	if got := os.Getenv("TELEGRAM_CHAT_ID"); got != "777" {
		t.Errorf("TELEGRAM_CHAT_ID: got %q, want 777", got)
	}
}

// ── Validation ──

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Scoring.MonthlyBudget = "-5"
	cfg.Telegram.ChunkLimit = 4090
	cfg.Storage.Driver = "redis"
	cfg.News.Mode = "latest"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"monthly_budget", "chunk_limit", "storage.driver", "news.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateCustomWeights(t *testing.T) {
	cfg := Default()
	cfg.Scoring.WeightsPreset = "custom"
	cfg.Scoring.Trend, cfg.Scoring.News, cfg.Scoring.Fundamentals = 0.5, 0.5, 0.5
	if err := cfg.Validate(); err == nil {
		t.Error("weights summing to 1.5 should fail")
	}
	cfg.Scoring.Fundamentals = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("0.5/0.5/0 should validate: %v", err)
	}
}

func TestRequireTelegramMissing(t *testing.T) {
	cfg := Default()
	err := cfg.RequireTelegram()
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if !strings.Contains(err.Error(), "TELEGRAM_TOKEN") || !strings.Contains(err.Error(), "TELEGRAM_CHAT_ID") {
		t.Errorf("error should name both variables: %v", err)
	}
}

func TestRequireOracleOllamaNeedsNoKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.Primary = "ollama"
	if err := cfg.RequireOracle(); err != nil {
		t.Errorf("ollama needs no key: %v", err)
	}
	cfg.LLM.Primary = "groq"
	if err := cfg.RequireOracle(); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("groq without key: got %v", err)
	}
}

// ── Keys ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"short", "***"},
		{"12345678", "***"},
		{"gsk_abcdefghijklmnop", "gsk...nop"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.in); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckAPIKeys(t *testing.T) {
	clearSecrets(t)
	t.Setenv("TELEGRAM_TOKEN", "987654:secret-token")

	cfg := Default()
	cfg.LLM.GroqKey = "gsk_from_config_file"
	overrideFromEnv(cfg)

	statuses := CheckAPIKeys(cfg)
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}
	byName := map[string]KeyStatus{}
	for _, s := range statuses {
		byName[s.Name] = s
	}
	if s := byName["Groq API Key"]; s.Source != KeySourceConfig || !s.IsSet {
		t.Errorf("groq: %+v", s)
	}
	if s := byName["Telegram Bot Token"]; s.Source != KeySourceEnv || s.Masked != "987...ken" {
		t.Errorf("telegram token: %+v", s)
	}
	if s := byName["Telegram Chat ID"]; s.Source != KeySourceNone || s.IsSet {
		t.Errorf("chat id: %+v", s)
	}
}

func TestYAMLMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.LLM.GroqKey = "gsk_supersecretvalue"
	cfg.Telegram.Token = "123456:telegram-secret"

	out, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if strings.Contains(s, "supersecret") || strings.Contains(s, "telegram-secret") {
		t.Errorf("secrets leaked:\n%s", s)
	}
	if !strings.Contains(s, "gsk...lue") || !strings.Contains(s, "monthly_budget") {
		t.Errorf("unexpected dump:\n%s", s)
	}
	if cfg.LLM.GroqKey != "gsk_supersecretvalue" {
		t.Error("YAML must not mutate the receiver")
	}
}
