package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "gsk...abc"
}

// CheckAPIKeys returns the status of all secrets the cycle can use.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("Groq API Key", cfg.LLM.GroqKey, "STOCKWATCHER_LLM_GROQ_KEY", "GROQ_API_KEY"),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "STOCKWATCHER_LLM_OPENAI_KEY", "OPENAI_API_KEY"),
		checkKey("Telegram Bot Token", cfg.Telegram.Token, "STOCKWATCHER_TELEGRAM_TOKEN", "TELEGRAM_TOKEN"),
		checkKey("Telegram Chat ID", cfg.Telegram.ChatID, "STOCKWATCHER_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value == "" {
		status.Source = KeySourceNone
		return status
	}

	status.Source = KeySourceConfig
	for _, e := range envVars {
		if os.Getenv(e) != "" {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// Masked returns a copy of cfg with every secret masked.
func (c *Config) Masked() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return maskKey(s)
	}
	out.LLM.GroqKey = mask(c.LLM.GroqKey)
	out.LLM.OpenAIKey = mask(c.LLM.OpenAIKey)
	out.Telegram.Token = mask(c.Telegram.Token)
	return &out
}

// YAML renders the effective configuration with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Masked())
}
