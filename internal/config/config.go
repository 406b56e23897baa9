package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration.
type Config struct {
	General struct {
		Provider string `koanf:"provider"` // openai | googleai | anthropic | ollama
		Model    string `koanf:"model"`
	} `koanf:"general"`

	LLM struct {
		APIKey            string        `koanf:"api_key"`
		BaseURL           string        `koanf:"base_url"`
		Temperature       float64       `koanf:"temperature"`
		MaxTokens         int           `koanf:"max_tokens"`
		RequestsPerSecond float64       `koanf:"requests_per_second"`
		Timeout           time.Duration `koanf:"timeout"`
	} `koanf:"llm"`

	Retry struct {
		MaxAttempts int           `koanf:"max_attempts"`
		BaseDelay   time.Duration `koanf:"base_delay"`
		MaxDelay    time.Duration `koanf:"max_delay"`
		Multiplier  float64       `koanf:"multiplier"`
	} `koanf:"retry"`

	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`

	// Pricing maps model name to per-1k-token USD rates.
	Pricing map[string]ModelPricing `koanf:"pricing"`
}

// ModelPricing holds per-1k-token USD rates for one model.
type ModelPricing struct {
	PromptPer1K     float64 `koanf:"prompt_per_1k"`
	CompletionPer1K float64 `koanf:"completion_per_1k"`
}

// Load reads configuration from defaults, an optional TOML file, and
// DOCUFILL_-prefixed environment variables, in that order of precedence.
func Load(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Compiled-in defaults
	k.Load(confmap.Provider(map[string]interface{}{
		"general.provider":        "googleai",
		"general.model":           "gemini-1.5-flash",
		"llm.temperature":         0.2,
		"llm.max_tokens":          4096,
		"llm.requests_per_second": 2.0,
		"llm.timeout":             "90s",
		"retry.max_attempts":      3,
		"retry.base_delay":        "1s",
		"retry.max_delay":         "30s",
		"retry.multiplier":        2.0,
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try default locations
		defaultPaths := []string{"./docufill.toml", "$HOME/.docufill.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Environment variables with prefix DOCUFILL_ override everything
	k.Load(env.Provider("DOCUFILL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DOCUFILL_")), "_", ".", -1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}
