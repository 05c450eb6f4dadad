package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/policygen/internal/export"
	"github.com/hyperifyio/policygen/internal/extract"
	"github.com/hyperifyio/policygen/internal/llm"
	"github.com/hyperifyio/policygen/internal/pipeline"
)

const (
	BrowserRod    = "rod"
	BrowserStatic = "static"

	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultOutputDir      = "."
)

// Config holds runtime configuration for the application.
type Config struct {
	// Request
	PolicyType string
	Category   string
	Country    string
	Region     string

	// Output
	OutputDir     string
	OutputPath    string
	Format        string
	WriteManifest bool

	// Search
	TavilyAPIKey   string
	TavilyBaseURL  string
	IncludeDomains []string

	// LLM
	LLMProvider  string
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	SystemPrompt string

	// Browser and extraction
	Browser           string
	BrowserBin        string
	ShowBrowser       bool
	UserAgent         string
	Selectors         []string
	MaxSources        int
	MaxChars          int
	Delay             time.Duration
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// Logging
	Verbose bool
	LogFile string
}

// ApplyDefaults fills every field still unset after flags, environment and
// config file have been applied.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = llm.ProviderOpenAI
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = llm.DefaultModel
		if strings.EqualFold(cfg.LLMProvider, llm.ProviderAnthropic) {
			cfg.LLMModel = DefaultAnthropicModel
		}
	}
	if cfg.Browser == "" {
		cfg.Browser = BrowserRod
	}
	if cfg.Format == "" {
		cfg.Format = string(export.FormatText)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.MaxSources == 0 {
		cfg.MaxSources = pipeline.DefaultMaxSources
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = extract.DefaultMaxChars
	}
	if cfg.Delay == 0 {
		cfg.Delay = pipeline.DefaultDelay
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = extract.DefaultNavigationTimeout
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = extract.DefaultReadyTimeout
	}
}

// ValidateConfig rejects settings no run can succeed with. Missing API keys
// are left to the pipeline, which reports them before any external call.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.PolicyType) == "" {
		return errors.New("config: a policy is required (--policy)")
	}
	if strings.TrimSpace(cfg.Country) == "" {
		return errors.New("config: a country or region is required (--country)")
	}
	if _, err := export.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(cfg.Browser) {
	case BrowserRod, BrowserStatic:
	default:
		return fmt.Errorf("config: unknown browser %q (want rod or static)", cfg.Browser)
	}
	if cfg.MaxSources < 0 || cfg.MaxChars < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
