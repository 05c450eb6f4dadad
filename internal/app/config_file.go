package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema. Sections mirror the
// flag prefixes.
type FileConfig struct {
	Search struct {
		BaseURL        string   `yaml:"base" json:"base"`
		APIKey         string   `yaml:"key" json:"key"`
		IncludeDomains []string `yaml:"includeDomains" json:"includeDomains"`
	} `yaml:"search" json:"search"`

	LLM struct {
		Provider     string `yaml:"provider" json:"provider"`
		BaseURL      string `yaml:"base" json:"base"`
		Model        string `yaml:"model" json:"model"`
		APIKey       string `yaml:"key" json:"key"`
		SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt"`
	} `yaml:"llm" json:"llm"`

	Browser struct {
		Driver    string `yaml:"driver" json:"driver"`
		Bin       string `yaml:"bin" json:"bin"`
		Show      bool   `yaml:"show" json:"show"`
		UserAgent string `yaml:"userAgent" json:"userAgent"`
	} `yaml:"browser" json:"browser"`

	Extract struct {
		Selectors         []string      `yaml:"selectors" json:"selectors"`
		MaxChars          int           `yaml:"maxChars" json:"maxChars"`
		NavigationTimeout time.Duration `yaml:"navigationTimeout" json:"navigationTimeout"`
		ReadyTimeout      time.Duration `yaml:"readyTimeout" json:"readyTimeout"`
	} `yaml:"extract" json:"extract"`

	Pipeline struct {
		MaxSources int           `yaml:"maxSources" json:"maxSources"`
		Delay      time.Duration `yaml:"delay" json:"delay"`
	} `yaml:"pipeline" json:"pipeline"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Output struct {
		Dir      string `yaml:"dir" json:"dir"`
		Format   string `yaml:"format" json:"format"`
		Manifest bool   `yaml:"manifest" json:"manifest"`
	} `yaml:"output" json:"output"`

	Verbose bool   `yaml:"verbose" json:"verbose"`
	LogFile string `yaml:"logFile" json:"logFile"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc onto fields still unset in cfg.
// Flags and environment have already been applied, so they keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if *dst == 0 && v > 0 {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 && v > 0 {
			*dst = v
		}
	}
	flag := func(dst *bool, v bool) {
		if !*dst && v {
			*dst = true
		}
	}
	list := func(dst *[]string, v []string) {
		if len(*dst) == 0 && len(v) > 0 {
			*dst = append([]string{}, v...)
		}
	}

	str(&cfg.TavilyBaseURL, fc.Search.BaseURL)
	str(&cfg.TavilyAPIKey, fc.Search.APIKey)
	list(&cfg.IncludeDomains, fc.Search.IncludeDomains)

	str(&cfg.LLMProvider, fc.LLM.Provider)
	str(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	str(&cfg.LLMModel, fc.LLM.Model)
	str(&cfg.LLMAPIKey, fc.LLM.APIKey)
	str(&cfg.SystemPrompt, fc.LLM.SystemPrompt)

	str(&cfg.Browser, fc.Browser.Driver)
	str(&cfg.BrowserBin, fc.Browser.Bin)
	flag(&cfg.ShowBrowser, fc.Browser.Show)
	str(&cfg.UserAgent, fc.Browser.UserAgent)

	list(&cfg.Selectors, fc.Extract.Selectors)
	num(&cfg.MaxChars, fc.Extract.MaxChars)
	dur(&cfg.NavigationTimeout, fc.Extract.NavigationTimeout)
	dur(&cfg.ReadyTimeout, fc.Extract.ReadyTimeout)

	num(&cfg.MaxSources, fc.Pipeline.MaxSources)
	dur(&cfg.Delay, fc.Pipeline.Delay)

	str(&cfg.CacheDir, fc.Cache.Dir)
	dur(&cfg.CacheMaxAge, fc.Cache.MaxAge)
	flag(&cfg.CacheClear, fc.Cache.Clear)
	flag(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)

	str(&cfg.OutputDir, fc.Output.Dir)
	str(&cfg.Format, fc.Output.Format)
	flag(&cfg.WriteManifest, fc.Output.Manifest)

	flag(&cfg.Verbose, fc.Verbose)
	str(&cfg.LogFile, fc.LogFile)
}
