// Package app wires configuration into the policy pipeline and writes the
// generated document to disk.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/policygen/internal/browser"
	"github.com/hyperifyio/policygen/internal/cache"
	"github.com/hyperifyio/policygen/internal/catalog"
	"github.com/hyperifyio/policygen/internal/export"
	"github.com/hyperifyio/policygen/internal/extract"
	"github.com/hyperifyio/policygen/internal/fetch"
	"github.com/hyperifyio/policygen/internal/llm"
	"github.com/hyperifyio/policygen/internal/pipeline"
	"github.com/hyperifyio/policygen/internal/search"
	"github.com/hyperifyio/policygen/internal/synth"
)

// StdoutPath as OutputPath writes the document to the App's stdout.
const StdoutPath = "-"

type App struct {
	cfg       Config
	format    export.Format
	http      *http.Client
	httpCache *cache.HTTPCache
	llmCache  *cache.LLMCache
	pipe      *pipeline.Pipeline
	stdout    io.Writer
}

// Output describes a finished run.
type Output struct {
	Result       *pipeline.Result
	Path         string
	ManifestPath string
}

// New validates cfg and builds every stage. It makes no network calls.
func New(ctx context.Context, cfg Config) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	format, _ := export.ParseFormat(cfg.Format)

	a := &App{cfg: cfg, format: format, http: newHTTPClient(), stdout: os.Stdout}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			// Purge failures only cost disk space; do not fail startup.
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("count", n).Msg("purged stale cache entries")
			}
		}
		a.httpCache = &cache.HTTPCache{Dir: filepath.Join(cfg.CacheDir, "http"), StrictPerms: cfg.CacheStrictPerms}
		a.llmCache = &cache.LLMCache{Dir: filepath.Join(cfg.CacheDir, "llm"), StrictPerms: cfg.CacheStrictPerms}
	}

	client, err := llm.New(llm.Options{
		Provider:   cfg.LLMProvider,
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		HTTPClient: a.http,
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a.pipe = &pipeline.Pipeline{
		Discovery: &search.Discoverer{Provider: &search.Tavily{
			APIKey:         cfg.TavilyAPIKey,
			BaseURL:        cfg.TavilyBaseURL,
			HTTPClient:     a.http,
			IncludeDomains: cfg.IncludeDomains,
		}},
		Browser: a.browserFactory(),
		Extractor: extract.Extractor{
			Strategies:        cfg.Selectors,
			MaxChars:          cfg.MaxChars,
			NavigationTimeout: cfg.NavigationTimeout,
			ReadyTimeout:      cfg.ReadyTimeout,
		},
		Synthesizer: &synth.Synthesizer{
			Client:       client,
			Model:        cfg.LLMModel,
			APIKey:       cfg.LLMAPIKey,
			Cache:        a.llmCache,
			SystemPrompt: cfg.SystemPrompt,
		},
		Credentials: pipeline.Credentials{SearchAPIKey: cfg.TavilyAPIKey, LLMAPIKey: cfg.LLMAPIKey},
		MaxSources:  cfg.MaxSources,
		Delay:       cfg.Delay,
		Observer:    logProgress,
	}
	return a, nil
}

func (a *App) browserFactory() browser.Factory {
	ua := a.cfg.UserAgent
	if ua == "" {
		ua = browser.DefaultUserAgent
	}
	if strings.EqualFold(a.cfg.Browser, BrowserStatic) {
		return browser.NewStaticFactory(&fetch.Client{
			HTTPClient: a.http,
			UserAgent:  ua,
			Cache:      a.httpCache,
		})
	}
	return browser.NewRodFactory(browser.RodOptions{
		Bin:        a.cfg.BrowserBin,
		ShowWindow: a.cfg.ShowBrowser,
		UserAgent:  ua,
	})
}

// SetObserver replaces the default progress logger.
func (a *App) SetObserver(o pipeline.Observer) { a.pipe.Observer = o }

// SetStdout redirects output written for StdoutPath.
func (a *App) SetStdout(w io.Writer) { a.stdout = w }

func (a *App) Close() {
	a.http.CloseIdleConnections()
}

// Run resolves the requested policy and jurisdiction, runs the pipeline and
// writes the document. On a halted run the partial pipeline result is still
// returned.
func (a *App) Run(ctx context.Context) (*Output, error) {
	policyType, err := catalog.Resolve(a.cfg.Category, a.cfg.PolicyType)
	if err != nil {
		return nil, preflightError(err)
	}
	jurisdiction, err := catalog.Jurisdiction(a.cfg.Country, a.cfg.Region)
	if err != nil {
		return nil, preflightError(err)
	}
	log.Info().Str("policy", policyType).Str("jurisdiction", jurisdiction).Msg("starting research")

	res, err := a.pipe.Run(ctx, policyType, jurisdiction)
	out := &Output{Result: res}
	if err != nil {
		return out, err
	}

	doc := export.Document{
		PolicyType:   policyType,
		Jurisdiction: jurisdiction,
		Text:         res.Policy.Text,
		GeneratedAt:  res.Policy.GeneratedAt,
	}
	data, err := export.Render(doc, a.format)
	if err != nil {
		return out, fmt.Errorf("render %s: %w", a.format, err)
	}
	if a.cfg.OutputPath == StdoutPath {
		_, err := a.stdout.Write(data)
		return out, err
	}

	out.Path = a.outputPath(policyType, jurisdiction)
	if err := writeFile(out.Path, data); err != nil {
		return out, err
	}
	log.Info().Str("path", out.Path).Int("bytes", len(data)).Msg("policy written")

	if a.cfg.WriteManifest {
		m := export.BuildManifest(res, export.ManifestMeta{
			Model:      a.cfg.LLMModel,
			LLMBaseURL: a.cfg.LLMBaseURL,
			Browser:    a.cfg.Browser,
			HTTPCache:  a.httpCache != nil,
			LLMCache:   a.llmCache != nil,
		})
		b, err := m.JSON()
		if err != nil {
			return out, fmt.Errorf("encode manifest: %w", err)
		}
		out.ManifestPath = export.SidecarPath(out.Path)
		if err := writeFile(out.ManifestPath, b); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (a *App) outputPath(policyType, jurisdiction string) string {
	if p := strings.TrimSpace(a.cfg.OutputPath); p != "" {
		return p
	}
	return filepath.Join(a.cfg.OutputDir, export.FileName(policyType, jurisdiction, a.format))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func preflightError(err error) error {
	return &pipeline.StageError{Stage: pipeline.StagePreflight, Kind: pipeline.ErrConfiguration, Message: err.Error()}
}

func logProgress(ev pipeline.Event) {
	e := log.Info().Str("run_id", ev.RunID.String()).Str("stage", string(ev.Stage))
	if ev.Total > 0 {
		e = e.Int("index", ev.Index).Int("total", ev.Total)
	}
	e.Msg(ev.Message)
}
