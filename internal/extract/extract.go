// Package extract pulls the main textual content out of a page loaded in a
// browser session.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/policygen/internal/browser"
	"github.com/hyperifyio/policygen/internal/search"
)

const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultReadyTimeout      = 10 * time.Second
	readySelector            = "body"
)

// DefaultStrategies are content-region selectors tried in order; the first
// one matching an element with text wins.
var DefaultStrategies = []string{
	"main",
	"article",
	".content",
	".main-content",
	"#content",
	"#main",
	".policy-content",
	".legal-content",
}

// DefaultRemoveTags are stripped before any text is read.
var DefaultRemoveTags = []string{"script", "style", "nav", "header", "footer", "aside"}

var (
	// ErrExtraction wraps every per-source failure.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmptyContent means the page loaded but yielded no text.
	ErrEmptyContent = errors.New("no text content")
)

// SessionSource hands out the run's browser session, creating it on first use.
type SessionSource interface {
	Driver(ctx context.Context) (browser.Driver, error)
}

// Outcome is the result of extracting one source. Exactly one of Text or
// Err is meaningful: a failed extraction carries Err and empty Text.
type Outcome struct {
	Source search.Result
	Text   string
	// Strategy is the selector whose element supplied the text.
	Strategy string
	Err      error
}

// Succeeded reports whether the outcome contributes content.
func (o Outcome) Succeeded() bool { return o.Err == nil && o.Text != "" }

// Extractor reads page text through a shared browser session.
type Extractor struct {
	Sessions SessionSource
	// Strategies overrides DefaultStrategies when non-empty.
	Strategies []string
	// RemoveTags overrides DefaultRemoveTags when non-nil.
	RemoveTags        []string
	MaxChars          int
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
}

// Extract loads source.URL and returns its normalized main text. It never
// returns an error directly; failures are recorded on the Outcome.
func (e *Extractor) Extract(ctx context.Context, source search.Result) (out Outcome) {
	out.Source = source
	defer func() {
		if r := recover(); r != nil {
			out.Text, out.Strategy = "", ""
			out.Err = fmt.Errorf("%w: %s: panic: %v", ErrExtraction, source.URL, r)
		}
		if out.Err != nil {
			log.Warn().Err(out.Err).Str("url", source.URL).Msg("could not extract content")
		}
	}()

	text, strategy, err := e.extract(ctx, source.URL)
	if err != nil {
		out.Err = fmt.Errorf("%w: %s: %w", ErrExtraction, source.URL, err)
		return out
	}
	out.Text = Normalize(text, e.MaxChars)
	out.Strategy = strategy
	if out.Text == "" {
		out.Err = fmt.Errorf("%w: %s: %w", ErrExtraction, source.URL, ErrEmptyContent)
	}
	return out
}

// Text is the plain-string form of Extract: the normalized text, or "" on
// any failure.
func (e *Extractor) Text(ctx context.Context, url string) string {
	return e.Extract(ctx, search.Result{URL: url}).Text
}

func (e *Extractor) extract(ctx context.Context, url string) (string, string, error) {
	if e.Sessions == nil {
		return "", "", errors.New("no browser session source")
	}
	drv, err := e.Sessions.Driver(ctx)
	if err != nil {
		return "", "", fmt.Errorf("browser session: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, orDefault(e.NavigationTimeout, DefaultNavigationTimeout))
	err = drv.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return "", "", err
	}
	readyCtx, cancel := context.WithTimeout(ctx, orDefault(e.ReadyTimeout, DefaultReadyTimeout))
	err = drv.WaitFor(readyCtx, readySelector)
	cancel()
	if err != nil {
		return "", "", err
	}

	tags := e.RemoveTags
	if tags == nil {
		tags = DefaultRemoveTags
	}
	if err := drv.Remove(ctx, tags); err != nil {
		// Noise reduction only; the content selectors still work without it.
		log.Debug().Err(err).Str("url", url).Msg("could not strip boilerplate elements")
	}

	strategies := e.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	for _, sel := range strategies {
		els, err := drv.Find(ctx, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		text, err := els[0].TextContent(ctx)
		if err != nil {
			continue
		}
		// A matching but empty region falls through to the body.
		if text != "" {
			return text, sel, nil
		}
		break
	}

	els, err := drv.Find(ctx, readySelector)
	if err != nil {
		return "", "", err
	}
	if len(els) == 0 {
		return "", "", fmt.Errorf("no %s element", readySelector)
	}
	text, err := els[0].TextContent(ctx)
	if err != nil {
		return "", "", err
	}
	return text, readySelector, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
