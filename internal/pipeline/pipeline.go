// Package pipeline runs one policy draft end to end: discovery, sequential
// extraction over a shared browser session, aggregation and synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/policygen/internal/aggregate"
	"github.com/hyperifyio/policygen/internal/browser"
	"github.com/hyperifyio/policygen/internal/extract"
	"github.com/hyperifyio/policygen/internal/search"
	"github.com/hyperifyio/policygen/internal/synth"
)

const (
	DefaultMaxSources = 5
	DefaultDelay      = time.Second
)

// Discoverer finds candidate sources.
type Discoverer interface {
	Discover(ctx context.Context, query, jurisdiction string) ([]search.Result, error)
}

// Synthesizer drafts the policy from aggregated context.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) (synth.Policy, error)
}

// Credentials are checked for presence before any external call.
type Credentials struct {
	SearchAPIKey string
	LLMAPIKey    string
}

// Event is a progress notification.
type Event struct {
	RunID   uuid.UUID
	Stage   Stage
	Index   int // 1-based position during extraction
	Total   int
	URL     string
	Message string
}

// Observer receives progress events synchronously.
type Observer func(Event)

// Result is what a run produced. A halted run still returns the fields it
// filled before stopping.
type Result struct {
	RunID                  uuid.UUID
	PolicyType             string
	Jurisdiction           string
	FoundSources           []search.Result
	Outcomes               []extract.Outcome
	ExtractionSuccessCount int
	Context                aggregate.Context
	Policy                 synth.Policy
}

// GeneratedText is the drafted policy, empty unless the run completed.
func (r *Result) GeneratedText() string { return r.Policy.Text }

// Pipeline wires the stages together. Extractor is used as a template: each
// run gets a copy bound to its own RunContext.
type Pipeline struct {
	Discovery   Discoverer
	Browser     browser.Factory
	Extractor   extract.Extractor
	Synthesizer Synthesizer
	Credentials Credentials
	MaxSources  int
	// Delay separates consecutive extractions. Zero means DefaultDelay; a
	// negative value disables it.
	Delay    time.Duration
	Observer Observer

	sleep func(context.Context, time.Duration) error
}

// Run drafts policyType for jurisdiction. Any failure that halts the run is
// a *StageError; per-source extraction failures are recorded on
// Result.Outcomes instead.
func (p *Pipeline) Run(ctx context.Context, policyType, jurisdiction string) (*Result, error) {
	rc := NewRunContext(p.Browser)
	defer rc.Close()

	res := &Result{RunID: rc.ID, PolicyType: policyType, Jurisdiction: jurisdiction}
	logger := log.With().Str("run_id", rc.ID.String()).Logger()

	if err := p.preflight(policyType, jurisdiction); err != nil {
		return res, err
	}

	p.emit(Event{RunID: rc.ID, Stage: StageDiscovery, Message: "Searching for official policy sources"})
	found, err := p.Discovery.Discover(ctx, policyType, jurisdiction)
	res.FoundSources = found
	if err != nil {
		kind := ErrTransport
		if errors.Is(err, search.ErrMissingAPIKey) {
			kind = ErrConfiguration
		}
		return res, &StageError{Stage: StageDiscovery, Kind: kind, Message: msgSearchFailed, Err: err}
	}
	if len(found) == 0 {
		return res, &StageError{Stage: StageDiscovery, Kind: ErrEmptyResult, Message: msgNoSources}
	}
	logger.Info().Int("count", len(found)).Msg("official sources found")

	candidates := p.candidates(found)
	ex := p.Extractor
	ex.Sessions = rc
	for i, src := range candidates {
		if i > 0 {
			if err := p.wait(ctx); err != nil {
				return res, fmt.Errorf("extraction interrupted: %w", err)
			}
		}
		p.emit(Event{
			RunID:   rc.ID,
			Stage:   StageExtraction,
			Index:   i + 1,
			Total:   len(candidates),
			URL:     src.URL,
			Message: fmt.Sprintf("Extracting from source %d/%d: %s", i+1, len(candidates), hostOf(src.URL)),
		})
		out := ex.Extract(ctx, src)
		res.Outcomes = append(res.Outcomes, out)
	}

	res.Context = aggregate.Aggregate(res.Outcomes)
	res.ExtractionSuccessCount = res.Context.SuccessCount
	if res.Context.Empty() {
		return res, &StageError{Stage: StageExtraction, Kind: ErrEmptyResult, Message: msgNoExtractions}
	}
	logger.Info().Int("count", res.ExtractionSuccessCount).Int("attempted", len(candidates)).Msg("extracted source content")

	p.emit(Event{RunID: rc.ID, Stage: StageSynthesis, Message: "Generating policy"})
	pol, err := p.Synthesizer.Synthesize(ctx, synth.Request{
		PolicyType:   policyType,
		Jurisdiction: jurisdiction,
		Context:      res.Context,
	})
	if err != nil {
		return res, synthesisError(err)
	}
	res.Policy = pol
	return res, nil
}

func (p *Pipeline) preflight(policyType, jurisdiction string) error {
	if strings.TrimSpace(policyType) == "" || strings.TrimSpace(jurisdiction) == "" {
		return &StageError{Stage: StagePreflight, Kind: ErrConfiguration, Message: msgMissingInput}
	}
	var missing []string
	if strings.TrimSpace(p.Credentials.SearchAPIKey) == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}
	if strings.TrimSpace(p.Credentials.LLMAPIKey) == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if len(missing) > 0 {
		return &StageError{
			Stage:   StagePreflight,
			Kind:    ErrConfiguration,
			Message: msgMissingKeys,
			Err:     fmt.Errorf("unset: %s", strings.Join(missing, ", ")),
		}
	}
	if p.Discovery == nil || p.Synthesizer == nil {
		return &StageError{Stage: StagePreflight, Kind: ErrConfiguration, Message: "pipeline is missing a search or synthesis stage"}
	}
	return nil
}

// candidates takes the top MaxSources results and drops those without a URL.
func (p *Pipeline) candidates(found []search.Result) []search.Result {
	n := p.MaxSources
	if n <= 0 {
		n = DefaultMaxSources
	}
	if len(found) > n {
		found = found[:n]
	}
	out := make([]search.Result, 0, len(found))
	for _, r := range found {
		if strings.TrimSpace(r.URL) != "" {
			out = append(out, r)
		}
	}
	return out
}

func (p *Pipeline) wait(ctx context.Context) error {
	d := p.Delay
	if d == 0 {
		d = DefaultDelay
	}
	if d < 0 {
		return ctx.Err()
	}
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Pipeline) emit(ev Event) {
	if p.Observer != nil {
		p.Observer(ev)
	}
}

func synthesisError(err error) *StageError {
	switch {
	case errors.Is(err, synth.ErrNotConfigured):
		return &StageError{Stage: StageSynthesis, Kind: ErrConfiguration, Message: msgSynthNotReady, Err: err}
	case errors.Is(err, synth.ErrEmptyResponse):
		return &StageError{Stage: StageSynthesis, Kind: ErrEmptyResult, Message: msgSynthEmptyText, Err: err}
	case errors.Is(err, synth.ErrNoContext):
		return &StageError{Stage: StageSynthesis, Kind: ErrEmptyResult, Message: msgNoExtractions, Err: err}
	default:
		return &StageError{Stage: StageSynthesis, Kind: ErrTransport, Message: msgSynthFailed, Err: err}
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
