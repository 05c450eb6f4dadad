package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/policygen/internal/browser"
	"github.com/hyperifyio/policygen/internal/extract"
	"github.com/hyperifyio/policygen/internal/search"
	"github.com/hyperifyio/policygen/internal/synth"
)

type stubDiscovery struct {
	results []search.Result
	err     error
	calls   int
	query   string
	place   string
}

func (s *stubDiscovery) Discover(_ context.Context, q, j string) ([]search.Result, error) {
	s.calls++
	s.query, s.place = q, j
	return s.results, s.err
}

type textElement string

func (e textElement) TextContent(context.Context) (string, error) { return string(e), nil }

// pageDriver serves body text per URL; URLs missing from pages fail to load.
type pageDriver struct {
	pages   map[string]string
	current string
	visits  []string
	quits   int
}

func (d *pageDriver) Navigate(_ context.Context, url string) error {
	d.visits = append(d.visits, url)
	if _, ok := d.pages[url]; !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED %s", url)
	}
	d.current = url
	return nil
}

func (d *pageDriver) WaitFor(context.Context, string) error  { return nil }
func (d *pageDriver) Remove(context.Context, []string) error { return nil }
func (d *pageDriver) Quit() error                            { d.quits++; return nil }

func (d *pageDriver) Find(_ context.Context, sel string) ([]browser.Element, error) {
	if sel != "body" {
		return nil, nil
	}
	return []browser.Element{textElement(d.pages[d.current])}, nil
}

type countingFactory struct {
	driver  *pageDriver
	err     error
	created int
}

func (f *countingFactory) factory() browser.Factory {
	return func(context.Context) (browser.Driver, error) {
		f.created++
		if f.err != nil {
			return nil, f.err
		}
		return f.driver, nil
	}
}

type stubSynth struct {
	calls  int
	req    synth.Request
	err    error
	panics bool
}

func (s *stubSynth) Synthesize(_ context.Context, req synth.Request) (synth.Policy, error) {
	s.calls++
	s.req = req
	if s.panics {
		panic("model client exploded")
	}
	if s.err != nil {
		return synth.Policy{}, s.err
	}
	return synth.Policy{Text: "# Drafted\n", PromptVersion: synth.PromptVersion}, nil
}

type harness struct {
	disc   *stubDiscovery
	fac    *countingFactory
	syn    *stubSynth
	sleeps []time.Duration
	events []Event
	pipe   *Pipeline
}

func newHarness(results []search.Result, pages map[string]string) *harness {
	h := &harness{
		disc: &stubDiscovery{results: results},
		fac:  &countingFactory{driver: &pageDriver{pages: pages}},
		syn:  &stubSynth{},
	}
	h.pipe = &Pipeline{
		Discovery:   h.disc,
		Browser:     h.fac.factory(),
		Synthesizer: h.syn,
		Credentials: Credentials{SearchAPIKey: "tvly-x", LLMAPIKey: "gm-x"},
		Observer:    func(ev Event) { h.events = append(h.events, ev) },
	}
	h.pipe.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func results(n int) []search.Result {
	out := make([]search.Result, n)
	for i := range out {
		out[i] = search.Result{Title: fmt.Sprintf("Source %d", i+1), URL: fmt.Sprintf("https://law%d.example.gov/act", i+1)}
	}
	return out
}

func TestRun_ScenarioA_AllSourcesExtract(t *testing.T) {
	found := results(3)
	h := newHarness(found, map[string]string{
		found[0].URL: "first   statute",
		found[1].URL: "second\nstatute",
		found[2].URL: "third statute",
	})

	res, err := h.pipe.Run(context.Background(), "Remote Work Policy", "Germany")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.disc.query != "Remote Work Policy" || h.disc.place != "Germany" {
		t.Fatalf("discovery got %q / %q", h.disc.query, h.disc.place)
	}
	if len(res.FoundSources) != 3 || res.ExtractionSuccessCount != 3 || len(res.Context.Blocks) != 3 {
		t.Fatalf("unexpected counts: found=%d ok=%d blocks=%d", len(res.FoundSources), res.ExtractionSuccessCount, len(res.Context.Blocks))
	}
	for i, b := range res.Context.Blocks {
		if b.URL != found[i].URL {
			t.Fatalf("block %d url=%q, want %q", i, b.URL, found[i].URL)
		}
	}
	if res.GeneratedText() != "# Drafted\n" {
		t.Fatalf("generated text %q", res.GeneratedText())
	}

	if h.syn.calls != 1 {
		t.Fatalf("synth calls=%d, want 1", h.syn.calls)
	}
	if h.syn.req.PolicyType != "Remote Work Policy" || h.syn.req.Jurisdiction != "Germany" {
		t.Fatalf("unexpected synth request %+v", h.syn.req)
	}
	prompt := synth.BuildPrompt(synth.Prompt{
		PolicyType:   h.syn.req.PolicyType,
		Jurisdiction: h.syn.req.Jurisdiction,
		Context:      h.syn.req.Context.Text,
	})
	last := -1
	for _, f := range found {
		header := "--- SOURCE: " + f.Title + " (" + f.URL + ") ---"
		idx := strings.Index(prompt, header)
		if idx < 0 {
			t.Fatalf("prompt missing %s", header)
		}
		if idx <= last {
			t.Fatalf("blocks out of order at %s", header)
		}
		last = idx
	}

	if len(h.sleeps) != 2 || h.sleeps[0] != DefaultDelay || h.sleeps[1] != DefaultDelay {
		t.Fatalf("expected delay only between extractions, got %v", h.sleeps)
	}
	if h.fac.created != 1 || h.fac.driver.quits != 1 {
		t.Fatalf("created=%d quits=%d, want 1 and 1", h.fac.created, h.fac.driver.quits)
	}
}

func TestRun_ScenarioB_PartialFailures(t *testing.T) {
	found := results(5)
	h := newHarness(found, map[string]string{
		found[0].URL: "one",
		found[2].URL: "three",
		found[4].URL: "five",
	})

	res, err := h.pipe.Run(context.Background(), "Overtime Policy", "Ontario, Canada")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExtractionSuccessCount != 3 || len(res.Context.Blocks) != 3 {
		t.Fatalf("ok=%d blocks=%d, want 3", res.ExtractionSuccessCount, len(res.Context.Blocks))
	}
	if len(res.Outcomes) != 5 {
		t.Fatalf("outcomes=%d, want 5", len(res.Outcomes))
	}
	for _, i := range []int{1, 3} {
		if !errors.Is(res.Outcomes[i].Err, ErrExtraction) {
			t.Fatalf("outcome %d: expected ErrExtraction, got %v", i, res.Outcomes[i].Err)
		}
	}
	if h.syn.calls != 1 || h.fac.driver.quits != 1 {
		t.Fatalf("synth calls=%d quits=%d", h.syn.calls, h.fac.driver.quits)
	}

	var progress []string
	for _, ev := range h.events {
		if ev.Stage == StageExtraction {
			progress = append(progress, ev.Message)
		}
	}
	if len(progress) != 5 {
		t.Fatalf("progress events=%d, want 5", len(progress))
	}
	if progress[1] != "Extracting from source 2/5: law2.example.gov" {
		t.Fatalf("unexpected progress message %q", progress[1])
	}
}

func TestRun_ScenarioC_MissingGenerationCredential(t *testing.T) {
	h := newHarness(results(3), nil)
	h.pipe.Credentials.LLMAPIKey = ""

	_, err := h.pipe.Run(context.Background(), "Remote Work Policy", "Germany")
	if !errors.Is(err, ErrConfiguration) || errors.Is(err, ErrTransport) {
		t.Fatalf("expected configuration error only, got %v", err)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("message should name the key: %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StagePreflight {
		t.Fatalf("expected preflight StageError, got %#v", err)
	}
	if h.disc.calls != 0 || h.syn.calls != 0 || h.fac.created != 0 {
		t.Fatalf("no external call expected: disc=%d synth=%d browser=%d", h.disc.calls, h.syn.calls, h.fac.created)
	}
}

func TestRun_EmptyInputs(t *testing.T) {
	h := newHarness(results(1), nil)
	_, err := h.pipe.Run(context.Background(), "  ", "Germany")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if h.disc.calls != 0 {
		t.Fatalf("discovery must not run")
	}
}

func TestRun_ZeroSearchResultsHaltsBeforeExtraction(t *testing.T) {
	h := newHarness(nil, nil)
	res, err := h.pipe.Run(context.Background(), "Sick Leave Policy", "France")
	if !errors.Is(err, ErrEmptyResult) || !strings.Contains(err.Error(), "No official sources found") {
		t.Fatalf("expected empty result halt, got %v", err)
	}
	if len(res.FoundSources) != 0 {
		t.Fatalf("found sources %v", res.FoundSources)
	}
	if h.fac.created != 0 || h.syn.calls != 0 {
		t.Fatalf("no browser or synthesis expected: browser=%d synth=%d", h.fac.created, h.syn.calls)
	}
}

func TestRun_SearchTransportFailure(t *testing.T) {
	h := newHarness(nil, nil)
	cause := errors.New("tavily search: status 502")
	h.disc.err = cause
	h.disc.results = []search.Result{}

	_, err := h.pipe.Run(context.Background(), "Sick Leave Policy", "France")
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) {
		t.Fatalf("expected transport error wrapping cause, got %v", err)
	}
	if h.fac.created != 0 {
		t.Fatalf("browser must not launch")
	}
}

func TestRun_AllExtractionsFailNeverSynthesizes(t *testing.T) {
	h := newHarness(results(4), map[string]string{})
	res, err := h.pipe.Run(context.Background(), "Data Protection Policy", "India")
	if !errors.Is(err, ErrEmptyResult) || !strings.Contains(err.Error(), "Could not extract content from any sources") {
		t.Fatalf("expected extraction halt, got %v", err)
	}
	if res.ExtractionSuccessCount != 0 || len(res.Outcomes) != 4 {
		t.Fatalf("ok=%d outcomes=%d", res.ExtractionSuccessCount, len(res.Outcomes))
	}
	if h.syn.calls != 0 || h.fac.driver.quits != 1 {
		t.Fatalf("synth calls=%d quits=%d", h.syn.calls, h.fac.driver.quits)
	}
}

func TestRun_BrowserLaunchFailureIsCachedPerRun(t *testing.T) {
	h := newHarness(results(3), nil)
	h.fac.err = errors.New("chromium not found")

	res, err := h.pipe.Run(context.Background(), "Remote Work Policy", "Germany")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
	if h.fac.created != 1 {
		t.Fatalf("launch attempted %d times, want once per run", h.fac.created)
	}
	if len(res.Outcomes) != 3 || h.fac.driver.quits != 0 {
		t.Fatalf("outcomes=%d quits=%d", len(res.Outcomes), h.fac.driver.quits)
	}
}

func TestRun_OnlyTopFiveAndSkipsEmptyURLs(t *testing.T) {
	found := results(8)
	found[1].URL = ""
	pages := map[string]string{}
	for _, r := range found {
		pages[r.URL] = "text"
	}
	h := newHarness(found, pages)

	res, err := h.pipe.Run(context.Background(), "Annual Leave Policy", "Netherlands")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.FoundSources) != 8 || res.ExtractionSuccessCount != 4 {
		t.Fatalf("found=%d ok=%d", len(res.FoundSources), res.ExtractionSuccessCount)
	}
	want := []string{found[0].URL, found[2].URL, found[3].URL, found[4].URL}
	if strings.Join(h.fac.driver.visits, " ") != strings.Join(want, " ") {
		t.Fatalf("visits=%v, want %v", h.fac.driver.visits, want)
	}
}

func TestRun_SynthesisFailuresMapByCause(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{synth.ErrNotConfigured, ErrConfiguration},
		{synth.ErrEmptyResponse, ErrEmptyResult},
		{fmt.Errorf("synthesis call: %w", errors.New("connection reset")), ErrTransport},
	}
	for _, tc := range cases {
		found := results(1)
		h := newHarness(found, map[string]string{found[0].URL: "text"})
		h.syn.err = tc.err

		res, err := h.pipe.Run(context.Background(), "Overtime Policy", "Singapore")
		if !errors.Is(err, tc.kind) || !errors.Is(err, tc.err) {
			t.Fatalf("%v: got %v", tc.err, err)
		}
		if res.GeneratedText() != "" {
			t.Fatalf("%v: unexpected text %q", tc.err, res.GeneratedText())
		}
		if h.fac.driver.quits != 1 {
			t.Fatalf("%v: session not released after synthesis failure", tc.err)
		}
	}
}

func TestRun_PanicStillReleasesBrowser(t *testing.T) {
	found := results(2)
	h := newHarness(found, map[string]string{found[0].URL: "a", found[1].URL: "b"})
	h.syn.panics = true

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected the synthesizer panic to propagate")
			}
		}()
		_, _ = h.pipe.Run(context.Background(), "Overtime Policy", "Singapore")
	}()
	if h.fac.created != 1 || h.fac.driver.quits != 1 {
		t.Fatalf("created=%d quits=%d, want the session quit once", h.fac.created, h.fac.driver.quits)
	}
}

func TestRun_CancelledDuringDelay(t *testing.T) {
	found := results(2)
	h := newHarness(found, map[string]string{found[0].URL: "a", found[1].URL: "b"})
	h.pipe.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := h.pipe.Run(context.Background(), "Overtime Policy", "Singapore")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if h.syn.calls != 0 || h.fac.driver.quits != 1 {
		t.Fatalf("synth calls=%d quits=%d", h.syn.calls, h.fac.driver.quits)
	}
}

func TestRunContext_CloseQuitsOnce(t *testing.T) {
	d := &pageDriver{}
	rc := NewRunContext(func(context.Context) (browser.Driver, error) { return d, nil })
	if err := rc.Close(); err != nil {
		t.Fatalf("closing an unused context: %v", err)
	}
	if rc.SessionStarted() {
		t.Fatalf("no session should have started")
	}

	rc = NewRunContext(func(context.Context) (browser.Driver, error) { return d, nil })
	got, err := rc.Driver(context.Background())
	if err != nil {
		t.Fatalf("driver: %v", err)
	}
	if again, _ := rc.Driver(context.Background()); again != got {
		t.Fatalf("driver was recreated")
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if d.quits != 1 {
		t.Fatalf("quits=%d, want 1", d.quits)
	}
	if _, err := rc.Driver(context.Background()); err == nil {
		t.Fatalf("driver after close should fail")
	}
}

func TestStageError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&StageError{Stage: StageSynthesis, Kind: ErrTransport, Message: "failed", Err: cause})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) || errors.Is(err, ErrEmptyResult) {
		t.Fatalf("unexpected unwrap behaviour for %v", err)
	}
	if err.Error() != "synthesis: failed: boom" {
		t.Fatalf("Error()=%q", err.Error())
	}
	if !errors.Is(ErrExtraction, extract.ErrExtraction) {
		t.Fatalf("ErrExtraction should match extract.ErrExtraction")
	}
}
