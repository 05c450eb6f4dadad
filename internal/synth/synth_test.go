package synth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/policygen/internal/aggregate"
	"github.com/hyperifyio/policygen/internal/cache"
)

type capturingClient struct {
	calls   int
	lastReq openai.ChatCompletionRequest
	reply   string
	err     error
}

func (c *capturingClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	c.lastReq = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	if c.reply == "" {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c.reply},
		}},
	}, nil
}

var fixedNow = func() time.Time { return time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC) }

func context3() aggregate.Context {
	return aggregate.Context{
		Text: "\n\n--- SOURCE: A (https://a.gov) ---\na" +
			"\n\n--- SOURCE: B (https://b.gov) ---\nb",
		SuccessCount: 2,
	}
}

func newSynth(c *capturingClient) *Synthesizer {
	return &Synthesizer{Client: c, Model: "gemini-2.5-flash", APIKey: "k", Now: fixedNow}
}

func TestSynthesize_SendsSinglePromptAndReturnsTextVerbatim(t *testing.T) {
	cc := &capturingClient{reply: "  # Remote Work Policy\n\nBody  \n"}
	s := newSynth(cc)
	pol, err := s.Synthesize(context.Background(), Request{PolicyType: "Remote Work Policy", Jurisdiction: "Germany", Context: context3()})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if cc.calls != 1 {
		t.Fatalf("expected one call, got %d", cc.calls)
	}
	if pol.Text != "  # Remote Work Policy\n\nBody  \n" {
		t.Fatalf("text was modified: %q", pol.Text)
	}
	if pol.PromptVersion != PromptVersion || pol.Model != "gemini-2.5-flash" || !pol.GeneratedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected metadata %+v", pol)
	}
	if len(cc.lastReq.Messages) != 1 || cc.lastReq.Messages[0].Role != openai.ChatMessageRoleUser {
		t.Fatalf("expected a single user message, got %+v", cc.lastReq.Messages)
	}
	got := cc.lastReq.Messages[0].Content
	for _, want := range []string{"Remote Work Policy", "Germany", "--- SOURCE: A (https://a.gov) ---", "--- SOURCE: B (https://b.gov) ---", "March 2025"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestSynthesize_RefusesEmptyContext(t *testing.T) {
	cc := &capturingClient{reply: "x"}
	_, err := newSynth(cc).Synthesize(context.Background(), Request{PolicyType: "p", Jurisdiction: "j"})
	if !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}
	if cc.calls != 0 {
		t.Fatalf("model must not be called, got %d calls", cc.calls)
	}
}

func TestSynthesize_MissingCredential(t *testing.T) {
	cc := &capturingClient{reply: "x"}
	s := newSynth(cc)
	s.APIKey = " "
	_, err := s.Synthesize(context.Background(), Request{Context: context3()})
	if !errors.Is(err, ErrNotConfigured) || cc.calls != 0 {
		t.Fatalf("expected ErrNotConfigured without calls, got %v (%d calls)", err, cc.calls)
	}
}

func TestSynthesize_EmptyAndFailedResponses(t *testing.T) {
	cc := &capturingClient{reply: ""}
	if _, err := newSynth(cc).Synthesize(context.Background(), Request{Context: context3()}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	cc = &capturingClient{reply: " \n\t"}
	pol, err := newSynth(cc).Synthesize(context.Background(), Request{Context: context3()})
	if err != nil {
		t.Fatalf("whitespace-only text is still an answer: %v", err)
	}
	if pol.Text != " \n\t" {
		t.Fatalf("text not returned verbatim: %q", pol.Text)
	}

	boom := errors.New("503 unavailable")
	cc = &capturingClient{err: boom}
	_, err = newSynth(cc).Synthesize(context.Background(), Request{Context: context3()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error to wrap cause, got %v", err)
	}
	if cc.calls != 1 {
		t.Fatalf("no retry expected, got %d calls", cc.calls)
	}
}

func TestSynthesize_SystemPromptAndCache(t *testing.T) {
	dir := t.TempDir()
	cc := &capturingClient{reply: "# cached"}
	s := newSynth(cc)
	s.SystemPrompt = "Write in German."
	s.Cache = &cache.LLMCache{Dir: dir}
	req := Request{PolicyType: "Overtime Policy", Jurisdiction: "Germany", Context: context3()}

	first, err := s.Synthesize(context.Background(), req)
	if err != nil || first.FromCache {
		t.Fatalf("first call: %+v, %v", first, err)
	}
	if cc.lastReq.Messages[0].Role != openai.ChatMessageRoleSystem || cc.lastReq.Messages[0].Content != "Write in German." {
		t.Fatalf("system prompt not sent first: %+v", cc.lastReq.Messages)
	}
	second, err := s.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !second.FromCache || second.Text != "# cached" || cc.calls != 1 {
		t.Fatalf("expected cache hit, got %+v after %d calls", second, cc.calls)
	}
}

func TestBuildPrompt_Slots(t *testing.T) {
	p := BuildPrompt(Prompt{
		PolicyType:   "Sick Leave Policy",
		Jurisdiction: "Ontario, Canada",
		Context:      "CONTEXT-MARKER",
		AsOf:         time.Date(2024, time.November, 2, 0, 0, 0, 0, time.UTC),
	})
	for _, want := range []string{
		"create a comprehensive Sick Leave Policy policy for Ontario, Canada.",
		"CONTEXT-MARKER",
		"1. Create a professional, legally compliant Sick Leave Policy policy",
		"2. Include all mandatory requirements specific to Ontario, Canada",
		"8. Add any location-specific cultural or legal considerations",
		"current as of November 2024",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "{policy}") || strings.Contains(p, "{jurisdiction}") {
		t.Fatalf("unfilled slot in prompt:\n%s", p)
	}
	if len(Requirements) != 8 {
		t.Fatalf("expected eight requirements, got %d", len(Requirements))
	}
}

func TestBuildPrompt_CustomRequirements(t *testing.T) {
	p := BuildPrompt(Prompt{PolicyType: "X", Jurisdiction: "Y", Requirements: []string{"only rule for {jurisdiction}"}})
	if !strings.Contains(p, "1. only rule for Y\n") || strings.Contains(p, "2. ") {
		t.Fatalf("custom requirements not applied:\n%s", p)
	}
}
