// Package synth turns aggregated source text into a drafted policy with a
// single chat-completion request.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/policygen/internal/aggregate"
	"github.com/hyperifyio/policygen/internal/cache"
	"github.com/hyperifyio/policygen/internal/llm"
)

var (
	// ErrNoContext is returned without calling the model when no source
	// contributed text.
	ErrNoContext = errors.New("no source content to synthesize from")
	// ErrNotConfigured means the client, model or credential is missing.
	ErrNotConfigured = errors.New("synthesizer not configured")
	// ErrEmptyResponse means the model answered with no choices or an empty string.
	ErrEmptyResponse = errors.New("empty model response")
)

// Request is everything one policy draft depends on.
type Request struct {
	PolicyType   string
	Jurisdiction string
	Context      aggregate.Context
}

// Policy is the model's answer, kept verbatim.
type Policy struct {
	Text          string
	GeneratedAt   time.Time
	Model         string
	PromptVersion string
	FromCache     bool
}

// Synthesizer calls the LLM to draft the policy document.
type Synthesizer struct {
	Client llm.Client
	Model  string
	// APIKey is only checked for presence; the Client carries the credential.
	APIKey string
	Cache  *cache.LLMCache
	// SystemPrompt, when non-empty, is sent as a system message ahead of the
	// drafting instruction.
	SystemPrompt string
	// Requirements overrides the default drafting rules when non-nil.
	Requirements []string
	Now          func() time.Time
}

// Configured reports whether Synthesize can reach a model.
func (s *Synthesizer) Configured() bool {
	return s != nil && s.Client != nil && strings.TrimSpace(s.Model) != "" && strings.TrimSpace(s.APIKey) != ""
}

// Synthesize sends one request and returns the response text unmodified.
// There is no retry; the caller decides whether a failure ends the run.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Policy, error) {
	if req.Context.SuccessCount == 0 {
		return Policy{}, ErrNoContext
	}
	if !s.Configured() {
		return Policy{}, ErrNotConfigured
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now()
	prompt := BuildPrompt(Prompt{
		PolicyType:   req.PolicyType,
		Jurisdiction: req.Jurisdiction,
		Context:      req.Context.Text,
		Requirements: s.Requirements,
		AsOf:         at,
	})
	out := Policy{GeneratedAt: at, Model: s.Model, PromptVersion: PromptVersion}

	key := cache.KeyFrom(s.Model, s.SystemPrompt+"\n\n"+prompt)
	if s.Cache != nil {
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var cached struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &cached); err == nil && cached.Text != "" {
				log.Debug().Str("model", s.Model).Msg("policy served from llm cache")
				out.Text, out.FromCache = cached.Text, true
				return out, nil
			}
		}
	}

	var msgs []openai.ChatCompletionMessage
	if strings.TrimSpace(s.SystemPrompt) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s.SystemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	start := time.Now()
	resp, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.Model,
		Messages: msgs,
		N:        1,
	})
	if err != nil {
		return Policy{}, fmt.Errorf("synthesis call: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Policy{}, ErrEmptyResponse
	}
	out.Text = resp.Choices[0].Message.Content
	log.Info().
		Str("model", s.Model).
		Int("sources", req.Context.SuccessCount).
		Int("chars", len(out.Text)).
		Dur("took", time.Since(start)).
		Msg("policy generated")

	if s.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"text": out.Text})
		if err := s.Cache.Save(ctx, key, payload); err != nil {
			log.Warn().Err(err).Msg("could not write llm cache")
		}
	}
	return out, nil
}
