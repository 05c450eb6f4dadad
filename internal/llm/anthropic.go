package llm

import (
	"context"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	openai "github.com/sashabaranov/go-openai"
)

// defaultAnthropicMaxTokens applies when the request leaves MaxTokens unset;
// the Messages API requires a value.
const defaultAnthropicMaxTokens = 4096

// AnthropicProvider adapts the Anthropic Messages API to Client. System
// messages become the request's system prompt; the remaining turns keep
// their order.
type AnthropicProvider struct {
	Inner *anthropic.Client
}

func NewAnthropic(opts Options) *AnthropicProvider {
	var copts []anthropic.ClientOption
	if opts.BaseURL != "" {
		copts = append(copts, anthropic.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	if opts.HTTPClient != nil {
		copts = append(copts, anthropic.WithHTTPClient(opts.HTTPClient))
	}
	return &AnthropicProvider{Inner: anthropic.NewClient(opts.APIKey, copts...)}
}

func (p *AnthropicProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	req := toMessagesRequest(request)
	resp, err := p.Inner.CreateMessages(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return fromMessagesResponse(resp), nil
}

func toMessagesRequest(in openai.ChatCompletionRequest) anthropic.MessagesRequest {
	var system []string
	var msgs []anthropic.Message
	for _, m := range in.Messages {
		switch m.Role {
		case openai.ChatMessageRoleSystem:
			system = append(system, m.Content)
		case openai.ChatMessageRoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantTextMessage(m.Content))
		default:
			msgs = append(msgs, anthropic.NewUserTextMessage(m.Content))
		}
	}
	out := anthropic.MessagesRequest{
		Model:     anthropic.Model(in.Model),
		System:    strings.Join(system, "\n\n"),
		Messages:  msgs,
		MaxTokens: in.MaxTokens,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaultAnthropicMaxTokens
	}
	if in.Temperature > 0 {
		t := in.Temperature
		out.Temperature = &t
	}
	return out
}

func fromMessagesResponse(resp anthropic.MessagesResponse) openai.ChatCompletionResponse {
	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText && c.Text != nil {
			b.WriteString(*c.Text)
		}
	}
	out := openai.ChatCompletionResponse{
		ID:    resp.ID,
		Model: string(resp.Model),
		Usage: openai.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	if b.Len() == 0 {
		return out
	}
	out.Choices = []openai.ChatCompletionChoice{{
		Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: b.String()},
		FinishReason: openai.FinishReason(resp.StopReason),
	}}
	return out
}
