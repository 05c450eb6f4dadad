package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTavilyBaseURL is the public Tavily API root.
	DefaultTavilyBaseURL = "https://api.tavily.com"
	tavilyTimeout        = 30 * time.Second
)

// DefaultDomainHints biases Tavily toward authoritative sources.
var DefaultDomainHints = []string{"gov", "legislation", "official", "law"}

// Tavily implements Provider against the Tavily /search endpoint using
// advanced depth with answer and raw-content inclusion.
type Tavily struct {
	APIKey     string
	BaseURL    string // optional, defaults to DefaultTavilyBaseURL
	HTTPClient *http.Client
	// Timeout bounds each search call regardless of HTTPClient. Zero means 30s.
	Timeout time.Duration
	// IncludeDomains is sent as the include_domains hint. Nil means DefaultDomainHints.
	IncludeDomains []string
	UserAgent      string

	// LastAnswer holds the generated answer from the most recent successful call.
	LastAnswer string
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		Score      float64 `json:"score"`
		RawContent string  `json:"raw_content"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if limit <= 0 {
		limit = 10
	}
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = DefaultTavilyBaseURL
	}
	domains := t.IncludeDomains
	if domains == nil {
		domains = DefaultDomainHints
	}
	payload, err := json.Marshal(tavilyRequest{
		APIKey:            t.APIKey,
		Query:             query,
		SearchDepth:       "advanced",
		IncludeAnswer:     true,
		IncludeRawContent: true,
		MaxResults:        limit,
		IncludeDomains:    domains,
	})
	if err != nil {
		return nil, err
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = tavilyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	hc := t.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Keep a short prefix of the body; Tavily puts the reason there.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	t.LastAnswer = strings.TrimSpace(tr.Answer)

	out := make([]Result, 0, len(tr.Results))
	for _, r := range tr.Results {
		out = append(out, Result{
			Title:      strings.TrimSpace(r.Title),
			URL:        strings.TrimSpace(r.URL),
			Score:      r.Score,
			RawSnippet: strings.TrimSpace(r.Content),
			RawContent: r.RawContent,
			Source:     t.Name(),
		})
	}
	return out, nil
}
