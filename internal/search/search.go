package search

import (
	"context"
	"errors"
)

// Result represents a single ranked hit returned by a search provider.
// Position in the returned slice is the only identity a result has.
type Result struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Score      float64 `json:"score"`
	RawSnippet string  `json:"snippet,omitempty"`
	// RawContent is the provider-side page text when the provider offers it.
	// The pipeline does not rely on it; pages are always re-extracted.
	RawContent string `json:"raw_content,omitempty"`
	Source     string `json:"source,omitempty"` // provider name for observability
}

// Provider is a minimal interface for search providers.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// ErrMissingAPIKey is returned by providers that need a credential when none
// was configured. No request is attempted in that case.
var ErrMissingAPIKey = errors.New("search api key not configured")
