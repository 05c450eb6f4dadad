package pipeline

import (
	"errors"
	"strings"

	"github.com/hyperifyio/policygen/internal/extract"
)

// Stage names a pipeline step in errors, events and logs.
type Stage string

const (
	StagePreflight  Stage = "preflight"
	StageDiscovery  Stage = "discovery"
	StageExtraction Stage = "extraction"
	StageSynthesis  Stage = "synthesis"
)

// Error kinds. A *StageError matches exactly one of these with errors.Is.
var (
	// ErrConfiguration is a missing credential or input; no call was made.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport is a network or HTTP failure of the search or model service.
	ErrTransport = errors.New("transport error")
	// ErrExtraction is a per-source scraping failure. It never halts a run
	// and only appears on extract.Outcome values.
	ErrExtraction = extract.ErrExtraction
	// ErrEmptyResult is zero search results, zero extractions or an empty draft.
	ErrEmptyResult = errors.New("empty result")
)

// StageError reports why a run stopped. Message is meant for the user; Err
// carries the underlying cause when there is one.
type StageError struct {
	Stage   Stage
	Kind    error
	Message string
	Err     error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// User-facing messages.
const (
	msgMissingInput   = "Please select a policy type and a location."
	msgMissingKeys    = "Missing API keys. Please check your .env file contains both TAVILY_API_KEY and GEMINI_API_KEY"
	msgSearchFailed   = "Search failed. Please check your TAVILY_API_KEY and internet connection."
	msgNoSources      = "No official sources found. Please try different search terms or location."
	msgNoExtractions  = "Could not extract content from any sources. Please try again or check your internet connection."
	msgSynthFailed    = "Failed to generate policy. Please try again."
	msgSynthNotReady  = "Policy generator is not configured. Please check GEMINI_API_KEY and the model name."
	msgSynthEmptyText = "The model returned an empty policy. Please try again."
)
