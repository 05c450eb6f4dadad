package search

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

// officialSuffix is appended to every discovery query to bias toward
// government and legislative publishers.
const officialSuffix = "official government policy law regulation site:gov OR site:legislation OR site:official"

// DefaultResultCap is the number of results requested per discovery call.
const DefaultResultCap = 10

// Discoverer turns a policy topic and jurisdiction into one search call.
type Discoverer struct {
	Provider Provider
	// Limit caps the results requested. Zero means DefaultResultCap.
	Limit int
}

// EnhancedQuery builds the query string sent to the provider.
func EnhancedQuery(query, jurisdiction string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{query, jurisdiction, officialSuffix} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Discover issues exactly one search and returns the provider's results in
// the order received. Failures are logged and returned alongside an empty
// slice; Discover never panics on provider errors.
func (d *Discoverer) Discover(ctx context.Context, query, jurisdiction string) (results []Result, err error) {
	if d == nil || d.Provider == nil {
		return []Result{}, errors.New("search provider not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("provider", d.Provider.Name()).Msg("search provider panicked")
			results, err = []Result{}, errors.New("search provider failed unexpectedly")
		}
	}()
	limit := d.Limit
	if limit <= 0 {
		limit = DefaultResultCap
	}
	q := EnhancedQuery(query, jurisdiction)
	log.Debug().Str("provider", d.Provider.Name()).Str("query", q).Msg("discovering sources")
	got, err := d.Provider.Search(ctx, q, limit)
	if err != nil {
		log.Warn().Err(err).Str("provider", d.Provider.Name()).Msg("search failed")
		return []Result{}, err
	}
	if got == nil {
		got = []Result{}
	}
	log.Info().Int("count", len(got)).Str("provider", d.Provider.Name()).Msg("sources found")
	return got, nil
}
