package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/hyperifyio/policygen/internal/pipeline"
)

// ManifestEntry records one source the extractor attempted.
type ManifestEntry struct {
	Index    int     `json:"index"`
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Score    float64 `json:"score,omitempty"`
	Used     bool    `json:"used"`
	Strategy string  `json:"strategy,omitempty"`
	SHA256   string  `json:"sha256,omitempty"`
	Chars    int     `json:"chars"`
	Error    string  `json:"error,omitempty"`
}

// ManifestMeta captures run details that aid reproducibility.
type ManifestMeta struct {
	RunID         string    `json:"run_id"`
	PolicyType    string    `json:"policy_type"`
	Jurisdiction  string    `json:"jurisdiction"`
	Model         string    `json:"model"`
	LLMBaseURL    string    `json:"llm_base_url,omitempty"`
	PromptVersion string    `json:"prompt_version"`
	Browser       string    `json:"browser,omitempty"`
	FoundSources  int       `json:"found_sources"`
	SourceCount   int       `json:"source_count"`
	HTTPCache     bool      `json:"http_cache"`
	LLMCache      bool      `json:"llm_cache"`
	FromCache     bool      `json:"from_cache"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Manifest is the machine-readable sidecar written next to an output file.
type Manifest struct {
	Meta    ManifestMeta    `json:"meta"`
	Sources []ManifestEntry `json:"sources"`
}

// BuildManifest derives the manifest from a completed run. meta supplies the
// settings the run result does not carry; run fields overwrite it.
func BuildManifest(res *pipeline.Result, meta ManifestMeta) Manifest {
	meta.RunID = res.RunID.String()
	meta.PolicyType = res.PolicyType
	meta.Jurisdiction = res.Jurisdiction
	meta.FoundSources = len(res.FoundSources)
	meta.SourceCount = res.ExtractionSuccessCount
	meta.PromptVersion = res.Policy.PromptVersion
	meta.FromCache = res.Policy.FromCache
	meta.GeneratedAt = res.Policy.GeneratedAt.UTC()
	if res.Policy.Model != "" {
		meta.Model = res.Policy.Model
	}

	entries := make([]ManifestEntry, 0, len(res.Outcomes))
	for i, o := range res.Outcomes {
		e := ManifestEntry{
			Index:    i + 1,
			URL:      strings.TrimSpace(o.Source.URL),
			Title:    strings.TrimSpace(o.Source.Title),
			Score:    o.Source.Score,
			Used:     o.Succeeded(),
			Strategy: o.Strategy,
		}
		if e.Used {
			e.SHA256 = computeSHA256Hex(o.Text)
			e.Chars = len([]rune(o.Text))
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		entries = append(entries, e)
	}
	return Manifest{Meta: meta, Sources: entries}
}

// JSON encodes the manifest with indentation.
func (m Manifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// SidecarPath returns the manifest path for an output file.
func SidecarPath(outputPath string) string {
	return outputPath + ".manifest.json"
}

func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
