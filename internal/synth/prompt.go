package synth

import (
	"strconv"
	"strings"
	"time"
)

// PromptVersion identifies the wording of BuildPrompt. Bump it whenever the
// template text changes so cached responses and manifests stay attributable.
const PromptVersion = "policy-v1"

// AsOfLayout renders the date anchor as month and year.
const AsOfLayout = "January 2006"

// Requirements are the fixed drafting rules, in order. Slots written as
// {policy} and {jurisdiction} are substituted by BuildPrompt.
var Requirements = []string{
	"Create a professional, legally compliant {policy} policy",
	"Include all mandatory requirements specific to {jurisdiction}",
	"Structure the policy with clear sections and subsections",
	"Include purpose, scope, definitions, procedures, and compliance requirements",
	"Add relevant legal references and citations where applicable",
	"Ensure the language is clear, professional, and actionable",
	"Include effective date and review requirements",
	"Add any location-specific cultural or legal considerations",
}

// Prompt holds the named slots of the template.
type Prompt struct {
	PolicyType   string
	Jurisdiction string
	// Context is the aggregated, provenance-tagged source text.
	Context      string
	Requirements []string
	AsOf         time.Time
}

// BuildPrompt renders p into the single instruction sent to the model.
// A nil Requirements slice uses the package default.
func BuildPrompt(p Prompt) string {
	reqs := p.Requirements
	if reqs == nil {
		reqs = Requirements
	}
	slot := strings.NewReplacer("{policy}", p.PolicyType, "{jurisdiction}", p.Jurisdiction)

	var sb strings.Builder
	sb.WriteString("As an expert HR policy consultant, create a comprehensive ")
	sb.WriteString(p.PolicyType)
	sb.WriteString(" policy for ")
	sb.WriteString(p.Jurisdiction)
	sb.WriteString(".\n\n")
	sb.WriteString("Use the following official legal and regulatory information as your primary source:\n")
	sb.WriteString(p.Context)
	sb.WriteString("\n\nRequirements:\n")
	for i, r := range reqs {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(slot.Replace(r))
		sb.WriteString("\n")
	}
	sb.WriteString("\nFormat the policy as a complete, ready-to-implement document with:\n")
	sb.WriteString("- Policy title and version\n")
	sb.WriteString("- Effective date\n")
	sb.WriteString("- Table of contents\n")
	sb.WriteString("- All required sections\n")
	sb.WriteString("- Appendices if needed\n\n")
	sb.WriteString("Make sure the policy is current as of ")
	sb.WriteString(p.AsOf.Format(AsOfLayout))
	sb.WriteString(" and complies with the latest regulations.")
	return sb.String()
}

