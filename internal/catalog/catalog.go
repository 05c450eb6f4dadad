// Package catalog lists the predefined policy types and jurisdictions a user
// picks from, and composes the jurisdiction string the pipeline searches for.
package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const policySuffix = " Policy"

// Category groups related policy types.
type Category struct {
	Name     string
	Policies []string
}

var categories = []Category{
	{Name: "Employment Policies", Policies: []string{"Employment Contract", "Recruitment and Selection", "Probationary Period", "Termination and Dismissal"}},
	{Name: "Workplace Policies", Policies: []string{"Anti-Harassment and Discrimination", "Health and Safety", "Remote Work", "Workplace Conduct"}},
	{Name: "Leave and Benefits", Policies: []string{"Annual Leave", "Sick Leave", "Maternity/Paternity Leave", "Bereavement Leave"}},
	{Name: "Compensation", Policies: []string{"Salary and Wage", "Overtime", "Performance Bonus", "Expense Reimbursement"}},
	{Name: "Data and Privacy", Policies: []string{"Employee Privacy", "Data Protection", "Confidentiality", "Social Media"}},
}

// PopularCountries are offered without typing.
var PopularCountries = []string{
	"United States", "United Kingdom", "Canada", "Australia", "Germany",
	"France", "Netherlands", "Singapore", "India", "South Africa",
}

// federal countries accept an optional state or province.
var federal = map[string]bool{
	"United States": true,
	"Canada":        true,
	"Australia":     true,
	"India":         true,
}

// Categories returns a copy of the catalog.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = Category{Name: c.Name, Policies: append([]string(nil), c.Policies...)}
	}
	return out
}

// PolicyType returns the full policy name, e.g. "Remote Work Policy".
func PolicyType(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasSuffix(strings.ToLower(name), strings.ToLower(policySuffix)) {
		return name
	}
	return name + policySuffix
}

// Lookup finds a predefined policy by name, case-insensitively and with or
// without the " Policy" suffix. It returns the full policy type and its
// category.
func Lookup(name string) (policyType, category string, ok bool) {
	want := strings.ToLower(PolicyType(name))
	for _, c := range categories {
		for _, p := range c.Policies {
			if strings.ToLower(PolicyType(p)) == want {
				return PolicyType(p), c.Name, true
			}
		}
	}
	return "", "", false
}

// Resolve turns user input into a policy type. Names from the catalog are
// canonicalized; anything else is accepted as a custom policy. When category
// is set, the name must belong to it.
func Resolve(category, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("policy name is required")
	}
	pt, cat, ok := Lookup(name)
	if category != "" {
		if _, found := findCategory(category); !found {
			return "", fmt.Errorf("unknown category %q", category)
		}
		if !ok || !strings.EqualFold(cat, category) {
			return "", fmt.Errorf("policy %q is not in category %q", name, category)
		}
	}
	if ok {
		return pt, nil
	}
	return PolicyType(name), nil
}

func findCategory(name string) (Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Category{}, false
}

// IsFederal reports whether country takes an optional state or province.
func IsFederal(country string) bool {
	return federal[canonicalCountry(country)]
}

// Jurisdiction composes the location searched for. Region is only honoured
// for federal countries and yields "<region>, <country>".
func Jurisdiction(country, region string) (string, error) {
	c := canonicalCountry(country)
	if c == "" {
		return "", fmt.Errorf("please select or enter a location")
	}
	r := displayName(region)
	if r == "" || !federal[c] {
		return c, nil
	}
	return r + ", " + c, nil
}

// canonicalCountry maps case variants of popular countries to their listed
// spelling and title-cases other all-lowercase input.
func canonicalCountry(s string) string {
	s = displayName(s)
	for _, p := range PopularCountries {
		if strings.EqualFold(p, s) {
			return p
		}
	}
	return s
}

// displayName collapses whitespace and title-cases input typed entirely in
// lower case; anything with capitals ("USA", "European Union") is kept.
func displayName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s != "" && s == strings.ToLower(s) {
		return cases.Title(language.English).String(s)
	}
	return s
}
