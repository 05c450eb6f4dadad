// Package export renders a drafted policy as plain text, Markdown or PDF and
// names the files it is saved under.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Format is an output file type.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
)

// Disclaimer accompanies every generated policy.
const Disclaimer = "Disclaimer: This tool generates draft policies for reference only. " +
	"Always consult with qualified legal professionals before implementing any HR policies. " +
	"Policies should be reviewed and customized for your specific organizational needs and local regulations."

const dateLayout = "2006-01-02"

// Document is a drafted policy with the metadata shown alongside it.
type Document struct {
	PolicyType   string
	Jurisdiction string
	Text         string
	GeneratedAt  time.Time
}

// ParseFormat accepts txt/text, md/markdown and pdf, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want txt, md or pdf)", s)
	}
}

// FileName is "<policy>_<jurisdiction>_policy.<ext>" with ", " in the
// jurisdiction replaced by "_".
func FileName(policyType, jurisdiction string, f Format) string {
	loc := strings.ReplaceAll(jurisdiction, ", ", "_")
	name := policyType + "_" + loc + "_policy." + string(f)
	// Catalog names such as "Maternity/Paternity Leave" must not create
	// directories.
	return strings.NewReplacer("/", "-", "\\", "-").Replace(name)
}

// Markdown prefixes the policy text with a title and metadata header.
func Markdown(d Document) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(d.PolicyType)
	b.WriteString("\n\n**Location:** ")
	b.WriteString(d.Jurisdiction)
	b.WriteString("\n\n**Generated:** ")
	b.WriteString(d.GeneratedAt.Format(dateLayout))
	b.WriteString("\n\n---\n\n")
	b.WriteString(d.Text)
	return b.String()
}

// Render returns the bytes of d in format f. Plain text is the policy as
// generated, without any header.
func Render(d Document, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return []byte(d.Text), nil
	case FormatMarkdown:
		return []byte(Markdown(d)), nil
	case FormatPDF:
		var buf bytes.Buffer
		if err := WritePDF(&buf, d); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", f)
	}
}
