// Package aggregate joins successful extractions into one provenance-tagged
// context block for the synthesizer.
package aggregate

import (
	"strings"

	"github.com/hyperifyio/policygen/internal/extract"
)

const unknownTitle = "Unknown"

// Block is one source's contribution to the context.
type Block struct {
	Title string
	URL   string
	Text  string
}

// Header is the provenance line that precedes the block's text.
func (b Block) Header() string {
	title := b.Title
	if strings.TrimSpace(title) == "" {
		title = unknownTitle
	}
	return "--- SOURCE: " + title + " (" + b.URL + ") ---"
}

func (b Block) String() string {
	return "\n\n" + b.Header() + "\n" + b.Text
}

// Context is the aggregated source text plus the number of sources that
// contributed to it.
type Context struct {
	Text         string
	Blocks       []Block
	SuccessCount int
}

// Empty reports whether no source contributed content.
func (c Context) Empty() bool { return c.SuccessCount == 0 }

// Aggregate concatenates the successful outcomes in the order given. Failed
// or empty outcomes are skipped. Sources are neither deduplicated nor
// reconciled; conflicting statements reach the synthesizer side by side.
func Aggregate(outcomes []extract.Outcome) Context {
	var ctx Context
	var b strings.Builder
	for _, o := range outcomes {
		if !o.Succeeded() {
			continue
		}
		blk := Block{Title: o.Source.Title, URL: o.Source.URL, Text: o.Text}
		ctx.Blocks = append(ctx.Blocks, blk)
		b.WriteString(blk.String())
	}
	ctx.Text = b.String()
	ctx.SuccessCount = len(ctx.Blocks)
	return ctx
}
