package browser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/hyperifyio/policygen/internal/fetch"
)

// Static is a Driver that fetches pages over plain HTTP and queries the
// parsed HTML. It runs no JavaScript, so client-rendered pages yield little
// text, but it needs no browser binary.
type Static struct {
	Client *fetch.Client

	doc  *html.Node
	url  string
	mu   sync.Mutex
	quit bool
}

// NewStaticFactory returns a Factory producing Static sessions that share client.
func NewStaticFactory(client *fetch.Client) Factory {
	return func(ctx context.Context) (Driver, error) {
		if client == nil {
			client = &fetch.Client{}
		}
		return &Static{Client: client}, nil
	}
}

func (s *Static) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit {
		return fmt.Errorf("navigate: session closed")
	}
	s.doc, s.url = nil, ""
	page, err := s.Client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	s.doc, s.url = doc, page.URL
	return nil
}

func (s *Static) WaitFor(ctx context.Context, selector string) error {
	els, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return fmt.Errorf("wait for %q: no matching element", selector)
	}
	return nil
}

func (s *Static) Remove(_ context.Context, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoPage
	}
	drop := make(map[string]bool, len(tags))
	for _, t := range tags {
		drop[strings.ToLower(strings.TrimSpace(t))] = true
	}
	var victims []*html.Node
	walk(s.doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && drop[strings.ToLower(n.Data)] {
			victims = append(victims, n)
			return false
		}
		return true
	})
	for _, n := range victims {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return nil
}

func (s *Static) Find(_ context.Context, selector string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoPage
	}
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	var out []Element
	walk(s.doc, func(n *html.Node) bool {
		if sel.matches(n) {
			out = append(out, staticElement{n: n})
		}
		return true
	})
	return out, nil
}

func (s *Static) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quit = true
	s.doc = nil
	return nil
}

type staticElement struct {
	n *html.Node
}

func (e staticElement) TextContent(context.Context) (string, error) {
	var b strings.Builder
	walk(e.n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String(), nil
}

// walk visits n and its descendants in document order. Returning false from
// visit skips the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		walk(c, visit)
		c = next
	}
}

// simpleSelector supports `tag`, `.class`, `#id` and compounds such as
// `div.content` or `section#main.policy`.
type simpleSelector struct {
	tag     string
	id      string
	classes []string
}

func parseSelector(raw string) (simpleSelector, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " >+~[]:*,") {
		return simpleSelector{}, fmt.Errorf("unsupported selector %q", raw)
	}
	var sel simpleSelector
	i := 0
	for i < len(s) && s[i] != '.' && s[i] != '#' {
		i++
	}
	sel.tag = strings.ToLower(s[:i])
	for i < len(s) {
		kind := s[i]
		j := i + 1
		for j < len(s) && s[j] != '.' && s[j] != '#' {
			j++
		}
		name := s[i+1 : j]
		if name == "" {
			return simpleSelector{}, fmt.Errorf("unsupported selector %q", raw)
		}
		if kind == '#' {
			sel.id = name
		} else {
			sel.classes = append(sel.classes, name)
		}
		i = j
	}
	return sel, nil
}

func (sel simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && !strings.EqualFold(n.Data, sel.tag) {
		return false
	}
	if sel.id != "" && attr(n, "id") != sel.id {
		return false
	}
	if len(sel.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range sel.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
