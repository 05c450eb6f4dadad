// Package browser defines the small capability set the extractor needs from
// a browser-automation session, with a headless Chromium implementation
// (go-rod) and a JavaScript-less HTTP implementation.
package browser

import (
	"context"
	"errors"
)

// Driver is one browser session. A Driver is not safe for concurrent use;
// each pipeline run owns its own.
type Driver interface {
	// Navigate loads url in the session. The context bounds the page load.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until an element matching selector exists or ctx ends.
	WaitFor(ctx context.Context, selector string) error
	// Remove deletes every element with one of the given tag names.
	Remove(ctx context.Context, tags []string) error
	// Find returns the elements matching a CSS selector, possibly none.
	Find(ctx context.Context, selector string) ([]Element, error)
	// Quit releases the session and any process behind it.
	Quit() error
}

// Element is a located node in the current page.
type Element interface {
	// TextContent returns the DOM textContent of the node.
	TextContent(ctx context.Context) (string, error)
}

// Factory creates a new session.
type Factory func(ctx context.Context) (Driver, error)

// ErrNoPage is returned by operations that need a loaded document.
var ErrNoPage = errors.New("no page loaded")

const (
	// DefaultUserAgent matches a current desktop Chrome on Linux.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)
