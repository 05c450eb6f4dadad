package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// chromeCandidates lists locations checked, in order, when no binary is configured.
var chromeCandidates = []string{
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/usr/bin/chrome",
	"chromium-browser",
	"chromium",
	"google-chrome",
}

// RodOptions configures headless Chromium sessions.
type RodOptions struct {
	// Bin is the browser binary. Empty means auto-detect, then let rod
	// resolve or download a compatible build.
	Bin string
	// ShowWindow disables headless mode, for local debugging.
	ShowWindow bool
	UserAgent  string
}

// Rod is a Driver backed by a single Chromium tab controlled over CDP.
type Rod struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	quitOnce sync.Once
	quitErr  error
}

// NewRodFactory returns a Factory that launches one Chromium per session.
func NewRodFactory(opts RodOptions) Factory {
	return func(ctx context.Context) (Driver, error) {
		return LaunchRod(ctx, opts)
	}
}

// LaunchRod starts Chromium and opens a blank tab. The browser process is
// not bound to ctx; it lives until Quit.
func LaunchRod(ctx context.Context, opts RodOptions) (*Rod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	l := launcher.New().
		Headless(!opts.ShowWindow).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("disable-extensions").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1920,1080").
		Set("user-agent", ua)
	bin := opts.Bin
	if bin == "" {
		bin = FindChrome()
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	u, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	log.Debug().Str("bin", bin).Msg("browser session started")
	return &Rod{launcher: l, browser: b, page: page}, nil
}

// FindChrome returns the first Chromium-family binary found, or "".
func FindChrome() string {
	for _, p := range chromeCandidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
		if path, err := exec.LookPath(p); err == nil {
			return path
		}
	}
	if path, ok := launcher.LookPath(); ok {
		return path
	}
	return ""
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (r *Rod) WaitFor(ctx context.Context, selector string) error {
	if _, err := r.page.Context(ctx).Element(selector); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

const removeTagsJS = `(tags) => {
	for (const t of tags) {
		document.querySelectorAll(t).forEach((e) => e.remove());
	}
}`

func (r *Rod) Remove(ctx context.Context, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	if _, err := r.page.Context(ctx).Eval(removeTagsJS, tags); err != nil {
		return fmt.Errorf("remove elements: %w", err)
	}
	return nil
}

func (r *Rod) Find(ctx context.Context, selector string) ([]Element, error) {
	els, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, rodElement{el: el})
	}
	return out, nil
}

// Quit closes the tab and the browser, then waits for the process to exit
// and removes its profile directory. Safe to call more than once.
func (r *Rod) Quit() error {
	r.quitOnce.Do(func() {
		var errs []error
		if r.page != nil {
			if err := r.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close tab: %w", err))
			}
		}
		if r.browser != nil {
			if err := r.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if r.launcher != nil {
			r.launcher.Kill()
			r.launcher.Cleanup()
		}
		r.quitErr = errors.Join(errs...)
		log.Debug().Msg("browser session closed")
	})
	return r.quitErr
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) TextContent(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("textContent")
	if err != nil {
		return "", fmt.Errorf("textContent: %w", err)
	}
	return v.Str(), nil
}
