package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with the setup the pipeline needs: stealth,
// resource blocking, and JSON-returning script evaluation.
type Tab struct {
	Page    *rod.Page
	PageURL string
}

// OpenTab creates a new tab and navigates to the URL.
func (m *Manager) OpenTab(ctx context.Context, pageURL string) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL}, nil
}

// EvalJSON evaluates a JS function that returns a JSON string and hands
// back the raw bytes for unmarshalling.
func (t *Tab) EvalJSON(ctx context.Context, script string) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(script)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// URL returns the tab's current location. SPA route changes move it
// without a full navigation, so this re-reads the live value.
func (t *Tab) URL(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: read url: %w", err)
	}
	return res.Value.Str(), nil
}

// Title returns the document title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("browser: read title: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
