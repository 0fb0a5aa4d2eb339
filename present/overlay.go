package present

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cogniclear/cogniclear/browser"
	"github.com/cogniclear/cogniclear/descriptor"
)

//go:embed overlay.js
var overlayJS string

const loadingJS = `(title) => {
	const id = 'cogniclear-overlay';
	let overlay = document.getElementById(id);
	if (overlay) overlay.remove();
	overlay = document.createElement('div');
	overlay.id = id;
	overlay.className = 'cogniclear-overlay';
	const header = document.createElement('div');
	header.className = 'cogniclear-header';
	const h2 = document.createElement('h2');
	h2.textContent = title;
	header.appendChild(h2);
	overlay.appendChild(header);
	const loading = document.createElement('div');
	loading.className = 'cogniclear-loading';
	loading.textContent = 'Processing first elements...';
	overlay.appendChild(loading);
	document.body.appendChild(overlay);
	return '';
}`

const hideJS = `() => {
	const overlay = document.getElementById('cogniclear-overlay');
	if (overlay) overlay.remove();
	return '';
}`

// overlayTitles maps the rendering mode to the header label. Modes change
// labeling only, never data.
var overlayTitles = map[Mode]string{
	ModeNormal:   "Simplified View",
	ModeVariantA: "Easy View",
	ModeVariantB: "Focus View",
}

// renderGroup is the wire shape handed to overlay.js.
type renderGroup struct {
	Category string       `json:"category"`
	Items    []renderItem `json:"items"`
}

type renderItem struct {
	ID             string `json:"id"`
	OriginalText   string `json:"originalText"`
	SimplifiedText string `json:"simplifiedText"`
}

// OverlayRenderer injects the simplified view into a live page. Labels are
// produced by a remote model, so everything is sanitized before it touches
// the DOM.
type OverlayRenderer struct {
	tab    *browser.Tab
	mode   func() Mode
	policy *bluemonday.Policy
}

// NewOverlayRenderer renders into tab. mode is read per render so variant
// switches take effect immediately; nil means always ModeNormal.
func NewOverlayRenderer(tab *browser.Tab, mode func() Mode) *OverlayRenderer {
	if mode == nil {
		mode = func() Mode { return ModeNormal }
	}
	return &OverlayRenderer{
		tab:    tab,
		mode:   mode,
		policy: bluemonday.StrictPolicy(),
	}
}

func (r *OverlayRenderer) title() string {
	if t, ok := overlayTitles[r.mode()]; ok {
		return t
	}
	return overlayTitles[ModeNormal]
}

func (r *OverlayRenderer) ShowLoading(ctx context.Context) error {
	_, err := r.tab.Page.Context(ctx).Eval(loadingJS, r.title())
	if err != nil {
		return fmt.Errorf("present: show loading: %w", err)
	}
	return nil
}

func (r *OverlayRenderer) Update(ctx context.Context, items []descriptor.ClassifiedItem, partial bool) error {
	groups := descriptor.GroupByCategory(items)
	payload := make([]renderGroup, 0, len(descriptor.Categories))
	for _, cat := range descriptor.Categories {
		g := renderGroup{Category: string(cat), Items: []renderItem{}}
		for _, it := range groups[cat] {
			g.Items = append(g.Items, renderItem{
				ID:             it.ID,
				OriginalText:   r.policy.Sanitize(it.OriginalText),
				SimplifiedText: r.policy.Sanitize(it.SimplifiedText),
			})
		}
		payload = append(payload, g)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("present: encode groups: %w", err)
	}

	_, err = r.tab.Page.Context(ctx).Eval(overlayJS, string(data), r.title(), partial)
	if err != nil {
		return fmt.Errorf("present: render overlay: %w", err)
	}
	return nil
}

func (r *OverlayRenderer) Hide(ctx context.Context) error {
	_, err := r.tab.Page.Context(ctx).Eval(hideJS)
	if err != nil {
		return fmt.Errorf("present: hide overlay: %w", err)
	}
	return nil
}
