package extract

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/cogniclear/cogniclear/browser"
	"github.com/cogniclear/cogniclear/descriptor"
)

//go:embed extract.js
var extractJS string

// FromPage extracts interactive candidates from a live page. The injected
// script applies the same selection, labeling, and idempotent tagging rules
// as FromNode, but with computed styles and real bounding boxes. Elements
// without a rendered size are excluded.
func FromPage(ctx context.Context, tab *browser.Tab) ([]descriptor.ElementDescriptor, error) {
	raw, err := tab.EvalJSON(ctx, extractJS)
	if err != nil {
		return nil, fmt.Errorf("extract: page eval: %w", err)
	}

	var els []descriptor.ElementDescriptor
	if err := json.Unmarshal(raw, &els); err != nil {
		return nil, fmt.Errorf("extract: decode descriptors: %w", err)
	}
	return els, nil
}
