// Package descriptor defines the structured types flowing through the
// simplification pipeline. These are the public API contract: the extractor
// produces ElementDescriptors, the classifier consumes CompactDescriptors
// and produces ClassifiedItems.
package descriptor

// Rect is an element's rendered bounding box, in CSS pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementDescriptor is one interactive candidate found on a page.
// IDs are stable within a single page load: elements with a native id keep
// it, all others are tagged with a generated identifier so UI interactions
// can resolve back to the live node.
type ElementDescriptor struct {
	ID              string `json:"id"`
	Text            string `json:"text"` // visible label, ≤ MaxTextLen
	AriaLabel       string `json:"ariaLabel"`
	AriaDescribedBy string `json:"ariaDescribedBy"`
	ParentText      string `json:"parentText"` // nearest ancestor direct text, ≤ MaxParentTextLen
	Type            string `json:"type"`       // tag name, or ARIA role when present
	Href            string `json:"href"`
	Position        Rect   `json:"position"`
	IsVisible       bool   `json:"isVisible"`
}

// Field length caps applied at extraction time.
const (
	MaxTextLen       = 200
	MaxParentTextLen = 100
)

// CompactDescriptor is an ElementDescriptor reduced for transmission to the
// classification service, which bounds input size and token budget.
// It never carries Href or Position.
type CompactDescriptor struct {
	ID         string `json:"id"`
	Text       string `json:"text"`       // ≤ 100
	AriaLabel  string `json:"ariaLabel"`  // ≤ 50
	ParentText string `json:"parentText"` // ≤ 50
	Type       string `json:"type"`
}

// Compact reduces a full descriptor to its compact wire form.
func (d ElementDescriptor) Compact() CompactDescriptor {
	return CompactDescriptor{
		ID:         d.ID,
		Text:       truncate(d.Text, 100),
		AriaLabel:  truncate(d.AriaLabel, 50),
		ParentText: truncate(d.ParentText, 50),
		Type:       d.Type,
	}
}

// CompactAll maps Compact over a slice, preserving order.
func CompactAll(els []ElementDescriptor) []CompactDescriptor {
	out := make([]CompactDescriptor, len(els))
	for i, el := range els {
		out[i] = el.Compact()
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
