package classify

import (
	"strings"

	"github.com/cogniclear/cogniclear/descriptor"
)

// Keyword sets for rule-based categorization. Order of evaluation is a
// contract: navigation is checked first, then help, then action. Reordering
// changes the outcome for ambiguous labels like "back to help center", so
// these checks must not be rearranged.
var (
	navigationKeywords = []string{"menu", "nav", "home", "back", "next", "previous", "page"}
	actionKeywords     = []string{"submit", "send", "save", "buy", "purchase", "download", "upload", "delete", "add", "create"}
	helpKeywords       = []string{"help", "support", "faq", "contact", "about", "info"}
)

// Literal label rewrites applied after categorization. Exact match only.
var rewrites = map[string]string{
	"submit":     "Submit Form",
	"click here": "Click to Continue",
}

// Fallback is the deterministic rule-based classifier used when the remote
// service fails. It never fails, never filters: every input element comes
// back as one essential item, so the user always sees something.
type Fallback struct{}

// ClassifyLocal categorizes a batch by keyword rules. Unmatched elements
// default to Action/Task.
func (Fallback) ClassifyLocal(batch []descriptor.ElementDescriptor) []descriptor.ClassifiedItem {
	items := make([]descriptor.ClassifiedItem, len(batch))
	for i, el := range batch {
		items[i] = classifyOne(el)
	}
	return items
}

func classifyOne(el descriptor.ElementDescriptor) descriptor.ClassifiedItem {
	textLower := strings.ToLower(el.Text + " " + el.AriaLabel)

	category := descriptor.CategoryAction
	switch {
	case containsAny(textLower, navigationKeywords):
		category = descriptor.CategoryNavigation
	case containsAny(textLower, helpKeywords):
		category = descriptor.CategoryHelp
	case containsAny(textLower, actionKeywords):
		category = descriptor.CategoryAction
	}

	simplified := el.Text
	if simplified == "" {
		simplified = el.AriaLabel
	}
	if simplified == "" {
		simplified = "Click here"
	}
	if rw, ok := rewrites[strings.ToLower(simplified)]; ok {
		simplified = rw
	}

	return descriptor.ClassifiedItem{
		ID:             el.ID,
		OriginalText:   el.Text,
		SimplifiedText: simplified,
		Category:       category,
		Importance:     descriptor.ImportanceEssential,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
