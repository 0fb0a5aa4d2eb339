package descriptor

// Category is one of the three presentation groups.
type Category string

const (
	CategoryNavigation Category = "Navigation"
	CategoryAction     Category = "Action/Task"
	CategoryHelp       Category = "Help/Support"
)

// Categories lists the groups in presentation order.
var Categories = []Category{CategoryNavigation, CategoryAction, CategoryHelp}

// Importance marks whether an element matters for the user's primary goals.
type Importance string

const (
	ImportanceEssential Importance = "essential"
	ImportanceNoise     Importance = "noise"
)

// ClassifiedItem is the classifier's verdict for one input descriptor.
// ID references the input descriptor's ID. Only essential items are
// retained downstream.
type ClassifiedItem struct {
	ID             string     `json:"id"`
	OriginalText   string     `json:"originalText"`
	SimplifiedText string     `json:"simplifiedText"`
	Category       Category   `json:"category"`
	Importance     Importance `json:"importance"`
}

// Essential filters a sequence down to essential items, preserving order.
func Essential(items []ClassifiedItem) []ClassifiedItem {
	out := make([]ClassifiedItem, 0, len(items))
	for _, it := range items {
		if it.Importance == ImportanceEssential {
			out = append(out, it)
		}
	}
	return out
}

// GroupByCategory splits items into the three category groups. Insertion
// order within each category is preserved; items with an unknown category
// are dropped (the service contract only permits the three).
func GroupByCategory(items []ClassifiedItem) map[Category][]ClassifiedItem {
	groups := make(map[Category][]ClassifiedItem, len(Categories))
	for _, it := range items {
		switch it.Category {
		case CategoryNavigation, CategoryAction, CategoryHelp:
			groups[it.Category] = append(groups[it.Category], it)
		}
	}
	return groups
}
