package present

import (
	"context"
	"log/slog"

	"github.com/cogniclear/cogniclear/descriptor"
)

// Renderer is the output side of the presentation layer. Implementations
// deliver the simplified view to different surfaces: the live page DOM, or
// logs when running headless.
type Renderer interface {
	// ShowLoading displays the processing indicator.
	ShowLoading(ctx context.Context) error
	// Update renders classified items grouped by category. With partial
	// true the view keeps its loading indicator for the remainder; items
	// are appended, not replaced.
	Update(ctx context.Context, items []descriptor.ClassifiedItem, partial bool) error
	// Hide removes the simplified view entirely.
	Hide(ctx context.Context) error
}

// LogRenderer writes the simplified view to a logger. Used headless and in
// tests.
type LogRenderer struct {
	Logger *slog.Logger
}

func (r *LogRenderer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *LogRenderer) ShowLoading(ctx context.Context) error {
	r.logger().InfoContext(ctx, "render: processing")
	return nil
}

func (r *LogRenderer) Update(ctx context.Context, items []descriptor.ClassifiedItem, partial bool) error {
	groups := descriptor.GroupByCategory(items)
	for _, cat := range descriptor.Categories {
		for _, it := range groups[cat] {
			r.logger().InfoContext(ctx, "render: item",
				"category", string(cat), "label", it.SimplifiedText, "id", it.ID, "partial", partial)
		}
	}
	return nil
}

func (r *LogRenderer) Hide(ctx context.Context) error {
	r.logger().InfoContext(ctx, "render: hidden")
	return nil
}
