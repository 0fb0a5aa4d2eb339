// Package present owns the toggle between the original and simplified
// views. It tracks in-flight processing, renders through a pluggable
// Renderer, and answers state queries from external observers (the host
// popup) without mutating anything.
package present

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cogniclear/cogniclear/pipeline"
)

// Mode selects a rendering/labeling variant. It never affects data.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeVariantA Mode = "variantA"
	ModeVariantB Mode = "variantB"
)

// View names the two stable presentation states.
type View string

const (
	ViewOriginal   View = "original"
	ViewSimplified View = "simplified"
)

// ErrBusy is reported when Toggle is invoked while processing is already
// in flight. The request is rejected, not queued.
type ErrBusy struct{}

func (ErrBusy) Error() string { return "present: processing in progress" }

// ErrProcessFailed wraps a pipeline failure surfaced to the toggle caller.
// The view stays Original.
type ErrProcessFailed struct {
	Cause error
}

func (e *ErrProcessFailed) Error() string { return "present: failed to process page" }
func (e *ErrProcessFailed) Unwrap() error { return e.Cause }

// PageFunc resolves the current page identity at toggle time. SPA route
// changes move the page without reconstructing the machine.
type PageFunc func(ctx context.Context) (pipeline.Page, error)

// Machine is the presentation state machine. One instance per page
// context, constructed on page load and torn down on full navigation.
type Machine struct {
	pipe     *pipeline.Pipeline
	renderer Renderer
	page     PageFunc
	logger   *slog.Logger

	mu           sync.Mutex
	isSimplified bool
	processing   bool
	mode         Mode
}

// NewMachine creates a Machine in the Original view.
func NewMachine(pipe *pipeline.Pipeline, r Renderer, page PageFunc, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		pipe:     pipe,
		renderer: r,
		page:     page,
		logger:   logger,
		mode:     ModeNormal,
	}
}

// State reports {isSimplified, hasData} without mutating anything.
func (m *Machine) State() (isSimplified, hasData bool) {
	m.mu.Lock()
	simplified := m.isSimplified
	m.mu.Unlock()
	_, hasData = m.pipe.Result()
	return simplified, hasData
}

// Mode returns the active rendering variant.
func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode switches the rendering variant. Data is untouched.
func (m *Machine) SetMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

// Simplified reports whether the simplified view is showing.
func (m *Machine) Simplified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isSimplified
}

// Toggle flips between views. From Simplified it discards the rendered
// view and returns to Original — the pipeline result and cache survive.
// From Original it renders retained data directly when present, otherwise
// it runs the pipeline; on pipeline failure the view stays Original and
// the caller gets *ErrProcessFailed.
func (m *Machine) Toggle(ctx context.Context) (View, error) {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return ViewOriginal, ErrBusy{}
	}

	if m.isSimplified {
		m.isSimplified = false
		m.mu.Unlock()
		if err := m.renderer.Hide(ctx); err != nil {
			m.logger.Warn("present: hide failed", "error", err)
		}
		return ViewOriginal, nil
	}

	// Original → Simplified with retained data: no pipeline run.
	if res, ok := m.pipe.Result(); ok {
		m.isSimplified = true
		m.mu.Unlock()
		if err := m.renderer.Update(ctx, res.Items, false); err != nil {
			m.logger.Warn("present: render failed", "error", err)
		}
		return ViewSimplified, nil
	}

	m.processing = true
	m.mu.Unlock()

	view, err := m.process(ctx)

	m.mu.Lock()
	m.processing = false
	m.isSimplified = view == ViewSimplified
	m.mu.Unlock()
	return view, err
}

// Refresh re-runs the pipeline for the current page while staying in the
// simplified view. Navigation uses this: the in-memory result is cleared
// first so the new page's elements replace the old ones.
func (m *Machine) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if !m.isSimplified {
		m.mu.Unlock()
		return nil
	}
	if m.processing {
		m.mu.Unlock()
		return ErrBusy{}
	}
	m.processing = true
	m.mu.Unlock()

	m.pipe.ClearResult()
	_, err := m.process(ctx)

	m.mu.Lock()
	m.processing = false
	m.mu.Unlock()
	return err
}

// process runs the pipeline and renders the outcome. Partial updates
// arrive through the pipeline's OnPartial hook; this renders the final
// merged result.
func (m *Machine) process(ctx context.Context) (View, error) {
	if err := m.renderer.ShowLoading(ctx); err != nil {
		m.logger.Warn("present: loading overlay failed", "error", err)
	}

	page, err := m.page(ctx)
	if err != nil {
		m.hideQuietly(ctx)
		return ViewOriginal, &ErrProcessFailed{Cause: fmt.Errorf("present: resolve page: %w", err)}
	}

	res, err := m.pipe.Run(ctx, page)
	if err != nil {
		m.hideQuietly(ctx)
		return ViewOriginal, &ErrProcessFailed{Cause: err}
	}

	if err := m.renderer.Update(ctx, res.Items, false); err != nil {
		m.logger.Warn("present: render failed", "error", err)
	}
	return ViewSimplified, nil
}

func (m *Machine) hideQuietly(ctx context.Context) {
	if err := m.renderer.Hide(ctx); err != nil {
		m.logger.Debug("present: hide failed", "error", err)
	}
}
