// Package navwatch detects single-page-app route changes and turns them
// into debounced refresh actions. It standardises the "poll, detect
// change, debounce, act" loop so rapid successive changes — and false
// positives from ordinary clicks — coalesce into a single refresh.
//
// The watcher is deliberately decoupled from any observation mechanism:
// it needs a URL source and, optionally, a channel of mutation batch
// sizes. The live wiring adapts a browser tab; tests feed both directly.
package navwatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the URL polling frequency. Default: 500ms.
	Interval time.Duration
	// Debounce is the quiet period after a change signal before the
	// refresh fires. More signals during the window reset the timer.
	// Default: 1s.
	Debounce time.Duration
	// MutationThreshold: a mutation batch adding or removing strictly
	// more than this many nodes counts as a possible navigation.
	// Default: 10.
	MutationThreshold int
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.Debounce <= 0 {
		o.Debounce = time.Second
	}
	if o.MutationThreshold <= 0 {
		o.MutationThreshold = 10
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// URLSource reads the page's current location.
type URLSource func(ctx context.Context) (string, error)

// Stats are point-in-time counters.
type Stats struct {
	Checks    int64 `json:"checks"`
	Signals   int64 `json:"signals"`
	Refreshes int64 `json:"refreshes"`
	Skipped   int64 `json:"skipped"`
	Errors    int64 `json:"errors"`
}

// Watcher polls the page URL and listens for large mutation batches,
// firing a debounced refresh when navigation is detected.
type Watcher struct {
	url       URLSource
	mutations <-chan int
	opts      Options

	checks    atomic.Int64
	signals   atomic.Int64
	refreshes atomic.Int64
	skipped   atomic.Int64
	errors    atomic.Int64
}

// New creates a Watcher. mutations may be nil when only URL polling is
// available. Call Run to start the loop.
func New(url URLSource, mutations <-chan int, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{url: url, mutations: mutations, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:    w.checks.Load(),
		Signals:   w.signals.Load(),
		Refreshes: w.refreshes.Load(),
		Skipped:   w.skipped.Load(),
		Errors:    w.errors.Load(),
	}
}

// Run blocks until ctx is cancelled. When a navigation signal survives the
// debounce window, the URL is re-read and compared against the last page
// the action ran for: a genuine route change fires action once; a
// mutation-only burst on an unchanged URL is dropped. guard is consulted
// at fire time — when it reports false (view not simplified) the signal is
// discarded entirely.
func (w *Watcher) Run(ctx context.Context, guard func() bool, action func(ctx context.Context) error) {
	log := w.opts.Logger

	// lastURL is the page the action last ran for; lastSeen tracks what the
	// poller observed so a pending change signals once, not on every tick.
	lastURL := ""
	if u, err := w.url(ctx); err == nil {
		lastURL = u
	} else {
		w.errors.Add(1)
		log.Warn("navwatch: initial url read failed", "error", err)
	}
	lastSeen := lastURL

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := false

	signal := func(reason string) {
		w.signals.Add(1)
		pending = true
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.NewTimer(w.opts.Debounce)
		debounceCh = debounceTimer.C
		log.Debug("navwatch: change signal, debouncing", "reason", reason)
	}

	log.Info("navwatch: started",
		"interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			log.Info("navwatch: stopped")
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.url(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("navwatch: url check failed", "error", err)
				continue
			}
			if cur != lastSeen && cur != "" {
				lastSeen = cur
				signal("url")
			}

		case n, ok := <-w.mutations:
			if !ok {
				w.mutations = nil
				continue
			}
			if n > w.opts.MutationThreshold {
				signal("mutations")
			}

		case <-debounceCh:
			debounceCh = nil
			debounceTimer = nil
			if !pending {
				continue
			}
			pending = false

			cur, err := w.url(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("navwatch: url re-read failed", "error", err)
				continue
			}
			if cur == lastURL {
				// Mutation burst without a route change — a click, not
				// a navigation.
				w.skipped.Add(1)
				log.Debug("navwatch: url unchanged, ignoring")
				continue
			}

			from := lastURL
			lastURL = cur
			lastSeen = cur

			if !guard() {
				// Route changed but the view is original — move the
				// baseline without refreshing.
				w.skipped.Add(1)
				log.Debug("navwatch: view not simplified, ignoring", "url", cur)
				continue
			}

			log.Info("navwatch: navigation detected", "from", from, "to", cur)
			w.refreshes.Add(1)
			if err := action(ctx); err != nil {
				w.errors.Add(1)
				log.Warn("navwatch: refresh failed", "error", err)
			}
		}
	}
}
