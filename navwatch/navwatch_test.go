package navwatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeLocation is a settable URL source.
type fakeLocation struct {
	mu  sync.Mutex
	url string
}

func (f *fakeLocation) set(u string) {
	f.mu.Lock()
	f.url = u
	f.mu.Unlock()
}

func (f *fakeLocation) source(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func fastOptions() Options {
	return Options{
		Interval:          5 * time.Millisecond,
		Debounce:          25 * time.Millisecond,
		MutationThreshold: 10,
	}
}

func alwaysSimplified() bool { return true }

func runWatcher(t *testing.T, w *Watcher, guard func() bool, refreshes *atomic.Int64) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, guard, func(ctx context.Context) error {
			refreshes.Add(1)
			return nil
		})
	}()
	return func() {
		stop()
		<-done
	}
}

func TestURLChangeFiresOneRefresh(t *testing.T) {
	loc := &fakeLocation{url: "https://app.example.com/home"}
	w := New(loc.source, nil, fastOptions())

	var refreshes atomic.Int64
	stop := runWatcher(t, w, alwaysSimplified, &refreshes)
	defer stop()

	time.Sleep(20 * time.Millisecond) // let the baseline settle
	loc.set("https://app.example.com/settings")

	time.Sleep(100 * time.Millisecond)
	if got := refreshes.Load(); got != 1 {
		t.Errorf("refreshes: got %d, want 1", got)
	}
}

func TestRapidChangesCoalesce(t *testing.T) {
	loc := &fakeLocation{url: "https://app.example.com/step0"}
	w := New(loc.source, nil, fastOptions())

	var refreshes atomic.Int64
	stop := runWatcher(t, w, alwaysSimplified, &refreshes)
	defer stop()

	time.Sleep(20 * time.Millisecond)

	// Three route changes inside one debounce window.
	loc.set("https://app.example.com/step1")
	time.Sleep(10 * time.Millisecond)
	loc.set("https://app.example.com/step2")
	time.Sleep(10 * time.Millisecond)
	loc.set("https://app.example.com/step3")

	time.Sleep(100 * time.Millisecond)
	if got := refreshes.Load(); got != 1 {
		t.Errorf("refreshes: got %d, want 1 (coalesced)", got)
	}
}

func TestGuardSuppressesRefresh(t *testing.T) {
	loc := &fakeLocation{url: "https://app.example.com/a"}
	w := New(loc.source, nil, fastOptions())

	var refreshes atomic.Int64
	stop := runWatcher(t, w, func() bool { return false }, &refreshes)
	defer stop()

	time.Sleep(20 * time.Millisecond)
	loc.set("https://app.example.com/b")

	time.Sleep(100 * time.Millisecond)
	if got := refreshes.Load(); got != 0 {
		t.Errorf("refreshes: got %d, want 0 (view not simplified)", got)
	}
	if w.Stats().Skipped == 0 {
		t.Error("skipped counter not incremented")
	}
}

func TestMutationBurstTriggersSignal(t *testing.T) {
	loc := &fakeLocation{url: "https://app.example.com/a"}
	mutations := make(chan int, 4)
	w := New(loc.source, mutations, fastOptions())

	var refreshes atomic.Int64
	stop := runWatcher(t, w, alwaysSimplified, &refreshes)
	defer stop()

	time.Sleep(20 * time.Millisecond)

	// The mutation burst accompanies a route change the poller might miss
	// between ticks. The burst signals, the debounce-time URL re-read
	// confirms.
	loc.set("https://app.example.com/b")
	mutations <- 40

	time.Sleep(100 * time.Millisecond)
	if got := refreshes.Load(); got != 1 {
		t.Errorf("refreshes: got %d, want 1", got)
	}
}

func TestMutationBurstWithoutNavigationIgnored(t *testing.T) {
	loc := &fakeLocation{url: "https://app.example.com/a"}
	mutations := make(chan int, 4)
	w := New(loc.source, mutations, fastOptions())

	var refreshes atomic.Int64
	stop := runWatcher(t, w, alwaysSimplified, &refreshes)
	defer stop()

	time.Sleep(20 * time.Millisecond)

	// Big DOM churn, same URL: an accordion or infinite scroll, not a
	// navigation.
	mutations <- 50

	time.Sleep(100 * time.Millisecond)
	if got := refreshes.Load(); got != 0 {
		t.Errorf("refreshes: got %d, want 0", got)
	}
	if w.Stats().Skipped == 0 {
		t.Error("skipped counter not incremented")
	}
}

func TestSmallMutationBatchBelowThreshold(t *testing.T) {
	loc := &fakeLocation{url: "https://app.example.com/a"}
	mutations := make(chan int, 4)
	w := New(loc.source, mutations, fastOptions())

	var refreshes atomic.Int64
	stop := runWatcher(t, w, alwaysSimplified, &refreshes)
	defer stop()

	time.Sleep(20 * time.Millisecond)
	mutations <- 3 // below threshold, not even a signal

	time.Sleep(60 * time.Millisecond)
	if w.Stats().Signals != 0 {
		t.Errorf("signals: got %d, want 0", w.Stats().Signals)
	}
}
