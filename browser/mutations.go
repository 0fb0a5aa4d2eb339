package browser

import (
	"context"
	"fmt"
	"time"
)

const mutationCounterJS = `() => {
	if (window.__cogniMutationObserver) return '';
	window.__cogniMutationCount = 0;
	window.__cogniMutationObserver = new MutationObserver((records) => {
		let n = 0;
		for (const r of records) {
			n += r.addedNodes.length + r.removedNodes.length;
		}
		window.__cogniMutationCount += n;
	});
	window.__cogniMutationObserver.observe(document.documentElement, {
		childList: true,
		subtree: true
	});
	return '';
}`

const drainMutationJS = `() => {
	const n = window.__cogniMutationCount || 0;
	window.__cogniMutationCount = 0;
	return String(n);
}`

// InjectMutationCounter installs a page-side MutationObserver accumulating
// added+removed node counts. Idempotent.
func (t *Tab) InjectMutationCounter(ctx context.Context) error {
	if _, err := t.Page.Context(ctx).Eval(mutationCounterJS); err != nil {
		return fmt.Errorf("browser: inject mutation counter: %w", err)
	}
	return nil
}

// DrainMutationCount returns the node count accumulated since the last
// drain and resets it.
func (t *Tab) DrainMutationCount(ctx context.Context) (int, error) {
	res, err := t.Page.Context(ctx).Eval(drainMutationJS)
	if err != nil {
		return 0, fmt.Errorf("browser: drain mutation count: %w", err)
	}
	n := 0
	fmt.Sscanf(res.Value.Str(), "%d", &n)
	return n, nil
}

// StreamMutationCounts injects the counter and polls it on the given
// interval, delivering each non-zero batch size on the returned channel
// until ctx is cancelled. The channel is closed on exit.
func (t *Tab) StreamMutationCounts(ctx context.Context, interval time.Duration) (<-chan int, error) {
	if err := t.InjectMutationCounter(ctx); err != nil {
		return nil, err
	}

	ch := make(chan int, 16)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := t.DrainMutationCount(ctx)
				if err != nil || n == 0 {
					continue
				}
				select {
				case ch <- n:
				default:
					// Consumer lagging; drop rather than block the poll.
				}
			}
		}
	}()
	return ch, nil
}
