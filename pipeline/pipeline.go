// Package pipeline orchestrates progressive classification: a small first
// chunk for a fast partial result, then the remainder in the background,
// merged in original element order. One Pipeline serves one page context;
// invocations are serialized by a re-entrancy guard, never queued.
//
// Remote classifier failures are absorbed here — the fallback classifier
// substitutes locally and the caller never sees a service error. Only two
// conditions escape: extraction finding nothing, and re-entry.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cogniclear/cogniclear/cache"
	"github.com/cogniclear/cogniclear/classify"
	"github.com/cogniclear/cogniclear/descriptor"
	"github.com/cogniclear/cogniclear/idgen"
)

// State names the pipeline's position within one invocation.
type State string

const (
	StateIdle              State = "idle"
	StateLoadingFirstChunk State = "loading_first_chunk"
	StateFirstChunkReady   State = "first_chunk_ready"
	StateLoadingRemainder  State = "loading_remainder"
	StateComplete          State = "complete"
	StateFailed            State = "failed"
)

// Defaults for chunking. FirstChunkSize elements are classified up front;
// everything past MaxElements is discarded.
const (
	DefaultFirstChunkSize = 5
	DefaultMaxElements    = 100
)

// Page identifies the document being processed.
type Page struct {
	URL   string
	Title string
}

// ExtractFunc produces the page's interactive candidates. The pipeline owns
// the returned slice.
type ExtractFunc func(ctx context.Context) ([]descriptor.ElementDescriptor, error)

// Result is what an invocation produces.
type Result struct {
	Items             []descriptor.ClassifiedItem `json:"items"`
	Cached            bool                        `json:"cached"`
	Partial           bool                        `json:"partial"`
	ProcessingTime    time.Duration               `json:"processingTime"`
	TotalElements     int                         `json:"totalElements"`
	EssentialElements int                         `json:"essentialElements"`
}

// Stats are point-in-time counters.
type Stats struct {
	Runs      int64 `json:"runs"`
	CacheHits int64 `json:"cache_hits"`
	Fallbacks int64 `json:"fallbacks"`
	Rejected  int64 `json:"rejected"`
	Failed    int64 `json:"failed"`
}

// Pipeline drives progressive classification for one page context.
type Pipeline struct {
	extract   ExtractFunc
	client    classify.Client
	fallback  classify.Fallback
	cache     *cache.Cache
	onPartial func(Result)
	logger    *slog.Logger
	ids       idgen.Generator

	firstChunkSize int
	maxElements    int

	mu     sync.Mutex
	state  State
	result *Result // last complete result, cleared on navigation

	runs      atomic.Int64
	cacheHits atomic.Int64
	fallbacks atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOnPartial registers a callback fired when the first chunk is ready,
// strictly before the remainder is dispatched.
func WithOnPartial(fn func(Result)) Option {
	return func(p *Pipeline) { p.onPartial = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithChunking overrides the first-chunk size and total element cap.
func WithChunking(first, max int) Option {
	return func(p *Pipeline) {
		if first > 0 {
			p.firstChunkSize = first
		}
		if max > 0 {
			p.maxElements = max
		}
	}
}

// WithIDGenerator overrides the invocation-ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(p *Pipeline) { p.ids = gen }
}

// New creates a Pipeline over an extractor, a classifier client, and a
// response cache.
func New(extract ExtractFunc, client classify.Client, c *cache.Cache, opts ...Option) *Pipeline {
	p := &Pipeline{
		extract:        extract,
		client:         client,
		cache:          c,
		logger:         slog.Default(),
		ids:            idgen.Prefixed("run_", idgen.Default),
		firstChunkSize: DefaultFirstChunkSize,
		maxElements:    DefaultMaxElements,
		state:          StateIdle,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the last complete result, if any.
func (p *Pipeline) Result() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return Result{}, false
	}
	return *p.result, true
}

// ClearResult drops the in-memory result. Navigation uses this so the next
// run reflects the new page; the cache entry for the old page survives.
func (p *Pipeline) ClearResult() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = nil
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Runs:      p.runs.Load(),
		CacheHits: p.cacheHits.Load(),
		Fallbacks: p.fallbacks.Load(),
		Rejected:  p.rejected.Load(),
		Failed:    p.failed.Load(),
	}
}

// Run executes one invocation for the given page. On cache hit it completes
// immediately with the cached data and performs no extraction or remote
// calls. Re-entry while a run is in flight returns *ErrAlreadyRunning.
func (p *Pipeline) Run(ctx context.Context, page Page) (Result, error) {
	if err := p.enter(); err != nil {
		p.rejected.Add(1)
		return Result{}, err
	}
	p.runs.Add(1)

	runID := p.ids()
	log := p.logger.With("run_id", runID, "url", page.URL)
	start := time.Now()

	// 1. Cache first: a valid entry bypasses extraction and the service.
	if items, ok := p.cache.Get(page.URL); ok {
		res := Result{
			Items:             items,
			Cached:            true,
			ProcessingTime:    0,
			TotalElements:     len(items),
			EssentialElements: len(items),
		}
		p.finish(StateComplete, &res)
		p.cacheHits.Add(1)
		log.Info("pipeline: served from cache", "items", len(items))
		return res, nil
	}

	// 2. Extract.
	els, err := p.extract(ctx)
	if err != nil || len(els) == 0 {
		p.failed.Add(1)
		p.finish(StateFailed, nil)
		if err != nil {
			log.Warn("pipeline: extraction failed", "error", err)
		}
		return Result{}, &ErrNoElements{PageURL: page.URL}
	}

	// 3. Partition. Elements beyond the cap are discarded.
	if len(els) > p.maxElements {
		log.Info("pipeline: capping elements", "extracted", len(els), "cap", p.maxElements)
		els = els[:p.maxElements]
	}
	split := p.firstChunkSize
	if split > len(els) {
		split = len(els)
	}
	first, rest := els[:split], els[split:]

	// 4. First chunk — fast partial result. enter() already moved the
	// state to LoadingFirstChunk.
	firstItems, err := p.classifyChunk(ctx, first, page)
	if err != nil {
		// Only context cancellation escapes classifyChunk.
		p.failed.Add(1)
		p.finish(StateFailed, nil)
		return Result{}, err
	}
	p.setState(StateFirstChunkReady)

	if p.onPartial != nil {
		p.onPartial(Result{
			Items:             firstItems,
			Partial:           true,
			ProcessingTime:    time.Since(start),
			TotalElements:     len(els),
			EssentialElements: len(firstItems),
		})
	}
	log.Info("pipeline: first chunk ready",
		"chunk", len(first), "items", len(firstItems), "remaining", len(rest))

	// 5. Remainder, then merge preserving original element order.
	merged := firstItems
	if len(rest) > 0 {
		p.setState(StateLoadingRemainder)
		restItems, err := p.classifyChunk(ctx, rest, page)
		if err != nil {
			p.failed.Add(1)
			p.finish(StateFailed, nil)
			return Result{}, err
		}
		merged = append(merged, restItems...)
	}

	res := Result{
		Items:             merged,
		ProcessingTime:    time.Since(start),
		TotalElements:     len(els),
		EssentialElements: len(merged),
	}

	// Only the fully merged sequence is ever cached.
	p.cache.Put(page.URL, merged)
	p.finish(StateComplete, &res)
	log.Info("pipeline: complete",
		"elements", len(els), "items", len(merged), "elapsed", res.ProcessingTime)
	return res, nil
}

// classifyChunk classifies a chunk, splitting it into service-sized
// batches. A service failure substitutes the local fallback for that batch
// and continues; context cancellation is returned as-is.
func (p *Pipeline) classifyChunk(ctx context.Context, els []descriptor.ElementDescriptor, page Page) ([]descriptor.ClassifiedItem, error) {
	var out []descriptor.ClassifiedItem

	for off := 0; off < len(els); off += classify.MaxBatch {
		end := off + classify.MaxBatch
		if end > len(els) {
			end = len(els)
		}
		batch := els[off:end]

		items, err := p.client.Classify(ctx, descriptor.CompactAll(batch), page.URL, page.Title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.fallbacks.Add(1)
			p.logger.Warn("pipeline: service failed, using fallback",
				"batch", len(batch), "error", err)
			items = p.fallback.ClassifyLocal(batch)
		}
		out = append(out, descriptor.Essential(items)...)
	}
	return out, nil
}

// enter takes the re-entrancy guard. A pipeline is re-runnable from Idle,
// Complete, and Failed; anything else is in flight.
func (p *Pipeline) enter() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateIdle, StateComplete, StateFailed:
		p.state = StateLoadingFirstChunk
		return nil
	default:
		return &ErrAlreadyRunning{State: p.state}
	}
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) finish(s State, res *Result) {
	p.mu.Lock()
	p.state = s
	if res != nil {
		p.result = res
	}
	p.mu.Unlock()
}
