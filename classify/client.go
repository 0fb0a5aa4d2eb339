// Package classify is the boundary to the classification service: a remote
// model-backed HTTP endpoint that simplifies and categorizes interactive
// elements, plus a deterministic local fallback used when the service is
// unreachable or misbehaving.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cogniclear/cogniclear/descriptor"
)

// MaxBatch is the largest number of compact descriptors per call. The
// service bounds input size and token budget; callers chunk above this.
const MaxBatch = 50

// Client classifies a bounded batch of compact descriptors.
type Client interface {
	Classify(ctx context.Context, batch []descriptor.CompactDescriptor, pageURL, pageTitle string) ([]descriptor.ClassifiedItem, error)
}

// EndpointSource resolves the service URL at call time, so an externally
// persisted override takes effect without restarting anything.
type EndpointSource func() string

// StaticEndpoint returns an EndpointSource that always yields url.
func StaticEndpoint(url string) EndpointSource {
	return func() string { return url }
}

// Request is the wire format sent to the service.
type Request struct {
	Elements  []descriptor.CompactDescriptor `json:"elements"`
	PageURL   string                         `json:"pageUrl"`
	PageTitle string                         `json:"pageTitle"`
	// ChunkSize is set on progressive first-chunk calls so the service can
	// report remaining counts. Zero means a plain batch.
	ChunkSize int `json:"chunkSize,omitempty"`
}

// Response is the service's reply envelope.
type Response struct {
	Success           bool            `json:"success"`
	Simplified        json.RawMessage `json:"simplified"`
	Error             string          `json:"error,omitempty"`
	ProcessingTime    int64           `json:"processingTime"`
	TotalElements     int             `json:"totalElements"`
	EssentialElements int             `json:"essentialElements"`

	// Progressive variant extras.
	IsPartial      bool `json:"isPartial,omitempty"`
	ProcessedCount int  `json:"processedCount,omitempty"`
	RemainingCount int  `json:"remainingCount,omitempty"`
}

// HTTPClient talks JSON over HTTP to the classification service.
type HTTPClient struct {
	endpoint EndpointSource
	client   *http.Client
	logger   *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPClient) { h.logger = l }
}

// NewHTTPClient creates a client resolving its endpoint through src.
func NewHTTPClient(src EndpointSource, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		endpoint: src,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Classify sends one bounded batch and returns the ordered classified
// items. Every failure mode comes back as *ServiceError so the caller can
// degrade to the fallback classifier without inspecting causes.
func (h *HTTPClient) Classify(ctx context.Context, batch []descriptor.CompactDescriptor, pageURL, pageTitle string) ([]descriptor.ClassifiedItem, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch{}
	}
	if len(batch) > MaxBatch {
		return nil, ErrBatchTooLarge{Size: len(batch)}
	}

	body, err := json.Marshal(Request{
		Elements:  batch,
		PageURL:   pageURL,
		PageTitle: pageTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: marshal request: %w", err)
	}

	url := h.endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &ServiceError{Op: "status", Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Op: "request", Err: err}
	}

	var envelope Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ServiceError{Op: "decode", Err: err}
	}
	if !envelope.Success {
		return nil, &ServiceError{Op: "decode", Err: fmt.Errorf("service reported failure: %s", envelope.Error)}
	}

	var items []descriptor.ClassifiedItem
	if err := json.Unmarshal(envelope.Simplified, &items); err != nil {
		// Valid JSON envelope, but simplified is not an array.
		return nil, &ServiceError{Op: "decode", Err: err}
	}

	h.logger.DebugContext(ctx, "classify: batch done",
		"url", url, "batch", len(batch), "items", len(items),
		"elapsed", time.Since(start))
	return items, nil
}
