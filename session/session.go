// Package session binds one page context together: the presentation state
// machine, its pipeline, the shared response cache, and the message
// handlers external coordinators talk to. A Session lives as long as its
// page context and is torn down on full navigation.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cogniclear/cogniclear/bus"
	"github.com/cogniclear/cogniclear/cache"
	"github.com/cogniclear/cogniclear/classify"
	"github.com/cogniclear/cogniclear/descriptor"
	"github.com/cogniclear/cogniclear/pipeline"
	"github.com/cogniclear/cogniclear/present"
)

// Session owns the per-page stack and exposes it over the message bus.
type Session struct {
	machine  *present.Machine
	pipe     *pipeline.Pipeline
	cache    *cache.Cache
	client   classify.Client
	fallback classify.Fallback
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New assembles a Session over an already-constructed machine and its
// collaborators.
func New(m *present.Machine, p *pipeline.Pipeline, c *cache.Cache, client classify.Client, opts ...Option) *Session {
	s := &Session{
		machine: m,
		pipe:    p,
		cache:   c,
		client:  client,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Machine exposes the presentation state machine, e.g. for navigation
// wiring.
func (s *Session) Machine() *present.Machine { return s.machine }

// Register installs the session's handlers on the router. Handlers that
// hit the network are wrapped so a classifier outage degrades to local
// rules instead of failing the call.
func (s *Session) Register(r *bus.Router) {
	r.RegisterLocal(bus.MsgToggleSimplified, s.HandleToggle)
	r.RegisterLocal(bus.MsgGetState, s.HandleGetState)
	r.RegisterLocal(bus.MsgProcessProgressive, s.HandleProcessProgressive)
	r.RegisterLocal(bus.MsgClearCache, s.HandleClearCache)
	r.RegisterLocal(bus.MsgGetCacheSize, s.HandleGetCacheSize)

	process := bus.Chain(
		bus.Recovery(s.logger),
		bus.WithFallback(s.handleProcessLocal, bus.MsgProcessElements, s.logger),
	)(s.handleProcessRemote)
	r.RegisterLocal(bus.MsgProcessElements, process)
}

// toggleResponse answers a toggle request.
type toggleResponse struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// HandleToggle flips between the original and simplified views.
func (s *Session) HandleToggle(ctx context.Context, _ []byte) ([]byte, error) {
	view, err := s.machine.Toggle(ctx)
	resp := toggleResponse{Success: err == nil, State: string(view)}
	if err != nil {
		resp.Error = err.Error()
		s.logger.Warn("session: toggle failed", "error", err)
	}
	return json.Marshal(resp)
}

type stateResponse struct {
	IsSimplified bool `json:"isSimplified"`
	HasData      bool `json:"hasData"`
}

// HandleGetState reports the presentation state without mutating it.
func (s *Session) HandleGetState(ctx context.Context, _ []byte) ([]byte, error) {
	simplified, hasData := s.machine.State()
	return json.Marshal(stateResponse{IsSimplified: simplified, HasData: hasData})
}

// processRequest is the payload for one-shot element classification.
type processRequest struct {
	Elements  []descriptor.ElementDescriptor `json:"elements"`
	PageURL   string                         `json:"pageUrl"`
	PageTitle string                         `json:"pageTitle"`
}

type processResponse struct {
	Success           bool                        `json:"success"`
	Items             []descriptor.ClassifiedItem `json:"items"`
	TotalElements     int                         `json:"totalElements"`
	EssentialElements int                         `json:"essentialElements"`
}

// handleProcessRemote classifies a caller-supplied batch through the
// remote service. The fallback middleware catches its failures.
func (s *Session) handleProcessRemote(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := decodeProcessRequest(payload)
	if err != nil {
		return nil, err
	}
	items, err := s.client.Classify(ctx, descriptor.CompactAll(req.Elements), req.PageURL, req.PageTitle)
	if err != nil {
		return nil, err
	}
	return encodeProcessResponse(len(req.Elements), items)
}

// handleProcessLocal is the degraded path: same contract, local rules.
func (s *Session) handleProcessLocal(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := decodeProcessRequest(payload)
	if err != nil {
		return nil, err
	}
	items := s.fallback.ClassifyLocal(req.Elements)
	return encodeProcessResponse(len(req.Elements), items)
}

func decodeProcessRequest(payload []byte) (processRequest, error) {
	var req processRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("session: decode process request: %w", err)
	}
	if len(req.Elements) == 0 {
		return req, classify.ErrEmptyBatch{}
	}
	return req, nil
}

func encodeProcessResponse(total int, items []descriptor.ClassifiedItem) ([]byte, error) {
	essential := descriptor.Essential(items)
	return json.Marshal(processResponse{
		Success:           true,
		Items:             essential,
		TotalElements:     total,
		EssentialElements: len(essential),
	})
}

// HandleProcessProgressive runs the progressive pipeline for the current
// page and returns the merged result. Partial results are delivered
// through the pipeline's OnPartial hook, not this response.
func (s *Session) HandleProcessProgressive(ctx context.Context, payload []byte) ([]byte, error) {
	var page pipeline.Page
	if len(payload) > 0 {
		var req struct {
			PageURL   string `json:"pageUrl"`
			PageTitle string `json:"pageTitle"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("session: decode progressive request: %w", err)
		}
		page = pipeline.Page{URL: req.PageURL, Title: req.PageTitle}
	}

	res, err := s.pipe.Run(ctx, page)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

type successResponse struct {
	Success bool `json:"success"`
}

// HandleClearCache empties the response cache.
func (s *Session) HandleClearCache(ctx context.Context, _ []byte) ([]byte, error) {
	s.cache.Clear()
	s.logger.Info("session: cache cleared")
	return json.Marshal(successResponse{Success: true})
}

type cacheSizeResponse struct {
	Size int `json:"size"`
}

// HandleGetCacheSize reports the number of cached entries, valid or not.
func (s *Session) HandleGetCacheSize(ctx context.Context, _ []byte) ([]byte, error) {
	return json.Marshal(cacheSizeResponse{Size: s.cache.Len()})
}
