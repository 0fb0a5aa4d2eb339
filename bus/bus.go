// Package bus carries the asynchronous request/response messages between
// the page-resident presentation logic and external coordinators (the host
// popup, a service worker equivalent). Every message kind gets a handler:
// bytes in, bytes out. The caller never knows or cares where the handler
// lives, and the response is delivered when the async work resolves.
//
//	r := bus.NewRouter()
//	r.RegisterLocal(bus.MsgToggleSimplified, session.HandleToggle)
//	resp, err := r.Call(ctx, bus.MsgToggleSimplified, nil)
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Message kinds consumed and produced by the core.
const (
	MsgToggleSimplified   = "toggle_simplified"
	MsgGetState           = "get_state"
	MsgProcessElements    = "process_elements"
	MsgProcessProgressive = "process_elements_progressive"
	MsgClearCache         = "clear_cache"
	MsgGetCacheSize       = "get_cache_size"
)

// Handler is a transport-agnostic message handler: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Middleware wraps a Handler, adding cross-cutting behaviour without
// changing the signature.
type Middleware func(next Handler) Handler

// ErrUnknownMessage is returned when Call targets a kind with no handler.
type ErrUnknownMessage struct {
	Kind string
}

func (e *ErrUnknownMessage) Error() string {
	return fmt.Sprintf("bus: no handler for message kind %q", e.Kind)
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string { return "bus: handler panicked" }

// Router dispatches messages to registered handlers. Thread-safe.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates an empty Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-process handler for a message kind,
// replacing any previous registration.
func (r *Router) RegisterLocal(kind string, h Handler) {
	r.mu.Lock()
	r.handlers[kind] = h
	r.mu.Unlock()
}

// Call dispatches a message and waits for the handler's response.
func (r *Router) Call(ctx context.Context, kind string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, &ErrUnknownMessage{Kind: kind}
	}

	r.logger.DebugContext(ctx, "bus: dispatch", "kind", kind, "payload_bytes", len(payload))
	return h(ctx, payload)
}

// Chain composes middlewares left-to-right: the first middleware is the
// outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// WithFallback returns a Middleware that retries a failed handler against
// a local substitute. Context cancellation is not retried: it means the
// caller gave up, not that the primary failed.
func WithFallback(local Handler, name string, logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		if local == nil {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			resp, err := next(ctx, payload)
			if err == nil {
				return resp, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			if logger != nil {
				logger.WarnContext(ctx, "bus: primary failed, falling back to local",
					"handler", name, "error", err)
			}
			return local(ctx, payload)
		}
	}
}

// Logging returns a middleware that logs every call with its duration.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			if err != nil {
				logger.ErrorContext(ctx, "bus: call failed",
					"duration_ms", time.Since(start).Milliseconds(), "error", err)
			} else {
				logger.DebugContext(ctx, "bus: call ok",
					"duration_ms", time.Since(start).Milliseconds(),
					"response_bytes", len(resp))
			}
			return resp, err
		}
	}
}

// Recovery returns a middleware that converts handler panics into errors
// instead of crashing the page context.
func Recovery(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "bus: handler panic recovered",
						"panic", r, "stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, payload)
		}
	}
}
