package jsonrpc2

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// DefaultOnHandlerPanic logs recovered handler panics through the logger carried by ctx.
// It is assigned to [Callbacks.OnHandlerPanic] by [NewDispatcher].
var DefaultOnHandlerPanic = func(ctx context.Context, req *Request, rec any) {
	zerolog.Ctx(ctx).Error().
		Str("method", req.Method).
		Str("id", req.ID.Format()).
		RawJSON("params", paramsForLog(req.Params)).
		Interface("panic_value", rec).
		Msg("Panic recovered in JSON-RPC handler")
}

// DefaultOnHandlerError logs notification handler failures through the logger carried by ctx.
var DefaultOnHandlerError = func(ctx context.Context, req *Request, err error) {
	zerolog.Ctx(ctx).Warn().
		Err(err).
		Str("method", req.Method).
		Msg("JSON-RPC notification handler failed")
}

// DefaultOnDecodingError logs invalid inbound messages at debug level.
var DefaultOnDecodingError = func(ctx context.Context, raw json.RawMessage, err error) {
	zerolog.Ctx(ctx).Debug().
		Err(err).
		Int("size", len(raw)).
		Msg("Rejected invalid JSON-RPC message")
}

// DefaultOnEncodingError logs replies that could not be encoded.
var DefaultOnEncodingError = func(ctx context.Context, value any, err error) {
	zerolog.Ctx(ctx).Error().
		Err(err).
		Type("value_type", value).
		Msg("Failed to encode JSON-RPC reply")
}

// Callbacks defines hooks run by a [Dispatcher] and the server connectors on
// specific events. They are observers only and never alter control flow.
//
// Callbacks must be safe for concurrent use since batches and connections are
// processed concurrently. A nil hook is skipped.
//
// The defaults log through [zerolog.Ctx], so they are silent unless the context
// carries a logger (see [StreamServer.Logger] and [HTTPHandler.Logger]).
//
// Example:
//
//	dispatcher := jsonrpc2.NewDispatcher(mux)
//	dispatcher.Callbacks.OnHandlerPanic = func(ctx context.Context, req *jsonrpc2.Request, rec any) {
//	    zerolog.Ctx(ctx).Error().Str("method", req.Method).Interface("panic", rec).Msg("handler panic")
//	}
type Callbacks struct {
	// OnExit is called when a server connection loop is about to return.
	// err is nil on graceful shutdown.
	OnExit func(ctx context.Context, err error)

	// OnDecodingError is called when an inbound message is not valid JSON
	// or does not have the shape of a request.
	OnDecodingError func(ctx context.Context, raw json.RawMessage, err error)

	// OnEncodingError is called when a reply could not be encoded or written.
	OnEncodingError func(ctx context.Context, value any, err error)

	// OnHandlerError is called when a notification handler returns an error.
	// Notifications never get a reply, so this is the only place the error surfaces.
	OnHandlerError func(ctx context.Context, req *Request, err error)

	// OnHandlerPanic is called when a handler panics. The panic is recovered
	// and method calls are answered with [CodeUnknown].
	OnHandlerPanic func(ctx context.Context, req *Request, rec any)
}

// DefaultCallbacks returns a [Callbacks] with every hook set to its zerolog default.
func DefaultCallbacks() Callbacks {
	return Callbacks{
		OnDecodingError: DefaultOnDecodingError,
		OnEncodingError: DefaultOnEncodingError,
		OnHandlerError:  DefaultOnHandlerError,
		OnHandlerPanic:  DefaultOnHandlerPanic,
	}
}

func (c *Callbacks) runOnExit(ctx context.Context, e error) {
	if c.OnExit != nil {
		c.OnExit(ctx, e)
	}
}

func (c *Callbacks) runOnDecodingError(ctx context.Context, m json.RawMessage, e error) {
	if c.OnDecodingError != nil {
		c.OnDecodingError(ctx, m, e)
	}
}

func (c *Callbacks) runOnEncodingError(ctx context.Context, d any, e error) {
	if c.OnEncodingError != nil {
		c.OnEncodingError(ctx, d, e)
	}
}

func (c *Callbacks) runOnHandlerError(ctx context.Context, r *Request, e error) {
	if c.OnHandlerError != nil {
		c.OnHandlerError(ctx, r, e)
	}
}

func (c *Callbacks) runOnHandlerPanic(ctx context.Context, r *Request, recovery any) {
	if c.OnHandlerPanic != nil {
		c.OnHandlerPanic(ctx, r, recovery)
	}
}

// paramsForLog returns params as JSON suitable for zerolog's RawJSON.
func paramsForLog(p Params) []byte {
	if p.IsZero() {
		return nullValue
	}

	buf, err := p.MarshalJSON()
	if err != nil {
		return nullValue
	}

	return buf
}
