package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Dispatcher turns raw request bytes into raw reply bytes using a [Registry] of handlers.
//
// A Dispatcher implements [RequestHandler] and holds no mutable state across calls, so
// it may serve many connections concurrently as long as the registered handlers can.
//
// Replies follow these rules:
//   - Bytes that are not valid JSON get a single [ErrParse] reply with a null id, even for batches.
//   - An empty batch gets a single, non-array [ErrInvalidRequest] reply with a null id.
//   - A message that is not a valid request gets [ErrInvalidRequest] with a null id.
//   - Notifications never get a reply, even when unknown or when their handler fails.
//   - A batch reply holds one element per method call, in input order. A batch made only
//     of notifications produces no bytes at all.
type Dispatcher struct {
	// Registry resolves method and notification names.
	Registry Registry
	// Limiter, when set, admits requests through a token bucket. Method calls over the
	// limit are answered with [ErrServerOverloaded]; notifications over the limit are dropped.
	Limiter *rate.Limiter
	// Callbacks are observer hooks, see [Callbacks].
	Callbacks Callbacks
	// SerialBatch runs batch elements one after another instead of concurrently.
	SerialBatch bool
}

// NewDispatcher returns a new [*Dispatcher] resolving names through registry,
// with its [Callbacks] set to [DefaultCallbacks].
func NewDispatcher(registry Registry) *Dispatcher {
	return &Dispatcher{Registry: registry, Callbacks: DefaultCallbacks()}
}

// HandleRequest implements [RequestHandler].
//
// It returns nil when no reply must be sent.
func (d *Dispatcher) HandleRequest(ctx context.Context, raw []byte) []byte {
	raw = bytes.TrimSpace(raw)

	if !json.Valid(raw) {
		d.Callbacks.runOnDecodingError(ctx, raw, ErrParse)

		return d.encode(ctx, NewResponseError(ErrParse))
	}

	if HintType(raw) == TypeArray {
		return d.handleBatch(ctx, raw)
	}

	return d.handleSingle(ctx, raw)
}

func (d *Dispatcher) handleBatch(ctx context.Context, raw json.RawMessage) []byte {
	var objs []json.RawMessage

	if err := Unmarshal(raw, &objs); err != nil {
		d.Callbacks.runOnDecodingError(ctx, raw, err)

		return d.encode(ctx, NewResponseError(ErrParse.WithData(err.Error())))
	}

	if len(objs) == 0 {
		return d.encode(ctx, NewResponseError(ErrInvalidRequest))
	}

	replies := make([][]byte, len(objs))

	if len(objs) == 1 || d.SerialBatch {
		for i, obj := range objs {
			replies[i] = d.handleSingle(ctx, obj)
		}
	} else {
		var wg sync.WaitGroup

		for i, obj := range objs {
			wg.Add(1)

			go func() {
				defer wg.Done()

				replies[i] = d.handleSingle(ctx, obj)
			}()
		}

		wg.Wait()
	}

	var buf bytes.Buffer

	for _, reply := range replies {
		if reply == nil {
			continue
		}

		if buf.Len() == 0 {
			buf.WriteByte('[')
		} else {
			buf.WriteByte(',')
		}

		buf.Write(reply)
	}

	if buf.Len() == 0 {
		return nil
	}

	buf.WriteByte(']')

	return buf.Bytes()
}

func (d *Dispatcher) handleSingle(ctx context.Context, raw json.RawMessage) []byte {
	req, err := ParseRequest(raw)
	if err != nil {
		d.Callbacks.runOnDecodingError(ctx, raw, err)

		return d.encode(ctx, NewResponseError(err))
	}

	if d.Limiter != nil && !d.Limiter.Allow() {
		if req.IsNotification() {
			return nil
		}

		return d.encode(ctx, req.ResponseWithError(ErrServerOverloaded))
	}

	if req.IsNotification() {
		d.notify(ctx, req)

		return nil
	}

	handler, ok := d.Registry.Method(req.Method)
	if !ok {
		return d.encode(ctx, req.ResponseWithError(ErrMethodNotFound))
	}

	result, err := d.call(ctx, handler, req)
	if err != nil {
		return d.encode(ctx, req.ResponseWithError(err))
	}

	if raw, ok := result.(RawResponse); ok {
		return []byte(raw)
	}

	buf, err := Marshal(req.ResponseWithResult(result))
	if err != nil {
		d.Callbacks.runOnEncodingError(ctx, result, err)

		return d.encode(ctx, req.ResponseWithError(ErrInternalError.WithData(err.Error())))
	}

	return buf
}

// call runs a method handler, turning a panic into an [ErrUnknown] error.
func (d *Dispatcher) call(ctx context.Context, handler MethodHandler, req *Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.Callbacks.runOnHandlerPanic(ctx, req, r)

			result, err = nil, NewError(CodeUnknown, fmt.Sprint(r))
		}
	}()

	return handler.Handle(ctx, req)
}

// notify runs a notification handler. Failures and panics only reach the callbacks.
func (d *Dispatcher) notify(ctx context.Context, req *Request) {
	handler, ok := d.Registry.Notification(req.Method)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.Callbacks.runOnHandlerPanic(ctx, req, r)
		}
	}()

	if err := handler.Notify(ctx, req); err != nil {
		d.Callbacks.runOnHandlerError(ctx, req, err)
	}
}

func (d *Dispatcher) encode(ctx context.Context, resp *ErrorResponse) []byte {
	buf, err := Marshal(resp)
	if err != nil {
		d.Callbacks.runOnEncodingError(ctx, resp, err)

		// Error data failed to encode; the code and message alone always do.
		buf, _ = Marshal(NewErrorResponse(resp.ID, NewError(resp.Error.Code(), resp.Error.Message())))
	}

	return buf
}
