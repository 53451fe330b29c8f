package jsonrpc2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoPreparedRequest is returned by [Invoker.Call] when nothing was prepared.
var ErrNoPreparedRequest = errors.New("no request prepared")

// Invoker drives one [ClientConnector] through one call or notification at a time.
//
// The usage cycle is PrepareMethod or PrepareNotification, then Call, then Result.
// Ids of method calls are assigned from a counter starting at 1 and are unique only
// within one Invoker.
//
// An Invoker is not safe for concurrent use: the id counter, the prepared request and the
// last result are plain fields. Callers sharing one must hold a lock around every
// prepare and call pair; [Client] does exactly that.
type Invoker struct {
	request      *Request
	result       Result
	lastID       int64
	expectsReply bool
}

// NewInvoker returns a new [*Invoker].
func NewInvoker() *Invoker {
	return &Invoker{}
}

// PrepareMethod builds a method call for name with the next id.
//
// params may be nil (omitted), [Params], [json.RawMessage] or any value marshaling
// to a JSON object or array; see [NewParams].
func (iv *Invoker) PrepareMethod(name string, params any) error {
	p, err := NewParams(params)
	if err != nil {
		return err
	}

	iv.lastID++
	iv.request = NewRequestWithParams(iv.lastID, name, p)
	iv.expectsReply = true

	return nil
}

// PrepareNotification builds a notification for name. Notifications carry no id.
func (iv *Invoker) PrepareNotification(name string, params any) error {
	p, err := NewParams(params)
	if err != nil {
		return err
	}

	iv.request = NewNotificationWithParams(name, p)
	iv.expectsReply = false

	return nil
}

// Request returns the prepared request, or nil.
func (iv *Invoker) Request() *Request {
	return iv.request
}

// Result returns the result of the last successful method call.
// It is absent after a notification or a failed call.
func (iv *Invoker) Result() Result {
	return iv.result
}

// LastID returns the id assigned to the most recent method call.
func (iv *Invoker) LastID() int64 {
	return iv.lastID
}

// Call sends the prepared request through connector and interprets the reply.
//
// For notifications any reply is discarded; only a connector failure is returned.
// For method calls, the returned error is one of:
//   - [ErrClientConnector] when the connector fails.
//   - [ErrParse] when the reply is not valid JSON.
//   - [ErrInvalidResponse] when the reply id does not match or the reply has no valid shape.
//   - The server's own [Error], verbatim, when the reply is an error object.
func (iv *Invoker) Call(ctx context.Context, connector ClientConnector) error {
	if iv.request == nil {
		return ErrNoPreparedRequest
	}

	iv.result = Result{}

	payload, err := Marshal(iv.request)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest.WithData(err.Error()), err)
	}

	if !iv.expectsReply {
		if ns, ok := connector.(NotificationSender); ok {
			return connectorError(ns.SendNotification(ctx, payload))
		}

		_, err := connector.SendRequest(ctx, payload)

		return connectorError(err)
	}

	reply, err := connector.SendRequest(ctx, payload)
	if err != nil {
		return connectorError(err)
	}

	if !json.Valid(reply) {
		return ErrParse.WithData(string(reply))
	}

	if resp, perr := ParseResponse(reply); perr == nil {
		if !resp.ID.Equal(iv.request.ID) {
			return ErrInvalidResponse.WithData(fmt.Sprintf("response id %s does not match request id %s",
				resp.ID.Format(), iv.request.ID.Format()))
		}

		iv.result = resp.Result

		return nil
	}

	if eresp, perr := ParseErrorResponse(reply); perr == nil {
		return eresp.Error
	}

	return ErrInvalidResponse.WithData(string(reply))
}

// connectorError wraps a connector failure as [ErrClientConnector] unless it already is an [Error].
func connectorError(err error) error {
	if err == nil {
		return nil
	}

	var je Error
	if errors.As(err, &je) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrClientConnector.WithData(err.Error()), err)
}
