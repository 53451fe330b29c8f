package jsonrpc2

import (
	"fmt"
)

// Request represents a jsonrpc2 method call or notification.
//
// A request with an absent [ID] is a notification and never receives a reply.
// A request with any present id, including null, is a method call.
//
// See: https://www.jsonrpc.org/specification#request_object
type Request struct {
	Jsonrpc Version `json:"jsonrpc"`
	Method  string  `json:"method"`
	Params  Params  `json:"params,omitzero"`
	ID      ID      `json:"id,omitzero"`
}

// NewRequest builds a new request for method with the given id.
func NewRequest[I int64 | string](id I, method string) *Request {
	return &Request{Method: method, ID: NewID(id)}
}

// NewRequestWithParams builds a new request for method with the given id, and the params set to p.
func NewRequestWithParams[I int64 | string](id I, method string, p Params) *Request {
	return &Request{Method: method, ID: NewID(id), Params: p}
}

// NewNotification builds a notification for method. Notifications carry no id.
func NewNotification(method string) *Request {
	return &Request{Method: method}
}

// NewNotificationWithParams builds a notification for method with the params set to p.
func NewNotificationWithParams(method string, p Params) *Request {
	return &Request{Method: method, Params: p}
}

// ParseRequest validates data as a single request object.
//
// Any failure is reported as an [ErrInvalidRequest] carrying the reason as data.
// The returned error also wraps the underlying decoding error.
func ParseRequest(data []byte) (*Request, error) {
	req := &Request{}

	if err := req.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest.WithData(err.Error()), err)
	}

	return req, nil
}

// IsNotification returns true if this request was a notification (no id field present).
func (r *Request) IsNotification() bool {
	return r.ID.IsZero()
}

// ResponseWithResult constructs a response for the current [*Request] with its result set to result.
func (r *Request) ResponseWithResult(result any) *Response {
	return &Response{ID: r.ID, Result: NewResult(result)}
}

// ResponseWithError constructs an error reply for the current [*Request].
// If e is or wraps an [Error] it will be used directly, otherwise see [AsError].
func (r *Request) ResponseWithError(e error) *ErrorResponse {
	return &ErrorResponse{ID: r.ID, Error: AsError(e)}
}

// UnmarshalJSON implements [json.Unmarshaler].
//
// The object must carry exactly "jsonrpc" and "method", plus optionally "id" and "params".
func (r *Request) UnmarshalJSON(data []byte) error {
	fields, err := decodeEnvelope(data, requestMembers)
	if err != nil {
		return err
	}

	var req Request

	req.Jsonrpc = Version{present: true}

	if HintType(fields[memberMethod]) != TypeString {
		return fmt.Errorf("%w: method must be a string", ErrDecoding)
	}

	if err := Unmarshal(fields[memberMethod], &req.Method); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoding, err)
	}

	if raw, ok := fields[memberID]; ok {
		if err := req.ID.UnmarshalJSON(raw); err != nil {
			return err
		}
	}

	if raw, ok := fields[memberParams]; ok {
		if err := req.Params.UnmarshalJSON(raw); err != nil {
			return err
		}
	}

	*r = req

	return nil
}

// MarshalJSON implements [json.Marshaler].
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request

	buf, err := Marshal(plain(r))
	if err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrEncoding, err)
	}

	return buf, nil
}
