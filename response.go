package jsonrpc2

import (
	"fmt"
)

// Response represents a successful JSON-RPC 2.0 response object.
//
// A response carries exactly "jsonrpc", "id" and "result". The result may be null
// but is always present. Failed calls are answered with an [ErrorResponse] instead.
//
// See: https://www.jsonrpc.org/specification#response_object
type Response struct {
	Jsonrpc Version `json:"jsonrpc"`
	ID      ID      `json:"id"`     // Mirrors the request id.
	Result  Result  `json:"result"` // Marshals as null when absent.
}

// ErrorResponse represents a failed JSON-RPC 2.0 response object.
//
// It carries exactly "jsonrpc", "id" and "error". The id is null when the request id
// could not be determined, e.g. on parse failures.
type ErrorResponse struct {
	Jsonrpc Version `json:"jsonrpc"`
	ID      ID      `json:"id"`
	Error   Error   `json:"error"`
}

// NewResponse creates a successful response for the request identified by id.
func NewResponse(id ID, result any) *Response {
	return &Response{ID: id, Result: NewResult(result)}
}

// NewResponseWithResult creates a successful response for a given request ID and result.
//
// Example:
//
//	resp := jsonrpc2.NewResponseWithResult(int64(1), "pong")
//	// Marshals to: {"jsonrpc":"2.0","id":1,"result":"pong"}
func NewResponseWithResult[I int64 | string](id I, r any) *Response {
	return NewResponse(NewID(id), r)
}

// NewErrorResponse creates an error reply for the request identified by id.
//
// If e is or wraps an [Error], it is used directly. Other errors become [ErrUnknown]
// with e.Error() as the message, see [AsError].
func NewErrorResponse(id ID, e error) *ErrorResponse {
	return &ErrorResponse{ID: id, Error: AsError(e)}
}

// NewResponseWithError creates an error reply for a given request ID and error.
//
// Example:
//
//	resp := jsonrpc2.NewResponseWithError("req-01", jsonrpc2.NewError(100, "Resource not found"))
//	// Marshals to: {"jsonrpc":"2.0","id":"req-01","error":{"code":100,"message":"Resource not found"}}
func NewResponseWithError[I int64 | string](id I, e error) *ErrorResponse {
	return NewErrorResponse(NewID(id), e)
}

// NewResponseError creates an error reply with a null ID.
// This is used when a request is malformed and its ID cannot be determined.
//
// Example:
//
//	resp := jsonrpc2.NewResponseError(jsonrpc2.ErrParse)
//	// Marshals to: {"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}
func NewResponseError(e error) *ErrorResponse {
	return NewErrorResponse(NewNullID(), e)
}

// ParseResponse validates data as a successful response object.
//
// Any failure is reported as an [ErrInvalidResponse] carrying the reason as data.
func ParseResponse(data []byte) (*Response, error) {
	resp := &Response{}

	if err := resp.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse.WithData(err.Error()), err)
	}

	return resp, nil
}

// ParseErrorResponse validates data as an error response object.
//
// Any failure is reported as an [ErrInvalidResponse] carrying the reason as data.
func ParseErrorResponse(data []byte) (*ErrorResponse, error) {
	resp := &ErrorResponse{}

	if err := resp.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse.WithData(err.Error()), err)
	}

	return resp, nil
}

// UnmarshalJSON implements [json.Unmarshaler].
func (r *Response) UnmarshalJSON(data []byte) error {
	fields, err := decodeEnvelope(data, responseMembers)
	if err != nil {
		return err
	}

	var resp Response

	resp.Jsonrpc = Version{present: true}

	if err := resp.ID.UnmarshalJSON(fields[memberID]); err != nil {
		return err
	}

	if err := resp.Result.UnmarshalJSON(fields[memberResult]); err != nil {
		return err
	}

	*r = resp

	return nil
}

// MarshalJSON implements [json.Marshaler].
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response

	buf, err := Marshal(plain(r))
	if err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrEncoding, err)
	}

	return buf, nil
}

// UnmarshalJSON implements [json.Unmarshaler].
func (r *ErrorResponse) UnmarshalJSON(data []byte) error {
	fields, err := decodeEnvelope(data, errorResponseMembers)
	if err != nil {
		return err
	}

	var resp ErrorResponse

	resp.Jsonrpc = Version{present: true}

	if err := resp.ID.UnmarshalJSON(fields[memberID]); err != nil {
		return err
	}

	if err := resp.Error.UnmarshalJSON(fields[memberError]); err != nil {
		return err
	}

	*r = resp

	return nil
}

// MarshalJSON implements [json.Marshaler].
func (r ErrorResponse) MarshalJSON() ([]byte, error) {
	type plain ErrorResponse

	buf, err := Marshal(plain(r))
	if err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrEncoding, err)
	}

	return buf, nil
}
