package jsonrpc2

import (
	"errors"
	"fmt"
)

// Protocol and library error codes.
const (
	CodeParseError            int64 = -32700
	CodeInvalidRequest        int64 = -32600
	CodeMethodNotFound        int64 = -32601
	CodeInvalidParams         int64 = -32602
	CodeInternalError         int64 = -32603
	CodeClientConnector       int64 = -32003
	CodeServerConnector       int64 = -32002
	CodeClientInvalidResponse int64 = -32001
	CodeServerOverloaded      int64 = -32000
	CodeUnknown               int64 = -1
)

var (
	ErrParse            = NewError(CodeParseError, "Parse error")
	ErrInvalidRequest   = NewError(CodeInvalidRequest, "Invalid Request")
	ErrMethodNotFound   = NewError(CodeMethodNotFound, "Method not found")
	ErrInvalidParams    = NewError(CodeInvalidParams, "Invalid params")
	ErrInternalError    = NewError(CodeInternalError, "Internal error")
	ErrServerOverloaded = NewError(CodeServerOverloaded, "Server overloaded")

	// Local only, never sent by a compliant server.
	ErrClientConnector = NewError(CodeClientConnector, "Client connector error")
	ErrServerConnector = NewError(CodeServerConnector, "Server connector error")
	ErrInvalidResponse = NewError(CodeClientInvalidResponse, "Invalid response")

	ErrUnknown = NewError(CodeUnknown, "Unknown error")
)

// errMissingErrorMember is returned when decoding an error object without a code or message.
var errMissingErrorMember = errors.New("error object requires code and message")

// RPCError is the internal representation of an error used by [Error].
type RPCError struct {
	Data    ErrorData `json:"data,omitzero"`
	Message string    `json:"message"`
	Code    int64     `json:"code"`
}

// Error represents a jsonrpc2 error object
//
// [Error] supports the go error interface and may be used as a normal error.
// Handlers return it to control the code and message of the error reply.
type Error struct {
	err     RPCError
	present bool
}

// NewError returns a new [Error] with its Code and Message fields assigned to the given values.
func NewError(code int64, msg string) Error {
	return Error{present: true, err: RPCError{Code: code, Message: msg}}
}

// NewErrorWithData is the same as [NewError] but also allows setting of the Data field.
func NewErrorWithData(code int64, msg string, data any) Error {
	return Error{present: true, err: RPCError{Code: code, Message: msg, Data: NewErrorData(data)}}
}

// AsError converts any error into an [Error].
//
// If e wraps an [Error] the first one found is returned. Any other error becomes
// [ErrUnknown] with e.Error() as its message, and a typed nil *[Error] becomes
// [ErrUnknown] with the message "nil error". A nil error returns a zero [Error].
func AsError(e error) Error {
	if e == nil {
		return Error{}
	}

	var pje *Error

	if errors.As(e, &pje) {
		// A typed nil *Error carries nothing and cannot be formatted.
		if pje == nil {
			return NewError(CodeUnknown, "nil error")
		}

		return *pje
	}

	var je Error

	if errors.As(e, &je) {
		return je
	}

	return NewError(CodeUnknown, e.Error())
}

// Code returns the code present in the error.
func (e Error) Code() int64 {
	return e.err.Code
}

// Message returns the message present in the error.
func (e Error) Message() string {
	return e.err.Message
}

// Data returns the data present in the error.
func (e Error) Data() ErrorData {
	return e.err.Data
}

// HasData reports whether the data member is present, including an explicit null.
func (e Error) HasData() bool {
	return !e.err.Data.IsZero()
}

// WithData returns a copy of the current [Error] with its Data field set to data.
func (e Error) WithData(data any) Error {
	return Error{present: true, err: RPCError{Code: e.err.Code, Message: e.err.Message, Data: NewErrorData(data)}}
}

// WithMessage returns a copy of the current [Error] with a different message.
func (e Error) WithMessage(msg string) Error {
	return Error{present: true, err: RPCError{Code: e.err.Code, Message: msg, Data: e.err.Data}}
}

// Equal reports whether code, message and data (including presence) all match.
func (e Error) Equal(t Error) bool {
	return e.present == t.present &&
		e.err.Code == t.err.Code &&
		e.err.Message == t.err.Message &&
		e.err.Data.Equal(t.err.Data)
}

// Is returns true if t is of type [Error] and their Code fields match.
func (e Error) Is(t error) bool {
	if jerr, ok := t.(Error); ok {
		return e.err.Code == jerr.err.Code
	}

	if jerr, ok := t.(*Error); ok && jerr != nil {
		return e.err.Code == jerr.err.Code
	}

	return false
}

// IsZero returns true if the error is empty.
func (e Error) IsZero() bool {
	return !e.present
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("jsonrpc2: %s (%d)", e.err.Message, e.err.Code)
}

// Response builds the error reply carrying e for the request identified by id.
func (e Error) Response(id ID) *ErrorResponse {
	return NewErrorResponse(id, e)
}

// ErrorFromResponse returns the [Error] carried by an error reply.
func ErrorFromResponse(resp *ErrorResponse) Error {
	if resp == nil {
		return Error{}
	}

	return resp.Error
}

// UnmarshalJSON implements [json.Unmarshaler].
//
// The object must hold exactly an integer "code", a string "message" and optionally "data".
func (e *Error) UnmarshalJSON(b []byte) error {
	fields, err := decodeMembers(b)
	if err != nil {
		return err
	}

	if err := checkMembers(fields, errorMembers); err != nil {
		return err
	}

	if HintType(fields[memberCode]) != TypeNumber || HintType(fields[memberMessage]) != TypeString {
		return fmt.Errorf("%w: %w", ErrDecoding, errMissingErrorMember)
	}

	var rpcErr RPCError

	if err := Unmarshal(fields[memberCode], &rpcErr.Code); err != nil {
		return fmt.Errorf("%w: code must be an integer (%w)", ErrDecoding, err)
	}

	if err := Unmarshal(fields[memberMessage], &rpcErr.Message); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoding, err)
	}

	if raw, ok := fields[memberData]; ok {
		if err := rpcErr.Data.UnmarshalJSON(raw); err != nil {
			return err
		}
	}

	e.err = rpcErr
	e.present = true

	return nil
}

// MarshalJSON implements [json.Marshaler].
func (e Error) MarshalJSON() ([]byte, error) {
	return Marshal(&e.err)
}
