package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidParameters indicates that params are neither a JSON object nor a JSON array.
var ErrInvalidParameters = errors.New("params must be an object or an array")

// ErrNotRawMessage indicates that an operation expected the internal value to be a [json.RawMessage], but it was not.
var ErrNotRawMessage = errors.New("value is not a raw message")

var errInvalidParamDecode = fmt.Errorf("%w (%w)", ErrDecoding, ErrInvalidParameters)

// Params represent the params member of a jsonrpc2 [Request] ([Request.Params]).
//
// Params always decodes to a [json.RawMessage] internally and must be a json object or array.
// The zero value is absent params, which are omitted from the encoded request.
type Params struct {
	value any
}

// NewParamsArray returns a new [Params] with its value set to v.
//
// Example:
//
//	params := jsonrpc2.NewParamsArray([]any{1, "hello", true})
func NewParamsArray[V any, P ~[]V](v P) Params {
	if len(v) == 0 {
		return Params{value: []V{}}
	}

	return Params{value: v}
}

// NewParamsObject returns a new [Params] with its value set to v.
//
// Example:
//
//	params := jsonrpc2.NewParamsObject(map[string]any{"name": "Alice", "age": 30})
func NewParamsObject[K comparable, V any, P ~map[K]V](v P) Params {
	if len(v) == 0 {
		return Params{value: map[K]V{}}
	}

	return Params{value: v}
}

// NewParamsRaw returns a new [Params] wrapping already encoded JSON.
// The message is validated when the owning request is marshaled.
func NewParamsRaw(v json.RawMessage) Params {
	return Params{value: v}
}

// NewParams builds [Params] from an arbitrary go value.
//
// A nil v yields absent params. A [Params] or [json.RawMessage] is used as-is.
// Slices, arrays, maps and structs (or pointers to them) are accepted; anything
// else results in [ErrInvalidParams].
func NewParams(v any) (Params, error) {
	switch vt := v.(type) {
	case nil:
		return Params{}, nil
	case Params:
		return vt, nil
	case *Params:
		if vt == nil {
			return Params{}, nil
		}

		return *vt, nil
	case json.RawMessage:
		switch HintType(vt) {
		case TypeArray, TypeObject:
			return NewParamsRaw(vt), nil
		}

		return Params{}, fmt.Errorf("%w: %w", ErrInvalidParams.WithData(ErrInvalidParameters.Error()), ErrInvalidParameters)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Params{}, nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return Params{value: v}, nil
	}

	return Params{}, fmt.Errorf("%w: %w (%T)", ErrInvalidParams.WithData(ErrInvalidParameters.Error()), ErrInvalidParameters, v)
}

// RawMessage returns the internally stored [json.RawMessage].
//
// If the stored value is not a [json.RawMessage] nil is returned.
func (p Params) RawMessage() json.RawMessage {
	if raw, ok := p.value.(json.RawMessage); ok {
		return raw
	}

	return nil
}

// Value returns the raw internal value. May be a raw go type, [json.RawMessage], or nil.
func (p Params) Value() any {
	return p.value
}

// TypeHint provides a hint for the type of json data contained within the [Params]. See [TypeHint].
//
// Returns [TypeNotJSON] if the underlying type is not a [json.RawMessage].
func (p Params) TypeHint() TypeHint {
	if m, ok := p.value.(json.RawMessage); ok {
		return HintType(m)
	}

	return TypeNotJSON
}

// Unmarshal will unmarshal the internally stored [json.RawMessage] into v, returning any errors.
//
// Absent params unmarshal as JSON `null`, leaving v untouched for most types.
// If a go value rather than a [json.RawMessage] is stored, [ErrNotRawMessage] is returned.
func (p Params) Unmarshal(v any) error {
	switch vt := p.value.(type) {
	case json.RawMessage:
		return Unmarshal(vt, v)
	case nil:
		return Unmarshal(nullValue, v)
	}

	return ErrNotRawMessage
}

// IsZero returns true if the params are absent.
func (p Params) IsZero() bool {
	if p.value == nil {
		return true
	}

	if raw, ok := p.value.(json.RawMessage); ok {
		return len(raw) == 0
	}

	return false
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
// The incoming JSON must be an object or an array; scalars and `null` are rejected.
func (p *Params) UnmarshalJSON(data []byte) error {
	switch HintType(data) {
	case TypeObject, TypeArray:
		var raw json.RawMessage
		if err := Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w (%w)", ErrDecoding, err)
		}

		p.value = raw

		return nil
	default:
		return errInvalidParamDecode
	}
}

// MarshalJSON implements the [json.Marshaler] interface.
//
// The encoded value must be an object or an array.
func (p Params) MarshalJSON() ([]byte, error) {
	buf, err := Marshal(p.value)
	if err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrEncoding, err)
	}

	switch HintType(buf) {
	case TypeObject, TypeArray:
		return buf, nil
	}

	return nil, fmt.Errorf("%w (%w)", ErrEncoding, ErrInvalidParameters)
}
