package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyData = errors.New("data is empty")

// Data generically wraps arbitrary data but always unmarshals into [json.RawMessage] internally.
//
// Data is tri-state: absent (the zero value), present and null, or present with a value.
// [NewResult] and [NewErrorData] with a nil value produce a present JSON `null`.
//
// If a [json.RawMessage] is stored internally, it is directly used for marshaling.
type Data struct {
	value   any
	present bool
}

// Result represents the "result" member of a successful [Response].
//
// See: https://www.jsonrpc.org/specification#response_object
type Result = Data

// ErrorData represents the optional "data" member of an error object.
type ErrorData = Data

// NewResult creates a new [Result] containing v. A nil v marshals as JSON `null`.
func NewResult(v any) Result {
	return Result{present: true, value: v}
}

// NewErrorData returns a new [ErrorData] with its value set to v.
func NewErrorData(v any) ErrorData {
	return ErrorData{present: true, value: v}
}

// RawMessage returns [json.RawMessage] stored internally if present.
//
// RawMessage may only be valid after an unmarshalling, or if a [json.RawMessage]
// was stored directly.
func (d Data) RawMessage() json.RawMessage {
	if raw, ok := d.value.(json.RawMessage); ok {
		return raw
	}

	return nil
}

// Value returns the underlying value as stored when created with a New* function.
//
// The value may be nil if not set or a nil was stored.
func (d Data) Value() any {
	return d.value
}

// TypeHint provides a hint for the type of json data contained within the [Data].
//
// Returns [TypeNotJSON] if the underlying type is not a [json.RawMessage].
func (d Data) TypeHint() TypeHint {
	if raw, ok := d.value.(json.RawMessage); ok {
		return HintType(raw)
	}

	return TypeNotJSON
}

// IsNull returns true if the data is present and represents JSON `null`.
func (d Data) IsNull() bool {
	if !d.present {
		return false
	}

	if d.value == nil {
		return true
	}

	return d.TypeHint() == TypeNull
}

// Unmarshal unmarshals the internal [json.RawMessage] into v.
//
// If the data is absent, [ErrEmptyData] is returned and v is untouched.
//
// If there is no internal [json.RawMessage] [ErrNotRawMessage] is returned and v is untouched.
func (d Data) Unmarshal(v any) error {
	if !d.present {
		return ErrEmptyData
	}

	switch vt := d.value.(type) {
	case json.RawMessage:
		return Unmarshal(vt, v)
	case nil:
		return Unmarshal(nullValue, v)
	}

	return ErrNotRawMessage
}

// IsZero returns true if the data is absent.
func (d Data) IsZero() bool {
	return !d.present
}

// Equal reports whether both values hold the same JSON encoding.
// Two absent values are equal; absent never equals present null.
func (d Data) Equal(t Data) bool {
	if d.present != t.present {
		return false
	}

	if !d.present {
		return true
	}

	a, errA := d.MarshalJSON()
	b, errB := t.MarshalJSON()

	return errA == nil && errB == nil && jsonEqual(a, b)
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (d *Data) UnmarshalJSON(data []byte) error {
	var raw json.RawMessage
	if err := raw.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w (%w)", ErrDecoding, err)
	}

	d.value = raw
	d.present = true

	return nil
}

// MarshalJSON implements the [json.Marshaler] interface.
func (d Data) MarshalJSON() ([]byte, error) {
	if d.value == nil {
		return nullValue, nil
	}

	if raw, ok := d.value.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nullValue, nil
		}

		return raw, nil
	}

	buf, err := Marshal(d.value)
	if err != nil {
		return nil, fmt.Errorf("%w (%w)", ErrEncoding, err)
	}

	return buf, nil
}
