package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrIDNotANumber is returned by [ID.Int64] when the underlying ID value is not an integer.
	ErrIDNotANumber = errors.New("ID is not a number")
	// ErrInvalidID is returned when decoding an id that is not a string, an integer or null.
	ErrInvalidID = errors.New("id must be a string, an integer or null")
)

// ID represents a JSON-RPC 2.0 request ID.
//
// An ID is tri-state:
//   - absent (the zero value, [ID.IsZero] is true): the request is a notification.
//   - null ([NewNullID], [ID.IsNull] is true): a method call whose id is null, or
//     the id of an error reply whose request id could not be determined.
//   - a string or an int64 value.
//
// Upon unmarshalling JSON, strings and integral numbers are accepted along with null.
// Booleans, arrays, objects and numbers with a fractional part or exponent are rejected.
// Numbers must be written as plain integers that fit in an int64.
//
// See: https://www.jsonrpc.org/specification#request_object
type ID struct {
	value   any  // string, int64 or nil.
	present bool // Distinguishes an explicit null from an absent id.
}

// NewID creates a new ID with the given value.
//
// Example:
//
//	idInt := jsonrpc2.NewID(int64(123))
//	idStr := jsonrpc2.NewID("request-5")
func NewID[V int64 | string](v V) ID {
	return ID{present: true, value: v}
}

// NewNullID creates an ID representing the JSON `null` value.
// This is distinct from a zero-value [ID] struct (where [ID.IsZero] is true).
func NewNullID() ID {
	return ID{present: true}
}

// Equal compares two IDs.
//
// Absent ids are never equal to anything, including another absent id.
// Null equals null. Strings and integers compare by value and never equal each other.
func (id ID) Equal(t ID) bool {
	if id.IsZero() || t.IsZero() {
		return false
	}

	if id.IsNull() || t.IsNull() {
		return id.IsNull() && t.IsNull()
	}

	return id.value == t.value
}

// IsZero returns true if the id is absent.
func (id ID) IsZero() bool {
	return !id.present
}

// IsNull returns true if the ID represents the JSON `null` value.
func (id ID) IsNull() bool {
	return id.present && id.value == nil
}

// Value returns the underlying Go value of the ID: string, int64 or nil.
func (id ID) Value() any {
	if !id.present {
		return nil
	}

	return id.value
}

// String attempts to return the ID value as a string.
// It returns the string and `true` only if the underlying value is a string.
func (id ID) String() (string, bool) {
	s, ok := id.value.(string)

	return s, ok
}

// Int64 returns the ID value as an int64, or [ErrIDNotANumber] for string, null or absent ids.
func (id ID) Int64() (int64, error) {
	if i, ok := id.value.(int64); ok {
		return i, nil
	}

	return 0, ErrIDNotANumber
}

// Format returns a printable form of the id for logs and error data.
func (id ID) Format() string {
	switch v := id.value.(type) {
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}

	if id.present {
		return "null"
	}

	return "<absent>"
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (id *ID) UnmarshalJSON(data []byte) error {
	switch HintType(data) {
	case TypeNull:
		if err := Unmarshal(data, new(any)); err != nil {
			return fmt.Errorf("%w: %w", ErrDecoding, err)
		}

		id.value = nil
	case TypeString:
		var str string
		if err := Unmarshal(data, &str); err != nil {
			return fmt.Errorf("%w: %w", ErrDecoding, err)
		}

		id.value = str
	case TypeNumber:
		var num json.Number
		if err := Unmarshal(data, &num); err != nil {
			return fmt.Errorf("%w: %w", ErrDecoding, err)
		}

		i, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %w (%s)", ErrDecoding, ErrInvalidID, num)
		}

		id.value = i
	default:
		return fmt.Errorf("%w: %w", ErrDecoding, ErrInvalidID)
	}

	id.present = true

	return nil
}

// MarshalJSON implements the [json.Marshaler] interface.
// Absent and null ids both marshal as JSON `null`; use the `omitzero` tag to omit absent ids.
func (id ID) MarshalJSON() ([]byte, error) {
	switch v := id.value.(type) {
	case string:
		buf, err := Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
		}

		return buf, nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	}

	return nullValue, nil
}
