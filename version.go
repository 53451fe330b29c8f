package jsonrpc2

import (
	"errors"
	"fmt"
)

// ProtocolVersion is the only value accepted for the "jsonrpc" member.
const ProtocolVersion = "2.0"

var ErrWrongProtocolVersion = errors.New("wrong protocol version for jsonrpc2")

// Version represents the jsonrpc member of requests, responses and error replies.
//
// It always marshals as "2.0" and only unmarshals from the exact string "2.0".
type Version struct {
	present bool
}

// IsValid returns true if the jsonrpc member was present and correct.
func (v Version) IsValid() bool {
	return v.present
}

// UnmarshalJSON implements [json.Unmarshaler].
func (v *Version) UnmarshalJSON(data []byte) error {
	if HintType(data) != TypeString {
		return fmt.Errorf("%w (%w)", ErrDecoding, ErrWrongProtocolVersion)
	}

	var str string

	if err := Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w (%w)", ErrDecoding, err)
	}

	if str != ProtocolVersion {
		return fmt.Errorf("%w (%w: %q)", ErrDecoding, ErrWrongProtocolVersion, str)
	}

	v.present = true

	return nil
}

// MarshalJSON implements [json.Marshaler].
func (Version) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ProtocolVersion + `"`), nil
}
