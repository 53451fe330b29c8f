package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// Member names of the wire objects.
const (
	memberJSONRPC = "jsonrpc"
	memberMethod  = "method"
	memberParams  = "params"
	memberID      = "id"
	memberResult  = "result"
	memberError   = "error"
	memberCode    = "code"
	memberMessage = "message"
	memberData    = "data"
)

var (
	ErrNotAnObject      = errors.New("message is not a json object")
	ErrUnexpectedMember = errors.New("unexpected member")
	ErrMissingMember    = errors.New("missing member")
)

// memberSet lists the members an object must carry and the ones it may carry.
type memberSet struct {
	required []string
	optional []string
}

var (
	requestMembers       = memberSet{required: []string{memberJSONRPC, memberMethod}, optional: []string{memberID, memberParams}}
	responseMembers      = memberSet{required: []string{memberJSONRPC, memberID, memberResult}}
	errorResponseMembers = memberSet{required: []string{memberJSONRPC, memberID, memberError}}
	errorMembers         = memberSet{required: []string{memberCode, memberMessage}, optional: []string{memberData}}
)

// decodeMembers splits a json object into its raw members.
func decodeMembers(data []byte) (map[string]json.RawMessage, error) {
	if HintType(data) != TypeObject {
		return nil, fmt.Errorf("%w: %w", ErrDecoding, ErrNotAnObject)
	}

	var fields map[string]json.RawMessage

	if err := Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecoding, err)
	}

	return fields, nil
}

// checkMembers enforces that fields holds exactly the members allowed by set.
func checkMembers(fields map[string]json.RawMessage, set memberSet) error {
	for name := range fields {
		if !slices.Contains(set.required, name) && !slices.Contains(set.optional, name) {
			return fmt.Errorf("%w: %w %q", ErrDecoding, ErrUnexpectedMember, name)
		}
	}

	for _, name := range set.required {
		if _, ok := fields[name]; !ok {
			return fmt.Errorf("%w: %w %q", ErrDecoding, ErrMissingMember, name)
		}
	}

	return nil
}

// decodeEnvelope checks the members of an object and its jsonrpc version.
func decodeEnvelope(data []byte, set memberSet) (map[string]json.RawMessage, error) {
	fields, err := decodeMembers(data)
	if err != nil {
		return nil, err
	}

	if err := checkMembers(fields, set); err != nil {
		return nil, err
	}

	var v Version

	if err := v.UnmarshalJSON(fields[memberJSONRPC]); err != nil {
		return nil, err
	}

	return fields, nil
}

// jsonEqual reports whether two encoded json values are semantically equal.
func jsonEqual(a, b []byte) bool {
	var va, vb any

	if err := Unmarshal(a, &va); err != nil {
		return false
	}

	if err := Unmarshal(b, &vb); err != nil {
		return false
	}

	return reflect.DeepEqual(va, vb)
}
