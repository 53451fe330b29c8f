package jsonrpc2

// RawResponse is a fully encoded reply returned by a [MethodHandler] in place of a result.
// The [Dispatcher] writes it to the wire as-is, without checking its validity or its id.
type RawResponse []byte
