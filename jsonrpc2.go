// Package jsonrpc2 provides a transport-agnostic JSON-RPC 2.0 engine used as the
// inter-process communication backbone between management agents.
//
// # Overview
//
// The package is split into a strict message model, a server side [Dispatcher]
// and a client side [Invoker]. Neither side knows anything about the transport
// carrying the bytes: the dispatcher turns request bytes into reply bytes, and the
// invoker hands request bytes to a [ClientConnector] and interprets what comes back.
//
// Messages are validated to the exact shape the [jsonrpc2 protocol] allows.
// Any additional or missing member of a request, response or error object is a
// validation failure, never a tolerated extension.
//
// # Features
//
//   - Exact-shape parsing of requests ([ParseRequest]), responses ([ParseResponse]) and
//     error replies ([ParseErrorResponse]).
//   - Tri-state ids and error data: absent, explicit null and value are all distinguishable.
//   - Batch dispatch with partial failure, notification suppression and stable reply order.
//   - A fixed error taxonomy ([ErrParse], [ErrInvalidRequest], [ErrMethodNotFound], ...,
//     [ErrClientConnector], [ErrUnknown]) expressed as the [Error] type.
//   - Stream (tcp, unix, tls) and HTTP connectors, an in-memory [LocalConnector] and a
//     pooled [ConnectorPool] for clients.
//   - Structured logging hooks through [Callbacks], backed by zerolog.
//
// # Server
//
//	mux := jsonrpc2.NewMethodMux()
//	_ = mux.RegisterMethodFunc("add", func(ctx context.Context, req *jsonrpc2.Request) (any, error) {
//		var args []int
//		if err := req.Params.Unmarshal(&args); err != nil || len(args) != 2 {
//			return nil, jsonrpc2.ErrInvalidParams
//		}
//		return args[0] + args[1], nil
//	})
//
//	server, err := jsonrpc2.Listen("tcp:127.0.0.1:9090")
//	if err != nil {
//		log.Fatal(err)
//	}
//	server.SetHandler(jsonrpc2.NewDispatcher(mux))
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer server.Stop()
//
// # Client
//
//	connector, err := jsonrpc2.Dial(ctx, "tcp:127.0.0.1:9090")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client := jsonrpc2.NewClient(connector)
//	defer client.Close()
//
//	var sum int
//	if err := client.CallInto(ctx, "add", []int{3, 10}, &sum); err != nil {
//		log.Fatal(err)
//	}
//
// [jsonrpc2 protocol]: https://www.jsonrpc.org/specification
package jsonrpc2

import (
	"encoding/json"
	"io"
)

var nullValue = json.RawMessage("null") // Represents the JSON `null` value.

// Marshal defines the function used for marshaling Go types into JSON []byte.
// By default, it uses [encoding/json.Marshal]. Applications can replace this
// variable *at startup* with a compatible function from another JSON library.
//
// The replacement must support [json.Marshaler], [json.RawMessage] and the
// `omitzero` struct tag, which the message model depends on.
var Marshal = json.Marshal

// Unmarshal defines the function used for unmarshalling JSON []byte into Go types.
// By default, it uses [encoding/json.Unmarshal]. Applications can replace this
// variable *at startup* with a compatible function from another JSON library.
var Unmarshal = json.Unmarshal

// JSONDecoder defines the interface required for stream-based JSON decoding,
// compatible with [encoding/json.Decoder]. It is used by [StreamReader] to split
// a byte stream into individual JSON values.
type JSONDecoder interface {
	// Decode reads the next JSON-encoded value from its input and stores it in the value pointed to by v.
	Decode(v any) error
}

// NewJSONDecoder defines the function used to create new [JSONDecoder] instances.
// By default, it returns a standard [encoding/json.Decoder].
var NewJSONDecoder = func(r io.Reader) JSONDecoder { return json.NewDecoder(r) }
