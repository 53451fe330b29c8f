package jsonrpc2

import (
	"context"
)

// ClientConnector moves one encoded request to a server and returns the encoded reply.
//
// SendRequest blocks until the reply is available or the exchange fails. A connector
// carries one exchange at a time; implementations serialize concurrent callers.
// An empty reply with a nil error means the server sent nothing back.
type ClientConnector interface {
	SendRequest(ctx context.Context, request []byte) ([]byte, error)
}

// NotificationSender is implemented by connectors that can deliver a notification
// without waiting for a reply. The [Invoker] prefers it for notifications.
type NotificationSender interface {
	SendNotification(ctx context.Context, notification []byte) error
}

// RequestHandler turns request bytes into reply bytes. A nil reply means nothing must be sent.
//
// [Dispatcher] is the standard implementation.
type RequestHandler interface {
	HandleRequest(ctx context.Context, request []byte) []byte
}

// RequestHandlerFunc adapts a function to the [RequestHandler] interface.
type RequestHandlerFunc func(ctx context.Context, request []byte) []byte

// HandleRequest calls f(ctx, request).
func (f RequestHandlerFunc) HandleRequest(ctx context.Context, request []byte) []byte {
	return f(ctx, request)
}

// ServerConnector accepts bytes from some channel, passes them to a [RequestHandler]
// and writes the handler's reply back over the same channel.
//
// SetHandler must be called before Start. Start returns once the connector is
// accepting; Stop closes it and waits for in-flight exchanges to finish.
type ServerConnector interface {
	SetHandler(handler RequestHandler)
	Start(ctx context.Context) error
	Stop() error
}
