package jsonrpc2

import (
	"bytes"
	"context"
	"fmt"
)

// LocalConnector is an in-memory [ClientConnector] calling a [RequestHandler] directly.
//
// It is useful to embed a server in the same process and in tests. Each exchange
// copies the request so the handler never shares memory with the caller.
type LocalConnector struct {
	handler RequestHandler
}

// NewLocalConnector returns a [*LocalConnector] bound to handler.
func NewLocalConnector(handler RequestHandler) *LocalConnector {
	return &LocalConnector{handler: handler}
}

// SendRequest implements [ClientConnector].
func (lc *LocalConnector) SendRequest(ctx context.Context, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClientConnector.WithData(err.Error()), err)
	}

	reply := lc.handler.HandleRequest(ctx, bytes.Clone(request))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClientConnector.WithData(err.Error()), err)
	}

	return reply, nil
}

// SendNotification implements [NotificationSender]. Any reply is discarded.
func (lc *LocalConnector) SendNotification(ctx context.Context, notification []byte) error {
	_, err := lc.SendRequest(ctx, notification)

	return err
}
