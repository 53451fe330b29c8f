package jsonrpc2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrConnectorBroken is returned by a [StreamClientConnector] after an exchange failed
// midway, leaving the stream in an unknown state.
var ErrConnectorBroken = errors.New("stream connector is broken")

// StreamClientConnector is a [ClientConnector] over one stream such as a [net.Conn].
//
// Requests are written as one JSON value per line and each is answered by the next
// JSON value read from the stream. Exchanges are serialized with a mutex, so the
// connector is safe for concurrent use but never has more than one request in flight.
//
// Use [NewStreamClientConnector] or [Dial] to create instances.
type StreamClientConnector struct {
	reader *StreamReader
	writer *StreamWriter
	rw     io.ReadWriter
	mu     sync.Mutex
	broken bool
}

// NewStreamClientConnector returns a [*StreamClientConnector] exchanging messages over rw.
func NewStreamClientConnector(rw io.ReadWriter) *StreamClientConnector {
	return &StreamClientConnector{rw: rw, reader: NewStreamReader(rw), writer: NewStreamWriter(rw)}
}

// SetReadLimit limits the size of a single reply, see [StreamReader.SetLimit].
func (c *StreamClientConnector) SetReadLimit(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reader.SetLimit(n)
}

// SetIdleTimeout sets the idle timeout for both reading and writing.
func (c *StreamClientConnector) SetIdleTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reader.SetIdleTimeout(d)
	c.writer.SetIdleTimeout(d)
}

// Close closes the underlying stream if it implements [io.Closer].
// It waits for an in-flight exchange to finish.
func (c *StreamClientConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.broken = true

	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// fail marks the connector broken and wraps err as [ErrClientConnector].
func (c *StreamClientConnector) fail(err error) error {
	c.broken = true

	return fmt.Errorf("%w: %w", ErrClientConnector.WithData(err.Error()), err)
}

func (c *StreamClientConnector) write(ctx context.Context, msg []byte) error {
	if c.broken {
		return fmt.Errorf("%w: %w", ErrClientConnector.WithData(ErrConnectorBroken.Error()), ErrConnectorBroken)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrClientConnector.WithData(err.Error()), err)
	}

	if err := c.writer.WriteMessage(ctx, msg); err != nil {
		return c.fail(err)
	}

	return nil
}

// SendRequest implements [ClientConnector].
func (c *StreamClientConnector) SendRequest(ctx context.Context, request []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(ctx, request); err != nil {
		return nil, err
	}

	reply, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, c.fail(err)
	}

	return reply, nil
}

// SendNotification implements [NotificationSender]. It returns once the notification is written.
func (c *StreamClientConnector) SendNotification(ctx context.Context, notification []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.write(ctx, notification)
}
