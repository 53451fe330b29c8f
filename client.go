package jsonrpc2

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrClientClosed is returned by [Client] methods after [Client.Close].
var ErrClientClosed = errors.New("client is closed")

// Client shares one [ClientConnector] and one [Invoker] between goroutines.
//
// Every prepare and call pair runs under a single lock, so at most one logical
// call is in flight per Client. Use several clients (or a [ConnectorPool] per client)
// when concurrent calls must overlap.
//
// Use [NewClient] with any connector, for example one returned by [Dial].
type Client struct {
	connector      ClientConnector
	invoker        *Invoker
	defaultTimeout time.Duration
	mu             sync.Mutex
	closed         bool
}

// NewClient returns a new [*Client] sending through connector.
func NewClient(connector ClientConnector) *Client {
	return &Client{connector: connector, invoker: NewInvoker()}
}

// SetDefaultTimeout sets a timeout applied to every subsequent Call and Notify.
// A value of zero or less disables it, leaving only the deadline of the caller's context.
func (c *Client) SetDefaultTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defaultTimeout = d
}

// Close closes the connector if it implements [io.Closer].
// Calls made after Close return [ErrClientClosed].
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if closer, ok := c.connector.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.defaultTimeout > 0 {
		return context.WithTimeout(ctx, c.defaultTimeout)
	}

	return ctx, func() {}
}

// Call invokes method with params and returns the raw result.
//
// params may be nil to omit them, otherwise anything accepted by [NewParams].
// Errors are those documented on [Invoker.Call].
func (c *Client) Call(ctx context.Context, method string, params any) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Result{}, ErrClientClosed
	}

	if err := c.invoker.PrepareMethod(method, params); err != nil {
		return Result{}, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.invoker.Call(ctx, c.connector); err != nil {
		return Result{}, err
	}

	return c.invoker.Result(), nil
}

// CallInto is [Client.Call] followed by unmarshaling the result into out.
//
// Example:
//
//	var sum int
//	if err := client.CallInto(ctx, "add", []int{3, 10}, &sum); err != nil {
//	    return err
//	}
func (c *Client) CallInto(ctx context.Context, method string, params, out any) error {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return result.Unmarshal(out)
}

// Notify sends a notification for method with params. It never waits for a reply;
// only a failure to send is reported.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	if err := c.invoker.PrepareNotification(method, params); err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.invoker.Call(ctx, c.connector)
}
