package jsonrpc2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/puddle/v2"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPoolDialTimeout is the default [ConnectorPoolConfig.DialTimeout].
	DefaultPoolDialTimeout = 30 * time.Second
	// DefaultPoolIdleTimeout is the default [ConnectorPoolConfig.IdleTimeout].
	DefaultPoolIdleTimeout = 300 * time.Second
)

// ErrRetriesExceeded is returned by [ConnectorPool] when an exchange kept failing with
// retryable errors. The last error is joined with it.
var ErrRetriesExceeded = errors.New("retries exceeded")

// ConnectorPoolConfig holds configuration parameters for creating a [ConnectorPool].
//
// It can be read from a YAML document with [LoadConnectorPoolConfig]. Durations are
// written as strings such as "30s" or "5m".
type ConnectorPoolConfig struct {
	// URI is passed to the dial function for every new connection, see [DialStream].
	URI string `yaml:"uri"`

	// IdleTimeout is how long a connection may stay idle before being closed.
	// Defaults to [DefaultPoolIdleTimeout] if zero. A negative value disables idle closing.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// DialTimeout bounds establishing a new connection.
	// Defaults to [DefaultPoolDialTimeout] if zero or negative.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Retries is the number of extra attempts after a broken-connection error.
	// Defaults to 1 if zero or negative.
	Retries int `yaml:"retries"`

	// MaxSize is the maximum number of connections, idle and in-use.
	// Defaults to `min(runtime.NumCPU(), runtime.GOMAXPROCS(-1)) * 2` if zero or negative.
	MaxSize int32 `yaml:"max_size"`

	// AcquireOnCreate makes [NewConnectorPool] dial one connection up front and fail if it cannot.
	AcquireOnCreate bool `yaml:"acquire_on_create"`
}

// LoadConnectorPoolConfig reads a [ConnectorPoolConfig] from a YAML file.
// Unknown keys are rejected.
//
// Example file:
//
//	uri: tcp:127.0.0.1:9090
//	max_size: 4
//	retries: 2
//	dial_timeout: 5s
//	idle_timeout: 1m
func LoadConnectorPoolConfig(path string) (ConnectorPoolConfig, error) {
	var config ConnectorPoolConfig

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("%s: %w", path, err)
	}

	return config, nil
}

// ConnectorPool is a [ClientConnector] spreading exchanges over a pool of
// [*StreamClientConnector] connections.
//
// Each exchange acquires a connection, so concurrent callers proceed in parallel up
// to [ConnectorPoolConfig.MaxSize]. A connection that fails is destroyed, and the exchange
// is retried on a fresh one when the failure looks like a broken connection.
//
// Use [NewConnectorPool] or [NewConnectorPoolWithDialer] to create instances.
type ConnectorPool struct {
	pool    *puddle.Pool[*StreamClientConnector]
	idle    *time.Timer
	retries int
	closed  bool
	mu      sync.Mutex
}

// NewConnectorPool creates a new [ConnectorPool] dialing with [DialStream].
//
// Example:
//
//	pool, err := jsonrpc2.NewConnectorPool(ctx, jsonrpc2.ConnectorPoolConfig{
//	    URI:     "tcp:localhost:5000",
//	    MaxSize: 10,
//	    Retries: 2,
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create connector pool: %v", err)
//	}
//	client := jsonrpc2.NewClient(pool)
//	defer client.Close()
func NewConnectorPool(nctx context.Context, config ConnectorPoolConfig) (*ConnectorPool, error) {
	return NewConnectorPoolWithDialer(nctx, config, DialStream)
}

// NewConnectorPoolWithDialer creates a new [ConnectorPool] using dialFunc to open connections
// to config.URI.
func NewConnectorPoolWithDialer(nctx context.Context, config ConnectorPoolConfig, dialFunc func(ctx context.Context, uri string) (*StreamClientConnector, error)) (*ConnectorPool, error) {
	if config.IdleTimeout == 0 {
		config.IdleTimeout = DefaultPoolIdleTimeout
	}

	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultPoolDialTimeout
	}

	if config.MaxSize <= 0 {
		//nolint:gosec,mnd //How many cpus do you think we have? Puddle requires int32.
		config.MaxSize = int32(min(runtime.NumCPU(), runtime.GOMAXPROCS(-1)) * 2)
	}

	pool, err := puddle.NewPool(&puddle.Config[*StreamClientConnector]{
		Constructor: func(ctx context.Context) (*StreamClientConnector, error) {
			dialCtx, stop := context.WithTimeout(ctx, config.DialTimeout)
			defer stop()

			return dialFunc(dialCtx, config.URI)
		},
		Destructor: func(conn *StreamClientConnector) { _ = conn.Close() },
		MaxSize:    config.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	if config.AcquireOnCreate {
		res, err := pool.Acquire(nctx)
		if err != nil {
			pool.Close()

			return nil, err
		}

		res.Release()
	}

	cpool := &ConnectorPool{pool: pool}
	cpool.retries = max(config.Retries, 1) + 1

	if config.IdleTimeout > 0 {
		cpool.idle = time.AfterFunc(config.IdleTimeout, func() {
			cpool.mu.Lock()
			defer cpool.mu.Unlock()

			if cpool.closed {
				return
			}

			nextWait := config.IdleTimeout

			for _, res := range cpool.pool.AcquireAllIdle() {
				idleTime := res.IdleDuration()
				if idleTime >= config.IdleTimeout {
					res.Destroy()
				} else {
					nextWait = min(nextWait, config.IdleTimeout-idleTime)
					res.ReleaseUnused()
				}
			}

			cpool.idle.Reset(nextWait)
		})
	}

	return cpool, nil
}

// Close stops idle cleanup, closes idle connections and waits for acquired ones to be released.
// It is safe to call Close multiple times.
func (cp *ConnectorPool) Close() error {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()

		return nil
	}

	cp.closed = true

	if cp.idle != nil {
		cp.idle.Stop()
	}
	cp.mu.Unlock()

	cp.pool.Close()

	return nil
}

// Reset closes all idle connections and marks acquired ones to be closed on release.
func (cp *ConnectorPool) Reset() {
	cp.pool.Reset()
}

// Stat returns the current statistics of the underlying pool.
func (cp *ConnectorPool) Stat() *puddle.Stat {
	return cp.pool.Stat()
}

// releaseMaybeRetry returns the resource to the pool on success and destroys it on failure,
// reporting whether the failure is worth retrying on a new connection.
func releaseMaybeRetry(res *puddle.Resource[*StreamClientConnector], err error) (needsRetry bool) {
	if err != nil {
		res.Destroy()

		return retryable(err)
	}

	res.Release()

	return false
}

// retryable reports whether err means the connection was lost rather than the exchange failing.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrClosed), errors.Is(err, ErrConnectorBroken),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	}

	return false
}

// SendRequest implements [ClientConnector].
func (cp *ConnectorPool) SendRequest(ctx context.Context, request []byte) (reply []byte, err error) {
	for range cp.retries {
		if cerr := ctx.Err(); cerr != nil {
			return nil, connectorError(cerr)
		}

		conn, cerr := cp.pool.Acquire(ctx)
		if cerr != nil {
			return nil, connectorError(cerr)
		}

		reply, err = conn.Value().SendRequest(ctx, request)

		if needsRetry := releaseMaybeRetry(conn, err); needsRetry {
			continue
		}

		return reply, err
	}

	return nil, errors.Join(ErrRetriesExceeded, err)
}

// SendNotification implements [NotificationSender].
func (cp *ConnectorPool) SendNotification(ctx context.Context, notification []byte) (err error) {
	for range cp.retries {
		if cerr := ctx.Err(); cerr != nil {
			return connectorError(cerr)
		}

		conn, cerr := cp.pool.Acquire(ctx)
		if cerr != nil {
			return connectorError(cerr)
		}

		err = conn.Value().SendNotification(ctx, notification)

		if needsRetry := releaseMaybeRetry(conn, err); needsRetry {
			continue
		}

		return err
	}

	return errors.Join(ErrRetriesExceeded, err)
}
