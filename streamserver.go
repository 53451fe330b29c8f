package jsonrpc2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is used as keys for context values.
type ContextKey int

const (
	// Key for the underlying net.Conn.
	CtxNetConn ContextKey = iota
	// Key for the underlying *http.Request.
	CtxHTTPRequest
)

var (
	ErrUnknownScheme     = errors.New("unknown scheme in uri")
	ErrNoHandler         = errors.New("no request handler set")
	ErrAlreadyStarted    = errors.New("server connector already started")
	ErrServerNotStarted  = errors.New("server connector not started")
	ErrServerConnStopped = errors.New("server connector stopped")
)

// StreamServer is a [ServerConnector] serving stream connections accepted from a [net.Listener].
//
// Each connection carries newline delimited JSON values. Messages of one connection are
// handled in order, one at a time, and each reply is written before the next message is read.
// Connections are served concurrently.
//
// A value that is not valid JSON gets an [ErrParse] reply with a null id and the connection
// is then closed, as the stream can no longer be split into messages.
//
// Handlers find the connection under [CtxNetConn] and a logger through [zerolog.Ctx].
type StreamServer struct {
	// Logger is attached to every connection context, with the remote address as a field.
	Logger zerolog.Logger
	// Callbacks run on connection exit and on decoding and encoding failures.
	Callbacks Callbacks
	// ReadLimit bounds the size of one inbound message. Zero disables it.
	ReadLimit int64
	// IdleTimeout closes connections idle for longer. Zero disables it.
	IdleTimeout time.Duration

	listener net.Listener
	handler  RequestHandler
	cancel   context.CancelFunc
	conns    sync.WaitGroup
	accept   sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopped  bool
}

// NewStreamServer returns a new [*StreamServer] accepting connections on ln.
// The logger defaults to a disabled one.
func NewStreamServer(ln net.Listener) *StreamServer {
	return &StreamServer{
		listener: ln,
		Logger:   zerolog.Nop(),
		Callbacks: Callbacks{
			OnDecodingError: DefaultOnDecodingError,
			OnEncodingError: DefaultOnEncodingError,
		},
	}
}

// Addr returns the listener's network address.
func (s *StreamServer) Addr() net.Addr {
	return s.listener.Addr()
}

// SetHandler implements [ServerConnector].
func (s *StreamServer) SetHandler(handler RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = handler
}

// Start implements [ServerConnector]. It starts accepting connections in the background
// and returns immediately. Serving ends with [StreamServer.Stop] or when ctx is cancelled.
func (s *StreamServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.handler == nil:
		return ErrNoHandler
	case s.stopped:
		return ErrServerConnStopped
	case s.started:
		return ErrAlreadyStarted
	}

	sctx, cancel := context.WithCancel(ctx)

	s.cancel = cancel
	s.started = true

	context.AfterFunc(sctx, func() { s.listener.Close() })

	s.accept.Add(1)

	go s.acceptLoop(sctx)

	return nil
}

// Stop implements [ServerConnector]. It closes the listener, interrupts every
// connection and waits for their handlers to return.
func (s *StreamServer) Stop() error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()

		return ErrServerNotStarted
	}

	if s.stopped {
		s.mu.Unlock()

		return nil
	}

	s.stopped = true
	s.cancel()
	s.mu.Unlock()

	s.accept.Wait()
	s.conns.Wait()

	return nil
}

func (s *StreamServer) acceptLoop(ctx context.Context) {
	defer s.accept.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() == nil {
				s.Logger.Error().Err(err).Msg("Stream server stopped accepting connections")
			}

			return
		}

		s.conns.Add(1)

		go func() {
			defer s.conns.Done()

			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn serves a single connection until it is closed by the peer, fails, or ctx is cancelled.
// The connection is closed on return.
//
// It may be used directly with connections not obtained from the listener, such as [net.Pipe].
func (s *StreamServer) ServeConn(ctx context.Context, conn io.ReadWriteCloser) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	logCtx := s.Logger.With()
	if nc, ok := conn.(net.Conn); ok {
		ctx = context.WithValue(ctx, CtxNetConn, nc)

		if addr := nc.RemoteAddr(); addr != nil {
			logCtx = logCtx.Str("remote", addr.String())
		}
	}

	logger := logCtx.Logger()
	ctx = logger.WithContext(ctx)

	reader := NewStreamReader(conn)
	reader.SetLimit(s.ReadLimit)
	reader.SetIdleTimeout(s.IdleTimeout)

	writer := NewStreamWriter(conn)
	writer.SetIdleTimeout(s.IdleTimeout)

	err := s.serve(ctx, handler, reader, writer)

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
		err = nil
	}

	_ = conn.Close()

	s.Callbacks.runOnExit(ctx, err)
}

func (s *StreamServer) serve(ctx context.Context, handler RequestHandler, reader *StreamReader, writer *StreamWriter) error {
	var syntaxErr *json.SyntaxError

	for {
		raw, err := reader.ReadMessage(ctx)
		if err != nil {
			switch {
			case errors.As(err, &syntaxErr):
				s.Callbacks.runOnDecodingError(ctx, raw, err)

				return s.reply(ctx, writer, NewResponseError(ErrParse.WithData(err.Error())))
			case errors.Is(err, ErrJSONTooLarge):
				s.Callbacks.runOnDecodingError(ctx, raw, err)

				return s.reply(ctx, writer, NewResponseError(ErrInvalidRequest.WithData(err.Error())))
			}

			return err
		}

		reply := handler.HandleRequest(ctx, raw)
		if reply == nil {
			continue
		}

		if err := writer.WriteMessage(ctx, reply); err != nil {
			s.Callbacks.runOnEncodingError(ctx, json.RawMessage(reply), err)

			return err
		}
	}
}

// reply writes a final error reply before the connection is dropped.
func (s *StreamServer) reply(ctx context.Context, writer *StreamWriter, resp *ErrorResponse) error {
	buf, err := Marshal(resp)
	if err != nil {
		return fmt.Errorf("%w (%w)", ErrEncoding, err)
	}

	if err := writer.WriteMessage(ctx, buf); err != nil {
		s.Callbacks.runOnEncodingError(ctx, resp, err)

		return err
	}

	return ErrDecoding
}
