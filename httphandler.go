package jsonrpc2

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultHTTPReadTimeout is the default header read timeout of an [HTTPServer].
	DefaultHTTPReadTimeout = 5 * time.Second
	// DefaultHTTPShutdownTimeout is the default graceful shutdown timeout of an [HTTPServer].
	DefaultHTTPShutdownTimeout = 30 * time.Second

	contentTypeJSON = "application/json"
)

// HTTPHandler serves JSON-RPC over HTTP as an [http.Handler].
//
// Each POST body with content type application/json is one message (a request or a batch).
// The reply, if any, is the response body with status 200. Exchanges without a reply,
// such as notifications, get 204 No Content. Other methods get 405, other content types 415,
// and bodies larger than MaxBytes get 413.
//
// HTTPHandler sets the context key [CtxHTTPRequest] with the current [*http.Request].
type HTTPHandler struct {
	handler RequestHandler
	// Logger is attached to every request context.
	Logger zerolog.Logger
	// MaxBytes limits the request body size. Zero disables it.
	MaxBytes int64
}

// NewHTTPHandler returns an [*HTTPHandler] passing request bodies to handler.
func NewHTTPHandler(handler RequestHandler) *HTTPHandler {
	return &HTTPHandler{handler: handler, Logger: zerolog.Nop()}
}

// ServeHTTP implements [http.Handler].
func (h *HTTPHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		resp.Header().Set("Allow", http.MethodPost)
		resp.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	if mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type")); err != nil || mediaType != contentTypeJSON {
		resp.WriteHeader(http.StatusUnsupportedMediaType)

		return
	}

	body := req.Body

	if h.MaxBytes > 0 {
		body = http.MaxBytesReader(resp, body, h.MaxBytes)
	}

	// Never write to the ResponseWriter while the body is still being read.
	raw, err := io.ReadAll(body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			resp.WriteHeader(http.StatusRequestEntityTooLarge)

			return
		}

		h.Logger.Debug().Err(err).Msg("Failed to read HTTP request body")
		resp.WriteHeader(http.StatusBadRequest)

		return
	}

	ctx := h.Logger.With().Str("remote", req.RemoteAddr).Logger().WithContext(req.Context())
	ctx = context.WithValue(ctx, CtxHTTPRequest, req)

	reply := h.handler.HandleRequest(ctx, raw)
	if len(reply) == 0 {
		resp.WriteHeader(http.StatusNoContent)

		return
	}

	resp.Header().Set("Content-Type", contentTypeJSON)
	_, _ = io.Copy(resp, bytes.NewReader(reply))
}

// HTTPServer is a [ServerConnector] serving an [HTTPHandler] on one path of a listener.
//
// Use [NewHTTPServer] or [Listen] with an http uri.
type HTTPServer struct {
	// Logger is used for server errors and attached to every request context.
	Logger zerolog.Logger
	// MaxBytes limits request body size, see [HTTPHandler.MaxBytes].
	MaxBytes int64
	// ReadHeaderTimeout defaults to [DefaultHTTPReadTimeout].
	ReadHeaderTimeout time.Duration
	// ShutdownTimeout defaults to [DefaultHTTPShutdownTimeout].
	ShutdownTimeout time.Duration

	listener net.Listener
	handler  RequestHandler
	server   *http.Server
	path     string
	done     chan struct{}
	mu       sync.Mutex
	stopped  bool
}

// NewHTTPServer returns a new [*HTTPServer] serving path on ln.
func NewHTTPServer(ln net.Listener, path string) *HTTPServer {
	if path == "" {
		path = "/"
	}

	return &HTTPServer{
		Logger:            zerolog.Nop(),
		ReadHeaderTimeout: DefaultHTTPReadTimeout,
		ShutdownTimeout:   DefaultHTTPShutdownTimeout,
		listener:          ln,
		path:              path,
	}
}

// Addr returns the listener's network address.
func (s *HTTPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// SetHandler implements [ServerConnector].
func (s *HTTPServer) SetHandler(handler RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = handler
}

// Start implements [ServerConnector]. It serves in the background and returns immediately.
// Cancelling ctx stops the server like [HTTPServer.Stop].
func (s *HTTPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.handler == nil:
		return ErrNoHandler
	case s.server != nil:
		return ErrAlreadyStarted
	}

	handler := NewHTTPHandler(s.handler)
	handler.Logger = s.Logger
	handler.MaxBytes = s.MaxBytes

	httpMux := http.NewServeMux()
	httpMux.Handle(s.path, handler)

	s.server = &http.Server{
		Handler:           httpMux,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.done = make(chan struct{})

	server, done := s.server, s.done

	go func() {
		defer close(done)

		if err := server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	context.AfterFunc(ctx, func() { _ = s.Stop() })

	return nil
}

// Stop implements [ServerConnector]. It shuts the server down gracefully, closing it
// forcefully once [HTTPServer.ShutdownTimeout] elapses.
func (s *HTTPServer) Stop() error {
	s.mu.Lock()
	server, done, stopped := s.server, s.done, s.stopped
	s.stopped = server != nil
	s.mu.Unlock()

	if server == nil {
		return ErrServerNotStarted
	}

	if stopped {
		<-done

		return nil
	}

	sctx, stop := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer stop()

	err := server.Shutdown(sctx)
	if err != nil {
		err = server.Close()
	}

	<-done

	return err
}
