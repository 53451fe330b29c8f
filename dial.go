package jsonrpc2

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strings"
)

// Dial connects to destURI and returns a [ClientConnector] for it.
//
// The destURI format is `scheme:address` or an http/https URL.
//
// Supported Schemes:
//   - `tcp`, `tcp4`, `tcp6`: A TCP stream. Address is `host:port`.
//   - `unix`: A Unix domain stream socket. Address is the socket file path.
//   - `tls`, `tls4`, `tls6`: A TLS stream over TCP with the default [*tls.Config].
//   - `http`, `https`: An [*HTTPClientConnector] posting to the full URL. No connection is made up front.
//
// Examples:
//   - `tcp:127.0.0.1:9090`
//   - `unix:///tmp/mysocket.sock`
//   - `tls:127.0.0.1:9443`
//   - `http://127.0.0.1:8080/rpc`
//
// Returns [ErrUnknownScheme] if the scheme is not supported.
//
//nolint:ireturn // The concrete connector depends on the scheme.
func Dial(ctx context.Context, destURI string) (ClientConnector, error) {
	uri, err := url.Parse(destURI)
	if err != nil {
		return nil, err
	}

	if uri.Scheme == "http" || uri.Scheme == "https" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return NewHTTPClientConnector(destURI, nil), nil
	}

	conn, err := DialStream(ctx, destURI)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// DialStream connects to a stream uri (tcp, unix or tls scheme) and returns a
// [*StreamClientConnector]. It is the default dial function of [ConnectorPool].
func DialStream(ctx context.Context, destURI string) (*StreamClientConnector, error) {
	uri, err := url.Parse(destURI)
	if err != nil {
		return nil, err
	}

	switch uri.Scheme {
	case "tcp", "tcp4", "tcp6":
		return dial(ctx, uri.Scheme, streamAddr(uri, destURI))
	case "tls", "tls4", "tls6":
		return dialTLS(ctx, uri.Scheme, streamAddr(uri, destURI))
	case "unix":
		return dial(ctx, uri.Scheme, uri.Path)
	}

	return nil, ErrUnknownScheme
}

// streamAddr accepts both `tcp:host:port` and `tcp://host:port`.
func streamAddr(uri *url.URL, raw string) string {
	if uri.Host != "" {
		return uri.Host
	}

	return strings.TrimPrefix(raw, uri.Scheme+":")
}

func dial(ctx context.Context, network, addr string) (*StreamClientConnector, error) {
	conn, err := new(net.Dialer).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	return NewStreamClientConnector(conn), nil
}

func dialTLS(ctx context.Context, network, addr string) (*StreamClientConnector, error) {
	tcpNetwork := "tcp"

	switch {
	case strings.HasSuffix(network, "6"):
		tcpNetwork = "tcp6"
	case strings.HasSuffix(network, "4"):
		tcpNetwork = "tcp4"
	}

	conn, err := new(tls.Dialer).DialContext(ctx, tcpNetwork, addr)
	if err != nil {
		return nil, err
	}

	return NewStreamClientConnector(conn), nil
}

// Listen builds a [ServerConnector] for listenURI. The listener is opened immediately,
// serving starts with Start.
//
// Supported schemes: tcp, tcp4, tcp6 and unix give a [*StreamServer];
// http gives an [*HTTPServer] serving the uri path.
//
// Example uris: 'tcp:127.0.0.1:9090', 'unix:///tmp/mysocket', 'http://127.0.0.1:8080/rpc'
//
//nolint:ireturn // The concrete connector depends on the scheme.
func Listen(listenURI string) (ServerConnector, error) {
	uri, err := url.Parse(listenURI)
	if err != nil {
		return nil, err
	}

	switch uri.Scheme {
	case "tcp", "tcp4", "tcp6":
		ln, err := net.Listen(uri.Scheme, streamAddr(uri, listenURI))
		if err != nil {
			return nil, err
		}

		return NewStreamServer(ln), nil
	case "unix":
		ln, err := net.Listen(uri.Scheme, uri.Path)
		if err != nil {
			return nil, err
		}

		return NewStreamServer(ln), nil
	case "http":
		ln, err := net.Listen("tcp", uri.Host)
		if err != nil {
			return nil, err
		}

		return NewHTTPServer(ln, uri.Path), nil
	}

	return nil, ErrUnknownScheme
}
