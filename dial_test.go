package jsonrpc2

import (
	"context"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAddr(t *testing.T) {
	t.Parallel()

	//nolint:govet //Do not reorder struct
	tests := []struct {
		uri  string
		want string
	}{
		{"tcp:127.0.0.1:9090", "127.0.0.1:9090"},
		{"tcp://127.0.0.1:9090", "127.0.0.1:9090"},
		{"tcp6:[::1]:9090", "[::1]:9090"},
		{"tls:example.com:443", "example.com:443"},
	}

	for _, tc := range tests {
		uri, err := url.Parse(tc.uri)
		require.NoError(t, err)
		assert.Equal(t, tc.want, streamAddr(uri, tc.uri), tc.uri)
	}
}

func TestDial_UnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), "udp:127.0.0.1:9090")
	require.ErrorIs(t, err, ErrUnknownScheme)

	_, err = DialStream(context.Background(), "http://127.0.0.1:9090")
	require.ErrorIs(t, err, ErrUnknownScheme)

	_, err = Listen("udp:127.0.0.1:0")
	require.ErrorIs(t, err, ErrUnknownScheme)

	_, err = Dial(context.Background(), "://bad")
	require.Error(t, err)
}

func TestDial_HTTP(t *testing.T) {
	t.Parallel()

	connector, err := Dial(context.Background(), "http://127.0.0.1:1/rpc")
	require.NoError(t, err)

	httpConnector, ok := connector.(*HTTPClientConnector)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:1/rpc", httpConnector.url)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Dial(ctx, "https://127.0.0.1:1/rpc")
	require.ErrorIs(t, err, context.Canceled)
}

func TestListenAndDial(t *testing.T) {
	t.Parallel()

	//nolint:govet //Do not reorder struct
	tests := []struct {
		name   string
		listen string
		dial   func(addr string) string
	}{
		{
			name:   "tcp",
			listen: "tcp:127.0.0.1:0",
			dial:   func(addr string) string { return "tcp:" + addr },
		},
		{
			name:   "tcp url form",
			listen: "tcp://127.0.0.1:0",
			dial:   func(addr string) string { return "tcp4://" + addr },
		},
		{
			name:   "http",
			listen: "http://127.0.0.1:0/rpc",
			dial:   func(addr string) string { return "http://" + addr + "/rpc" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var counter atomic.Int64

			server, err := Listen(tc.listen)
			require.NoError(t, err)

			server.SetHandler(NewDispatcher(testMux(t, &counter)))
			require.NoError(t, server.Start(context.Background()))

			defer func() { require.NoError(t, server.Stop()) }()

			var addr string

			switch s := server.(type) {
			case *StreamServer:
				addr = s.Addr().String()
			case *HTTPServer:
				addr = s.Addr().String()
			default:
				t.Fatalf("unexpected server connector %T", server)
			}

			connector, err := Dial(context.Background(), tc.dial(addr))
			require.NoError(t, err)

			client := NewClient(connector)
			defer client.Close()

			var sum int

			require.NoError(t, client.CallInto(context.Background(), "add", []int{3, 10}, &sum))
			assert.Equal(t, 13, sum)
		})
	}
}

func TestListenAndDial_Unix(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	path := filepath.Join(t.TempDir(), "rpc.sock")

	server, err := Listen("unix://" + path)
	require.NoError(t, err)

	streamServer, ok := server.(*StreamServer)
	require.True(t, ok)

	streamServer.SetHandler(NewDispatcher(testMux(t, &counter)))
	require.NoError(t, streamServer.Start(context.Background()))

	defer func() { require.NoError(t, streamServer.Stop()) }()

	connector, err := DialStream(context.Background(), "unix://"+path)
	require.NoError(t, err)

	client := NewClient(connector)
	defer client.Close()

	var result int

	require.NoError(t, client.CallInto(context.Background(), "method2", nil, &result))
	assert.Equal(t, 22, result)
}

func TestDialStream_Refused(t *testing.T) {
	t.Parallel()

	_, err := DialStream(context.Background(), "unix://"+filepath.Join(t.TempDir(), "missing.sock"))
	require.Error(t, err)
}
