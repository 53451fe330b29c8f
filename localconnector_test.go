package jsonrpc2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalConnector(t *testing.T) {
	t.Parallel()

	var seen []byte

	connector := NewLocalConnector(RequestHandlerFunc(func(_ context.Context, request []byte) []byte {
		seen = request
		request[0] = 'X'

		return []byte(`reply`)
	}))

	request := []byte(`{"a":1}`)

	reply, err := connector.SendRequest(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(reply))
	assert.Equal(t, `{"a":1}`, string(request), "the handler works on a copy")
	assert.Equal(t, byte('X'), seen[0])

	require.NoError(t, connector.SendNotification(context.Background(), []byte(`{}`)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = connector.SendRequest(ctx, request)
	require.ErrorIs(t, err, ErrClientConnector)
	require.ErrorIs(t, err, context.Canceled)
}
