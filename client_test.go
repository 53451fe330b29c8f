package jsonrpc2

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closeTracker is a local connector recording calls to Close.
type closeTracker struct {
	*LocalConnector
	closed atomic.Int64
}

func (c *closeTracker) Close() error {
	c.closed.Add(1)

	return nil
}

func TestClient_Call(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	client := NewClient(NewLocalConnector(NewDispatcher(testMux(t, &counter))))
	ctx := context.Background()

	result, err := client.Call(ctx, "add", []int{3, 10})
	require.NoError(t, err)
	assert.JSONEq(t, `13`, string(result.RawMessage()))

	var sum int64

	require.NoError(t, client.CallInto(ctx, "add", [2]int64{20, 22}, &sum))
	assert.Equal(t, int64(42), sum)

	require.NoError(t, client.CallInto(ctx, "method1", nil, nil))

	_, err = client.Call(ctx, "invalid_method", nil)
	require.ErrorIs(t, err, ErrMethodNotFound)

	err = client.CallInto(ctx, "add", "bad params", &sum)
	require.ErrorIs(t, err, ErrInvalidParams)

	require.NoError(t, client.Notify(ctx, "notify", nil))
	assert.Equal(t, int64(1), counter.Load())

	require.ErrorIs(t, client.Notify(ctx, "notify", 12), ErrInvalidParams)
}

func TestClient_ConcurrentCalls(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	client := NewClient(NewLocalConnector(NewDispatcher(testMux(t, &counter))))

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			var sum int

			if assert.NoError(t, client.CallInto(context.Background(), "add", []int{i, i}, &sum)) {
				assert.Equal(t, 2*i, sum)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(50), client.invoker.LastID(), "every call got its own id")
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	blocked := RequestHandlerFunc(func(ctx context.Context, _ []byte) []byte {
		<-ctx.Done()

		return nil
	})

	client := NewClient(NewLocalConnector(blocked))
	client.SetDefaultTimeout(10 * time.Millisecond)

	start := time.Now()
	_, err := client.Call(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.ErrorIs(t, err, ErrClientConnector)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	connector := &closeTracker{LocalConnector: NewLocalConnector(NewDispatcher(testMux(t, &counter)))}
	client := NewClient(connector)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, int64(1), connector.closed.Load())

	_, err := client.Call(context.Background(), "method1", nil)
	require.ErrorIs(t, err, ErrClientClosed)
	require.ErrorIs(t, client.Notify(context.Background(), "notify", nil), ErrClientClosed)

	require.NoError(t, NewClient(NewLocalConnector(nil)).Close(), "connectors without Close are fine")
}
