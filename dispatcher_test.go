package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// testMux registers the methods used across the dispatcher, invoker and client tests.
func testMux(t *testing.T, counter *atomic.Int64) *MethodMux {
	t.Helper()

	mux := NewMethodMux()

	require.NoError(t, mux.RegisterMethodFunc("add", func(_ context.Context, req *Request) (any, error) {
		var nums []int64
		if err := req.Params.Unmarshal(&nums); err != nil || len(nums) != 2 {
			return nil, ErrInvalidParams.WithData("expected two integers")
		}

		return nums[0] + nums[1], nil
	}))
	require.NoError(t, mux.RegisterMethodFunc("method1", func(context.Context, *Request) (any, error) { return 11, nil }))
	require.NoError(t, mux.RegisterMethodFunc("method2", func(context.Context, *Request) (any, error) { return 22, nil }))
	require.NoError(t, mux.RegisterMethodFunc("fail", func(context.Context, *Request) (any, error) {
		return nil, errors.New("plain failure")
	}))
	require.NoError(t, mux.RegisterMethodFunc("custom", func(context.Context, *Request) (any, error) {
		return nil, NewErrorWithData(-32099, "custom failure", []int{1, 2})
	}))
	require.NoError(t, mux.RegisterMethodFunc("panic", func(context.Context, *Request) (any, error) {
		panic("handler exploded")
	}))
	require.NoError(t, mux.RegisterMethodFunc("nil", func(context.Context, *Request) (any, error) { return nil, nil }))
	require.NoError(t, mux.RegisterMethodFunc("raw", func(context.Context, *Request) (any, error) {
		return RawResponse(`{"jsonrpc":"2.0","id":"fixed","result":true}`), nil
	}))
	require.NoError(t, mux.RegisterMethodFunc("unencodable", func(context.Context, *Request) (any, error) {
		return make(chan int), nil
	}))
	require.NoError(t, mux.RegisterMethodFunc("nil_error", func(context.Context, *Request) (any, error) {
		var err *Error

		return nil, err
	}))

	require.NoError(t, mux.RegisterNotificationFunc("notify", func(context.Context, *Request) error {
		counter.Add(1)

		return nil
	}))
	require.NoError(t, mux.RegisterNotificationFunc("notify_fail", func(context.Context, *Request) error {
		counter.Add(1)

		return ErrInternalError
	}))
	require.NoError(t, mux.RegisterNotificationFunc("notify_panic", func(context.Context, *Request) error {
		panic("notification exploded")
	}))
	require.NoError(t, mux.RegisterNotificationFunc("notify_nil_error", func(context.Context, *Request) error {
		var err *Error

		counter.Add(1)

		return err
	}))

	return mux
}

func TestDispatcher_Single(t *testing.T) {
	t.Parallel()

	//nolint:govet //Do not reorder struct
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple call",
			input: `{"jsonrpc":"2.0","method":"add","params":[3,10],"id":0}`,
			want:  `{"jsonrpc":"2.0","id":0,"result":13}`,
		},
		{
			name:  "string id",
			input: `{"jsonrpc":"2.0","method":"add","params":[1,1],"id":"a"}`,
			want:  `{"jsonrpc":"2.0","id":"a","result":2}`,
		},
		{
			name:  "null id is a call",
			input: `{"jsonrpc":"2.0","method":"method1","id":null}`,
			want:  `{"jsonrpc":"2.0","id":null,"result":11}`,
		},
		{
			name:  "unknown method",
			input: `{"jsonrpc":"2.0","method":"invalid_method","id":2}`,
			want:  `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Method not found"}}`,
		},
		{
			name:  "method table only serves calls",
			input: `{"jsonrpc":"2.0","method":"notify","id":3}`,
			want:  `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Method not found"}}`,
		},
		{
			name:  "invalid params from handler",
			input: `{"jsonrpc":"2.0","method":"add","params":{"a":1},"id":4}`,
			want:  `{"jsonrpc":"2.0","id":4,"error":{"code":-32602,"message":"Invalid params","data":"expected two integers"}}`,
		},
		{
			name:  "plain handler error",
			input: `{"jsonrpc":"2.0","method":"fail","id":5}`,
			want:  `{"jsonrpc":"2.0","id":5,"error":{"code":-1,"message":"plain failure"}}`,
		},
		{
			name:  "structured handler error",
			input: `{"jsonrpc":"2.0","method":"custom","id":6}`,
			want:  `{"jsonrpc":"2.0","id":6,"error":{"code":-32099,"message":"custom failure","data":[1,2]}}`,
		},
		{
			name:  "panic",
			input: `{"jsonrpc":"2.0","method":"panic","id":7}`,
			want:  `{"jsonrpc":"2.0","id":7,"error":{"code":-1,"message":"handler exploded"}}`,
		},
		{
			name:  "nil result",
			input: `{"jsonrpc":"2.0","method":"nil","id":8}`,
			want:  `{"jsonrpc":"2.0","id":8,"result":null}`,
		},
		{
			name:  "raw response",
			input: `{"jsonrpc":"2.0","method":"raw","id":9}`,
			want:  `{"jsonrpc":"2.0","id":"fixed","result":true}`,
		},
		{
			name:  "parse error",
			input: `{"jsonrpc":"2.0","method":"add"`,
			want:  `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`,
		},
	}

	var counter atomic.Int64

	dispatcher := NewDispatcher(testMux(t, &counter))

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reply := dispatcher.HandleRequest(context.Background(), []byte(tc.input))
			require.NotNil(t, reply)
			assert.JSONEq(t, tc.want, string(reply))
		})
	}

	t.Run("unencodable result", func(t *testing.T) {
		t.Parallel()

		reply := dispatcher.HandleRequest(context.Background(), []byte(`{"jsonrpc":"2.0","method":"unencodable","id":10}`))

		resp, err := ParseErrorResponse(reply)
		require.NoError(t, err)
		assert.True(t, resp.ID.Equal(NewID(int64(10))))
		assert.Equal(t, CodeInternalError, resp.Error.Code())
		assert.True(t, resp.Error.HasData())
	})
}

func TestDispatcher_InvalidRequest(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`{"jsonrpc":"2.0","method":"add","params":[1,2],"id":1,"extra":true}`,
		`{"jsonrpc":"1.0","method":"add","id":1}`,
		`{"method":"add","id":1}`,
		`{"jsonrpc":"2.0","method":1,"id":1}`,
		`{"jsonrpc":"2.0","method":"add","id":1.5}`,
		`{"jsonrpc":"2.0","method":"add","id":true}`,
		`{"jsonrpc":"2.0","method":"add","params":"bar","id":1}`,
		`{"jsonrpc":"2.0","method":"add","params":null}`,
		`"just a string"`,
		`1`,
	}

	var counter atomic.Int64

	dispatcher := NewDispatcher(testMux(t, &counter))

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			reply := dispatcher.HandleRequest(context.Background(), []byte(input))

			resp, err := ParseErrorResponse(reply)
			require.NoError(t, err, "reply: %s", reply)
			assert.True(t, resp.ID.IsNull(), "id must be null when the request is invalid")
			assert.Equal(t, CodeInvalidRequest, resp.Error.Code())
			assert.True(t, resp.Error.HasData())
		})
	}
}

func TestDispatcher_Notifications(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	dispatcher := NewDispatcher(testMux(t, &counter))
	ctx := context.Background()

	assert.Nil(t, dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify"}`)))
	assert.Nil(t, dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify_fail","params":[1]}`)))
	assert.Nil(t, dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify_panic"}`)))
	assert.Nil(t, dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"unknown"}`)))
	assert.Nil(t, dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"add","params":[1,2]}`)),
		"the notification table only serves notifications")

	assert.Equal(t, int64(2), counter.Load())
}

func TestDispatcher_TypedNilError(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	dispatcher := NewDispatcher(testMux(t, &counter))
	ctx := context.Background()

	reply := dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"nil_error","id":1}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-1,"message":"nil error"}}`, string(reply))

	for _, serial := range []bool{false, true} {
		dispatcher.SerialBatch = serial

		reply = dispatcher.HandleRequest(ctx, []byte(`[
			{"jsonrpc":"2.0","method":"nil_error","id":1},
			{"jsonrpc":"2.0","method":"method1","id":2},
			{"jsonrpc":"2.0","method":"notify_nil_error"}
		]`))

		assert.JSONEq(t, `[
			{"jsonrpc":"2.0","id":1,"error":{"code":-1,"message":"nil error"}},
			{"jsonrpc":"2.0","id":2,"result":11}
		]`, string(reply), "serial: %v", serial)
	}

	assert.Nil(t, dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify_nil_error"}`)))
	assert.Equal(t, int64(3), counter.Load())
}

func TestDispatcher_Batch(t *testing.T) {
	t.Parallel()

	for _, serial := range []bool{false, true} {
		var counter atomic.Int64

		dispatcher := NewDispatcher(testMux(t, &counter))
		dispatcher.SerialBatch = serial

		reply := dispatcher.HandleRequest(context.Background(), []byte(`[
			{"jsonrpc":"2.0","method":"method1","id":1},
			{"jsonrpc":"2.0","method":"method2","id":2},
			{"jsonrpc":"2.0","method":"notify"}
		]`))

		assert.JSONEq(t, `[
			{"jsonrpc":"2.0","id":1,"result":11},
			{"jsonrpc":"2.0","id":2,"result":22}
		]`, string(reply), "serial: %v", serial)
		assert.Equal(t, int64(1), counter.Load())
	}
}

func TestDispatcher_BatchEdgeCases(t *testing.T) {
	t.Parallel()

	//nolint:govet //Do not reorder struct
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty batch",
			input: `[]`,
			want:  `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`,
		},
		{
			name:  "broken batch",
			input: `[{"jsonrpc":"2.0","method":"method1","id":1},{"jsonrpc":"2.0","method"`,
			want:  `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`,
		},
		{
			name:  "single element",
			input: `[{"jsonrpc":"2.0","method":"method2","id":"x"}]`,
			want:  `[{"jsonrpc":"2.0","id":"x","result":22}]`,
		},
		{
			name:  "mixed valid and unknown",
			input: `[{"jsonrpc":"2.0","method":"method1","id":1},{"jsonrpc":"2.0","method":"nope","id":2}]`,
			want:  `[{"jsonrpc":"2.0","id":1,"result":11},{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Method not found"}}]`,
		},
	}

	var counter atomic.Int64

	dispatcher := NewDispatcher(testMux(t, &counter))

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reply := dispatcher.HandleRequest(context.Background(), []byte(tc.input))
			assert.JSONEq(t, tc.want, string(reply))
		})
	}

	t.Run("invalid elements", func(t *testing.T) {
		t.Parallel()

		reply := dispatcher.HandleRequest(context.Background(), []byte(`[1,2,3]`))

		var replies []json.RawMessage

		require.NoError(t, json.Unmarshal(reply, &replies))
		require.Len(t, replies, 3)

		for _, r := range replies {
			resp, err := ParseErrorResponse(r)
			require.NoError(t, err)
			assert.Equal(t, CodeInvalidRequest, resp.Error.Code())
			assert.True(t, resp.ID.IsNull())
		}
	})

	t.Run("only notifications", func(t *testing.T) {
		t.Parallel()

		reply := dispatcher.HandleRequest(context.Background(), []byte(`[
			{"jsonrpc":"2.0","method":"notify"},
			{"jsonrpc":"2.0","method":"notify_fail"},
			{"jsonrpc":"2.0","method":"missing"}
		]`))
		assert.Nil(t, reply)
	})
}

func TestDispatcher_BatchReplyCount(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	dispatcher := NewDispatcher(testMux(t, &counter))

	var batch bytes.Buffer

	batch.WriteByte('[')

	const calls, notifications = 40, 25

	for i := range calls + notifications {
		if i > 0 {
			batch.WriteByte(',')
		}

		var req *Request
		if i < notifications {
			req = NewNotification("notify")
		} else {
			req = NewRequestWithParams(int64(i), "add", NewParamsArray([]int64{int64(i), 1}))
		}

		buf, err := json.Marshal(req)
		require.NoError(t, err)
		batch.Write(buf)
	}

	batch.WriteByte(']')

	var replies []json.RawMessage

	require.NoError(t, json.Unmarshal(dispatcher.HandleRequest(context.Background(), batch.Bytes()), &replies))
	require.Len(t, replies, calls)
	assert.Equal(t, int64(notifications), counter.Load())

	for i, raw := range replies {
		resp, err := ParseResponse(raw)
		require.NoError(t, err)

		id, err := resp.ID.Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(notifications+i), id, "replies keep input order")

		var sum int64

		require.NoError(t, resp.Result.Unmarshal(&sum))
		assert.Equal(t, id+1, sum)
	}
}

func TestDispatcher_Limiter(t *testing.T) {
	t.Parallel()

	var counter atomic.Int64

	dispatcher := NewDispatcher(testMux(t, &counter))
	dispatcher.Limiter = rate.NewLimiter(rate.Every(1<<62), 1)

	ctx := context.Background()

	reply := dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"method1","id":1}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":11}`, string(reply))

	reply = dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"method1","id":2}`))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32000,"message":"Server overloaded"}}`, string(reply))

	assert.Nil(t, dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify"}`)))
	assert.Zero(t, counter.Load(), "notifications over the limit are dropped")
}

func TestDispatcher_Callbacks(t *testing.T) {
	t.Parallel()

	var (
		counter  atomic.Int64
		decoding atomic.Int64
		handler  atomic.Int64
		panics   atomic.Int64
		encoding atomic.Int64
	)

	dispatcher := NewDispatcher(testMux(t, &counter))
	dispatcher.Callbacks = Callbacks{
		OnDecodingError: func(context.Context, json.RawMessage, error) { decoding.Add(1) },
		OnHandlerError:  func(context.Context, *Request, error) { handler.Add(1) },
		OnHandlerPanic:  func(context.Context, *Request, any) { panics.Add(1) },
		OnEncodingError: func(context.Context, any, error) { encoding.Add(1) },
	}

	ctx := context.Background()

	dispatcher.HandleRequest(ctx, []byte(`{bad json`))
	dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0"}`))
	dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify_fail"}`))
	dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"panic","id":1}`))
	dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify_panic"}`))
	dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"unencodable","id":2}`))

	assert.Equal(t, int64(2), decoding.Load())
	assert.Equal(t, int64(1), handler.Load())
	assert.Equal(t, int64(2), panics.Load())
	assert.Equal(t, int64(1), encoding.Load())
}

func TestDispatcher_DefaultCallbacksLog(t *testing.T) {
	t.Parallel()

	var (
		counter atomic.Int64
		logs    bytes.Buffer
	)

	logger := zerolog.New(&logs)
	ctx := logger.WithContext(context.Background())

	dispatcher := NewDispatcher(testMux(t, &counter))

	dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"panic","params":[1],"id":"p"}`))
	dispatcher.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"notify_fail"}`))

	out := logs.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"method":"panic"`)
	assert.Contains(t, out, `"id":"\"p\""`)
	assert.Contains(t, out, `"params":[1]`)
	assert.Contains(t, out, `"panic_value":"handler exploded"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"method":"notify_fail"`)
}
