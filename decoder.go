package jsonrpc2

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

var (
	ErrDecoding     = errors.New("jsonrpc2: decoding error")
	ErrJSONTooLarge = errors.New("jsonrpc2: JSON payload larger than configured read limit")
)

// StreamReader splits a byte stream into consecutive JSON values.
//
// Values may be separated by any whitespace, newline delimited JSON being the usual framing.
// It supports an optional per-message read limit via [StreamReader.SetLimit] and an idle
// timeout via [StreamReader.SetIdleTimeout]. Use [NewStreamReader] to create instances.
//
// A StreamReader is not safe for concurrent use.
type StreamReader struct {
	r  io.Reader
	lr *io.LimitedReader
	d  JSONDecoder
	n  int64
	t  time.Duration
}

// NewStreamReader creates and returns a new [*StreamReader] that reads from r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r, d: NewJSONDecoder(r)}
}

// SetLimit configures a maximum number of bytes (n) read for a single JSON value.
// Larger values make [StreamReader.ReadMessage] fail with [ErrJSONTooLarge].
// A limit of 0 or less disables the read limit.
//
// SetLimit resets the internal decoder and must be called before the first read.
func (i *StreamReader) SetLimit(n int64) {
	i.n = n
	if n > 0 {
		i.lr = &io.LimitedReader{R: i.r, N: i.n}
		i.d = NewJSONDecoder(i.lr)
	} else {
		i.lr = nil
		i.d = NewJSONDecoder(i.r)
	}
}

// SetIdleTimeout configures an idle timeout for [StreamReader.ReadMessage].
//
// Timeout mechanism depends on the underlying [io.Reader]:
//   - If the reader implements [DeadlineReader] (like [net.Conn]), its SetReadDeadline method is used.
//   - If the reader implements [io.Closer] but not [DeadlineReader], it is closed upon timeout.
//   - If the reader implements neither, timeouts are not supported.
//
// A duration of 0 or less disables the idle timeout.
func (i *StreamReader) SetIdleTimeout(d time.Duration) {
	i.t = d
}

// ioErr translates hitting the read limit into [ErrJSONTooLarge].
func (i *StreamReader) ioErr(e error) error {
	if i.lr != nil && i.lr.N <= 0 {
		if errors.Is(e, io.EOF) || errors.Is(e, io.ErrUnexpectedEOF) {
			return ErrJSONTooLarge
		}
	}

	return e
}

func (i *StreamReader) cancelDecode(ctx context.Context, cReader io.Closer, v any) error {
	var dctx context.Context

	var stop context.CancelFunc

	deadLiner, haveDeadline := cReader.(DeadlineReader)

	// A failed reset means the stream is already closed; Decode reports how.
	if haveDeadline && deadLiner.SetReadDeadline(time.Time{}) != nil {
		haveDeadline = false
	}

	if i.t > 0 {
		dctx, stop = context.WithTimeout(ctx, i.t)
	} else {
		dctx, stop = context.WithCancel(ctx)
	}
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)

	after := context.AfterFunc(dctx, func() {
		defer wg.Done()

		if haveDeadline {
			_ = deadLiner.SetReadDeadline(time.Now())

			return
		}

		_ = cReader.Close()
	})

	decodeErr := i.ioErr(i.d.Decode(v))

	if !after() {
		wg.Wait()
	}

	contextErr := dctx.Err()

	if decodeErr != nil {
		return errors.Join(decodeErr, contextErr)
	}

	return contextErr
}

// ReadMessage reads the next JSON value from the stream.
//
// A [*json.SyntaxError] in the result means the stream is no longer usable,
// since the position of the next value cannot be determined.
func (i *StreamReader) ReadMessage(ctx context.Context) (json.RawMessage, error) {
	if i.lr != nil {
		i.lr.N = i.n
	}

	var raw json.RawMessage

	var err error

	if c, ok := i.r.(io.Closer); ok {
		err = i.cancelDecode(ctx, c, &raw)
	} else {
		err = i.ioErr(i.d.Decode(&raw))
	}

	if err != nil {
		return nil, err
	}

	return raw, nil
}

// Close closes the underlying [io.Reader] if it implements [io.Closer].
func (i *StreamReader) Close() error {
	if c, ok := i.r.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
