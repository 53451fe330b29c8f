package jsonrpc2

import (
	"cmp"
	"context"
	"errors"
	"io"
	"time"
)

var ErrEncoding = errors.New("jsonrpc2: encoding error")

// StreamWriter writes encoded messages to a stream, one per line.
//
// Cancellation and the idle timeout use [DeadlineWriter] when the writer supports it,
// otherwise the writer is closed if it implements [io.Closer].
type StreamWriter struct {
	w io.Writer
	t time.Duration
}

// NewStreamWriter returns a new [*StreamWriter] utilizing w as the output.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// SetIdleTimeout sets an idle timeout for writing a message. Zero or less disables it.
func (i *StreamWriter) SetIdleTimeout(d time.Duration) {
	i.t = d
}

func (i *StreamWriter) deadlineWrite(ctx context.Context, dWriter DeadlineWriter, line []byte) error {
	dctx, stop := context.WithCancel(ctx)
	defer stop()

	timeout := time.Time{}

	if i.t > 0 {
		timeout = time.Now().Add(i.t)
	}

	if err := dWriter.SetWriteDeadline(timeout); err != nil {
		_, werr := i.w.Write(line)

		return cmp.Or(werr, err)
	}

	after := context.AfterFunc(dctx, func() {
		_ = dWriter.SetWriteDeadline(time.Now())
	})

	_, err := i.w.Write(line)

	if !after() {
		return errors.Join(err, ctx.Err())
	}

	return err
}

func (i *StreamWriter) closeWrite(ctx context.Context, cWriter io.Closer, line []byte) error {
	var dctx context.Context

	var stop context.CancelFunc

	if i.t > 0 {
		dctx, stop = context.WithTimeout(ctx, i.t)
	} else {
		dctx, stop = context.WithCancel(ctx)
	}

	defer stop()

	after := context.AfterFunc(dctx, func() {
		cWriter.Close()
	})

	_, err := i.w.Write(line)

	if !after() {
		return errors.Join(err, dctx.Err())
	}

	return err
}

// WriteMessage writes msg followed by a newline in a single write.
func (i *StreamWriter) WriteMessage(ctx context.Context, msg []byte) error {
	line := make([]byte, 0, len(msg)+1)
	line = append(line, msg...)
	line = append(line, '\n')

	if d, ok := i.w.(DeadlineWriter); ok {
		return i.deadlineWrite(ctx, d, line)
	}

	if c, ok := i.w.(io.Closer); ok {
		return i.closeWrite(ctx, c, line)
	}

	_, err := i.w.Write(line)

	return err
}

// Close closes the underlying writer if it supports [io.Closer].
func (i *StreamWriter) Close() error {
	if c, ok := i.w.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
