package jsonrpc2

import (
	"io"
	"time"
)

// DeadlineReader is an [io.ReadCloser] supporting read deadlines, such as a [net.Conn].
// [StreamReader] uses it to interrupt reads on cancellation and idle timeout.
type DeadlineReader interface {
	io.ReadCloser
	SetReadDeadline(time.Time) error
}

// DeadlineWriter is an [io.WriteCloser] supporting write deadlines, such as a [net.Conn].
// [StreamWriter] uses it to interrupt writes on cancellation and idle timeout.
type DeadlineWriter interface {
	io.WriteCloser
	SetWriteDeadline(time.Time) error
}
