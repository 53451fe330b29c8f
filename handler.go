package jsonrpc2

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrMethodAlreadyExists is returned by [MethodMux.RegisterMethod] and [MethodMux.RegisterNotification]
// when attempting to register a handler for a name that is already registered.
var ErrMethodAlreadyExists = errors.New("method already exists in mux")

// MethodHandler processes JSON-RPC 2.0 method calls.
//
// Handle returns a result value (which will be marshaled to JSON) and a nil error
// on success, or a nil result and an error on failure.
//
// Result Handling:
//   - A [RawResponse] is written to the wire verbatim as the full reply.
//   - Otherwise, the result is wrapped in a [Response] carrying the request id.
//   - If the result is nil, it will be marshaled as JSON `null`.
//
// Error Handling:
//   - If the returned error is, or wraps, an [Error], that [Error] is used directly.
//   - Otherwise, the reply carries code [CodeUnknown] with the error string as message.
type MethodHandler interface {
	Handle(ctx context.Context, req *Request) (result any, err error)
}

// NotificationHandler processes JSON-RPC 2.0 notifications.
//
// Errors returned by Notify are reported to [Callbacks.OnHandlerError] and never answered.
type NotificationHandler interface {
	Notify(ctx context.Context, req *Request) error
}

// Registry looks up handlers by name. It is consumed by [Dispatcher].
type Registry interface {
	Method(name string) (MethodHandler, bool)
	Notification(name string) (NotificationHandler, bool)
}

// MethodHandlerFunc adapts a function to the [MethodHandler] interface.
type MethodHandlerFunc func(context.Context, *Request) (any, error)

// Handle calls f(ctx, req).
func (f MethodHandlerFunc) Handle(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// NotificationHandlerFunc adapts a function to the [NotificationHandler] interface.
type NotificationHandlerFunc func(context.Context, *Request) error

// Notify calls f(ctx, req).
func (f NotificationHandlerFunc) Notify(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// MethodMux holds two case-sensitive name tables, one for method calls and one for notifications.
//
// MethodMux is safe for concurrent use, though handlers are normally all registered
// before the owning server starts. Use [NewMethodMux] to create instances.
type MethodMux struct {
	methods       sync.Map // map[string]MethodHandler
	notifications sync.Map // map[string]NotificationHandler
}

// NewMethodMux creates and returns a new, initialized [*MethodMux].
func NewMethodMux() *MethodMux {
	return &MethodMux{}
}

// RegisterMethod associates a [MethodHandler] with a method name.
// It returns [ErrMethodAlreadyExists] if the name is already registered.
//
// Example:
//
//	mux := jsonrpc2.NewMethodMux()
//	if err := mux.RegisterMethod("arith.add", addHandler); err != nil {
//	    // duplicate method
//	}
func (mm *MethodMux) RegisterMethod(method string, handler MethodHandler) error {
	if _, loaded := mm.methods.LoadOrStore(method, handler); loaded {
		return fmt.Errorf("method '%s': %w", method, ErrMethodAlreadyExists)
	}

	return nil
}

// RegisterMethodFunc is [MethodMux.RegisterMethod] for a plain function.
//
// Example:
//
//	err := mux.RegisterMethodFunc("utils.echo", func(ctx context.Context, req *jsonrpc2.Request) (any, error) {
//	    var params []any
//	    if err := req.Params.Unmarshal(&params); err != nil {
//	        return nil, jsonrpc2.ErrInvalidParams.WithData(err.Error())
//	    }
//	    return params, nil
//	})
func (mm *MethodMux) RegisterMethodFunc(method string, f func(context.Context, *Request) (any, error)) error {
	return mm.RegisterMethod(method, MethodHandlerFunc(f))
}

// ReplaceMethod registers or replaces the handler for the given method name.
func (mm *MethodMux) ReplaceMethod(method string, handler MethodHandler) {
	mm.methods.Store(method, handler)
}

// ReplaceMethodFunc is [MethodMux.ReplaceMethod] for a plain function.
func (mm *MethodMux) ReplaceMethodFunc(method string, f func(context.Context, *Request) (any, error)) {
	mm.ReplaceMethod(method, MethodHandlerFunc(f))
}

// DeleteMethod removes the handler for the given method name, if any.
func (mm *MethodMux) DeleteMethod(method string) {
	mm.methods.Delete(method)
}

// RegisterNotification associates a [NotificationHandler] with a notification name.
// It returns [ErrMethodAlreadyExists] if the name is already registered.
func (mm *MethodMux) RegisterNotification(method string, handler NotificationHandler) error {
	if _, loaded := mm.notifications.LoadOrStore(method, handler); loaded {
		return fmt.Errorf("notification '%s': %w", method, ErrMethodAlreadyExists)
	}

	return nil
}

// RegisterNotificationFunc is [MethodMux.RegisterNotification] for a plain function.
func (mm *MethodMux) RegisterNotificationFunc(method string, f func(context.Context, *Request) error) error {
	return mm.RegisterNotification(method, NotificationHandlerFunc(f))
}

// ReplaceNotification registers or replaces the handler for the given notification name.
func (mm *MethodMux) ReplaceNotification(method string, handler NotificationHandler) {
	mm.notifications.Store(method, handler)
}

// ReplaceNotificationFunc is [MethodMux.ReplaceNotification] for a plain function.
func (mm *MethodMux) ReplaceNotificationFunc(method string, f func(context.Context, *Request) error) {
	mm.ReplaceNotification(method, NotificationHandlerFunc(f))
}

// DeleteNotification removes the handler for the given notification name, if any.
func (mm *MethodMux) DeleteNotification(method string) {
	mm.notifications.Delete(method)
}

// Method implements [Registry].
func (mm *MethodMux) Method(name string) (MethodHandler, bool) {
	value, ok := mm.methods.Load(name)
	if !ok {
		return nil, false
	}

	//nolint:errcheck //Internally managed, value is always a MethodHandler
	return value.(MethodHandler), true
}

// Notification implements [Registry].
func (mm *MethodMux) Notification(name string) (NotificationHandler, bool) {
	value, ok := mm.notifications.Load(name)
	if !ok {
		return nil, false
	}

	//nolint:errcheck //Internally managed, value is always a NotificationHandler
	return value.(NotificationHandler), true
}

// Methods returns the sorted names of all registered methods.
func (mm *MethodMux) Methods() []string {
	return sortedKeys(&mm.methods)
}

// Notifications returns the sorted names of all registered notifications.
func (mm *MethodMux) Notifications() []string {
	return sortedKeys(&mm.notifications)
}

func sortedKeys(m *sync.Map) []string {
	names := make([]string, 0)

	//nolint:errcheck //Internally managed, key is never not a string
	m.Range(func(key, _ any) bool { names = append(names, key.(string)); return true })

	slices.Sort(names)

	return names
}
