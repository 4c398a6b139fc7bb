package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"
)

// maxTraceLines bounds the stack capture attached to defect errors.
const maxTraceLines = 64

// Handler is the calling convention for a registered method. It is
// implemented by ParamsHandler and NoParamsHandler; the variant is fixed
// at registration time.
//
// The options argument is opaque per-call data supplied by the hosting
// transport (auth info, connection metadata) and is never inspected by
// the dispatcher.
type Handler interface {
	invoke(ctx context.Context, params, options any) (any, error)
}

// ParamsHandler handles a method that takes parameters. Params is the
// decoded JSON array or object from the request, or nil when the request
// supplied none and no validation gateway is configured.
type ParamsHandler func(ctx context.Context, params, options any) (any, error)

func (h ParamsHandler) invoke(ctx context.Context, params, options any) (any, error) {
	return h(ctx, params, options)
}

// NoParamsHandler handles a method that takes no parameters.
type NoParamsHandler func(ctx context.Context, options any) (any, error)

func (h NoParamsHandler) invoke(ctx context.Context, params, options any) (any, error) {
	if params != nil {
		return nil, errors.New("method accepts no parameters, but parameters were supplied")
	}
	return h(ctx, options)
}

// Method is a registered handler together with its invocation statistics.
// The statistics are the only mutable per-method state and are updated
// atomically, so methods may be invoked from concurrent requests.
type Method struct {
	handler Handler

	callCount  atomic.Uint64
	errorCount atomic.Uint64
	callTime   atomic.Int64 // cumulative nanoseconds across successful calls
}

func newMethod(h Handler) *Method {
	return &Method{handler: h}
}

// MethodStats is a point-in-time snapshot of a method's counters.
type MethodStats struct {
	CallCount          uint64
	ErrorCount         uint64
	CumulativeCallTime time.Duration
}

// Stats returns a snapshot of the method's counters. The three fields are
// read independently, so a snapshot taken during concurrent calls may be
// internally skewed by in-flight updates.
func (m *Method) Stats() MethodStats {
	return MethodStats{
		CallCount:          m.callCount.Load(),
		ErrorCount:         m.errorCount.Load(),
		CumulativeCallTime: time.Duration(m.callTime.Load()),
	}
}

// call invokes the handler with bookkeeping: the call count is incremented
// unconditionally before invoking, the error count on any failure, and the
// cumulative call time accrues the wall-clock duration of successful calls.
// A panicking handler is recovered and reported as an error.
func (m *Method) call(ctx context.Context, params, options any) (any, error) {
	m.callCount.Add(1)
	start := time.Now()
	result, err := m.run(ctx, params, options)
	if err != nil {
		m.errorCount.Add(1)
		return nil, err
	}
	m.callTime.Add(time.Since(start).Nanoseconds())
	return result, nil
}

func (m *Method) run(ctx context.Context, params, options any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: capturedStack()}
		}
	}()
	return m.handler.invoke(ctx, params, options)
}

// panicError carries the value and bounded stack of a recovered handler
// panic through the error channel to the dispatcher.
type panicError struct {
	value any
	stack []string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// capturedStack returns the current goroutine's stack as a frame list,
// truncated to maxTraceLines.
func capturedStack() []string {
	lines := strings.Split(strings.TrimRight(string(debug.Stack()), "\n"), "\n")
	if len(lines) > maxTraceLines {
		lines = lines[:maxTraceLines]
	}
	return lines
}
