// Package jsonrpc implements a transport-agnostic JSON-RPC 1.1 dispatcher.
//
// This package implements the JSON-RPC 1.1 request/response protocol
// (https://www.jsonrpc.org/specification_v1) without binding to any
// transport: any host that can hand it a request and serialize its
// response can serve it, whether over HTTP, sockets, or a message queue.
//
// # Basic Usage
//
// Create a service, register methods, and dispatch requests:
//
//	svc, _ := jsonrpc.New(jsonrpc.ServiceDescription{
//		Name: "calculator",
//		ID:   "https://example.com/calculator",
//	})
//	svc.Register("subtract", jsonrpc.ParamsHandler(
//		func(ctx context.Context, params, options any) (any, error) {
//			args := params.([]any)
//			return args[0].(float64) - args[1].(float64), nil
//		}))
//
//	response := svc.Call(ctx, []byte(`{"version":"1.1","method":"subtract","params":[42,23]}`), nil)
//	// {"version":"1.1","result":19}
//
// Use CallValue when the transport has already decoded the request body.
//
// # Handlers
//
// A method is registered with one of two handler signatures, fixed at
// registration time:
//
//	jsonrpc.ParamsHandler(func(ctx context.Context, params, options any) (any, error))
//	jsonrpc.NoParamsHandler(func(ctx context.Context, options any) (any, error))
//
// The options value is opaque per-call data supplied by the transport,
// such as authentication info; the dispatcher passes it through untouched.
//
// # Namespaces
//
// Method names with the "system." prefix resolve in the built-in system
// namespace; all other names resolve verbatim in the application
// namespace. A system.describe method is always registered and returns
// the static ServiceDescription.
//
// # Errors
//
// Handlers surface domain errors by returning *APIError with an
// application-chosen code outside the reserved range -32768..-32000, or a
// protocol error by returning *Error from one of the New* constructors.
// Any other returned error, and any panic, becomes the -32002 "Exception
// calling method" response. An application error that illegally carries a
// reserved code is intercepted and reported as a -32001 reserved-code
// conflict; the illegal code never reaches the wire.
//
// # Validation
//
// With WithValidator, every application method must declare either a
// params schema or a no-params policy through the Validator interface,
// and requests are checked before invocation. WithResultValidation
// extends the same gating to handler results. The schema package provides
// a Validator backed by a directory of JSON Schemas.
package jsonrpc
