package jsonrpc

import (
	"fmt"
	"maps"
)

// Standard JSON-RPC error codes. Codes -32768 through -32000 inclusive are
// reserved for protocol-defined errors; -32000 through -32099 is the
// sub-range for implementation-defined server errors. Application errors
// must use codes outside the reserved range.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeServerError       = -32000
	CodeReservedErrorCode = -32001
	CodeInvalidResult     = -32002
)

const (
	reservedCodeMin = -32768
	reservedCodeMax = -32000
)

// standardMessages maps each protocol-defined code to its fixed message.
var standardMessages = map[int]string{
	CodeParseError:        "Parse error",
	CodeInvalidRequest:    "Invalid Request",
	CodeMethodNotFound:    "Method not found",
	CodeInvalidParams:     "Invalid params",
	CodeInternalError:     "Internal error",
	CodeServerError:       "Server error",
	CodeReservedErrorCode: "Reserved error code",
	CodeInvalidResult:     "Invalid result",
}

// reservedCode reports whether code falls inside the protocol-reserved range.
func reservedCode(code int) bool {
	return code >= reservedCodeMin && code <= reservedCodeMax
}

// Error is a protocol-defined JSON-RPC error. Handlers may return one
// directly to produce a specific protocol error response; the dispatcher
// constructs them for every failure it detects itself.
//
// Use the New* constructors rather than building Error values by hand:
// codes inside the reserved range that do not correspond to a defined
// kind are intercepted at response time and reported as a reserved-code
// conflict.
type Error struct {
	Code    int
	Message string

	// Data is the structured "error" payload of the wire error object,
	// for example {message, path, value} for validation failures.
	Data map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (%d)", e.Message, e.Code)
}

// NewParseError returns a -32700 error carrying the parser diagnostic.
func NewParseError(diagnostic string) *Error {
	return &Error{
		Code:    CodeParseError,
		Message: standardMessages[CodeParseError],
		Data:    map[string]any{"message": diagnostic},
	}
}

// NewInvalidRequest returns a -32600 error for a request that fails
// envelope validation. Path locates the offending property and value is
// the offending value.
func NewInvalidRequest(message, path string, value any) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Message: standardMessages[CodeInvalidRequest],
		Data:    map[string]any{"message": message, "path": path, "value": value},
	}
}

// NewMethodNotFound returns a -32601 error carrying the requested method
// name and the full name list of the namespace that was searched.
func NewMethodNotFound(method string, available []string) *Error {
	return &Error{
		Code:    CodeMethodNotFound,
		Message: standardMessages[CodeMethodNotFound],
		Data: map[string]any{
			"method":            method,
			"available_methods": available,
		},
	}
}

// NewInvalidParams returns a -32602 error with a detail message.
func NewInvalidParams(message string) *Error {
	return &Error{
		Code:    CodeInvalidParams,
		Message: standardMessages[CodeInvalidParams],
		Data:    map[string]any{"message": message},
	}
}

// NewInternalError returns a -32603 error.
func NewInternalError() *Error {
	return &Error{
		Code:    CodeInternalError,
		Message: standardMessages[CodeInternalError],
	}
}

// NewServerError returns a -32000 implementation-defined server error.
func NewServerError(message string) *Error {
	return &Error{
		Code:    CodeServerError,
		Message: standardMessages[CodeServerError],
		Data:    map[string]any{"message": message},
	}
}

// NewInvalidResult returns a -32002 error for a handler result that does
// not satisfy the method's declared result policy.
func NewInvalidResult(message, path string, value any) *Error {
	return &Error{
		Code:    CodeInvalidResult,
		Message: standardMessages[CodeInvalidResult],
		Data:    map[string]any{"message": message, "path": path, "value": value},
	}
}

// invalidParamsFailure converts a gateway validation failure into the
// -32602 error carrying the failure payload.
func invalidParamsFailure(f *ValidationFailure) *Error {
	return &Error{
		Code:    CodeInvalidParams,
		Message: standardMessages[CodeInvalidParams],
		Data:    f.payload(),
	}
}

// invalidResultFailure converts a gateway validation failure into the
// -32002 error carrying the failure payload.
func invalidResultFailure(f *ValidationFailure) *Error {
	return &Error{
		Code:    CodeInvalidResult,
		Message: standardMessages[CodeInvalidResult],
		Data:    f.payload(),
	}
}

// APIError is an application-defined error. Handlers return one to surface
// a domain error to the caller; the dispatcher forwards it verbatim unless
// its code falls inside the reserved range, in which case the response is
// a reserved-code conflict instead.
type APIError struct {
	Code    int
	Message string
	Data    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jsonrpc: %s (%d)", e.Message, e.Code)
}

// DuplicateMethodError reports a registration under a name already present
// in the same namespace. This is a setup-time error, never a request-time
// error.
type DuplicateMethodError struct {
	Name string
}

func (e *DuplicateMethodError) Error() string {
	return fmt.Sprintf("jsonrpc: method %q already registered", e.Name)
}

// wireError is the error member of an error response:
// {name, code, message, error?}.
type wireError struct {
	Name    string
	Code    int
	Message string
	Data    map[string]any
}

// asMap renders the wire error as a decoded value, so responses keep the
// same shape whatever encoding the transport applies.
func (we wireError) asMap() map[string]any {
	out := map[string]any{
		"name":    we.Name,
		"code":    we.Code,
		"message": we.Message,
	}
	if we.Data != nil {
		out["error"] = we.Data
	}
	return out
}

// errorToWire is the single chokepoint converting any failure into its
// wire form. Reserved-range policing happens here, uniformly: application
// errors may never carry a reserved code, and protocol errors may only
// carry the codes the taxonomy defines. Anything else is a programming
// defect and becomes the -32002 catch-all.
func errorToWire(err error) wireError {
	switch e := err.(type) {
	case *Error:
		if _, known := standardMessages[e.Code]; !known && reservedCode(e.Code) {
			return reservedCodeConflict(e.Code)
		}
		return wireError{Name: "JSONRPCError", Code: e.Code, Message: e.Message, Data: e.Data}
	case *APIError:
		if reservedCode(e.Code) {
			return reservedCodeConflict(e.Code)
		}
		return wireError{Name: "APIError", Code: e.Code, Message: e.Message, Data: e.Data}
	default:
		return defectToWire(err)
	}
}

// reservedCodeConflict builds the -32001 error emitted in place of any
// error that illegally carries a code from the reserved range.
func reservedCodeConflict(badCode int) wireError {
	return wireError{
		Name:    "JSONRPCError",
		Code:    CodeReservedErrorCode,
		Message: standardMessages[CodeReservedErrorCode],
		Data: map[string]any{
			"message":  "An error code was issued by the api which conflicts with the reserved range between -32768 and -32000",
			"bad_code": badCode,
		},
	}
}

// defectToWire wraps an unrecognized handler failure (a returned plain
// error or a recovered panic) as the -32002 catch-all. The trace is a
// bounded frame list, never an unbounded capture.
func defectToWire(err error) wireError {
	var trace []string
	if pe, ok := err.(*panicError); ok {
		trace = pe.stack
	} else {
		trace = capturedStack()
	}
	return wireError{
		Name:    "JSONRPCError",
		Code:    CodeInvalidResult,
		Message: "Exception calling method",
		Data: map[string]any{
			"message":           "An unexpected exception was caught executing the method",
			"exception_message": err.Error(),
			"diagnostic_trace":  trace,
		},
	}
}

// stampMethod records the invoked method name in the error payload. The
// payload is cloned first so application-owned error data is never
// mutated.
func stampMethod(we *wireError, method string) {
	if we.Data == nil {
		we.Data = map[string]any{"method": method}
		return
	}
	we.Data = maps.Clone(we.Data)
	we.Data["method"] = method
}
