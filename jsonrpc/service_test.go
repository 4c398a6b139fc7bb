package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(ServiceDescription{
		Name:    "test service",
		ID:      "https://example.com/test",
		Version: "1.0.0",
	}, opts...)
	require.NoError(t, err)
	return svc
}

func registerSubtract(t *testing.T, svc *Service) {
	t.Helper()
	err := svc.Register("subtract", ParamsHandler(func(ctx context.Context, params, options any) (any, error) {
		args := params.([]any)
		return args[0].(float64) - args[1].(float64), nil
	}))
	require.NoError(t, err)
}

// call dispatches raw request text and decodes the response.
func call(t *testing.T, svc *Service, body string) map[string]any {
	t.Helper()
	out := svc.Call(context.Background(), []byte(body), nil)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(out, &resp))
	return resp
}

func callError(t *testing.T, svc *Service, body string) map[string]any {
	t.Helper()
	resp := call(t, svc, body)
	require.Contains(t, resp, "error", "expected an error response, got %v", resp)
	return resp["error"].(map[string]any)
}

func TestSubtractEndToEnd(t *testing.T) {
	svc := newTestService(t)
	registerSubtract(t, svc)

	resp := call(t, svc, `{"version":"1.1","method":"subtract","params":[42,23]}`)

	assert.Equal(t, "1.1", resp["version"])
	assert.Equal(t, float64(19), resp["result"])
	assert.NotContains(t, resp, "id", "id must be omitted when the request carried none")
	assert.NotContains(t, resp, "error")
}

func TestIDEchoedVerbatim(t *testing.T) {
	svc := newTestService(t)
	registerSubtract(t, svc)

	tests := []struct {
		name string
		id   string
		want any
	}{
		{"number", `1`, float64(1)},
		{"string", `"abc"`, "abc"},
		{"zero", `0`, float64(0)},
		{"empty string", `""`, ""},
		{"false", `false`, false},
		{"null", `null`, nil},
		{"object", `{"a":[1,2]}`, map[string]any{"a": []any{float64(1), float64(2)}}},
		{"array", `[1,"x"]`, []any{float64(1), "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, svc, `{"version":"1.1","id":`+tt.id+`,"method":"subtract","params":[5,3]}`)
			require.Contains(t, resp, "id")
			assert.Equal(t, tt.want, resp["id"])
			assert.Equal(t, float64(2), resp["result"])
		})
	}
}

func TestParseError(t *testing.T) {
	svc := newTestService(t)

	resp := call(t, svc, `{"version":"1.1",`)

	assert.NotContains(t, resp, "id")
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeParseError), errObj["code"])
	assert.Equal(t, "JSONRPCError", errObj["name"])
	assert.Equal(t, "Parse error", errObj["message"])
	detail := errObj["error"].(map[string]any)
	assert.NotEmpty(t, detail["message"], "parser diagnostic must be carried")
}

func TestMethodNotFound(t *testing.T) {
	svc := newTestService(t)
	registerSubtract(t, svc)
	require.NoError(t, svc.Register("add", ParamsHandler(func(ctx context.Context, params, options any) (any, error) {
		return nil, nil
	})))

	resp := call(t, svc, `{"version":"1.1","id":1,"method":"unknown"}`)

	assert.Equal(t, float64(1), resp["id"])
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
	assert.Equal(t, "Method not found", errObj["message"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "unknown", detail["method"])
	assert.Equal(t, []any{"add", "subtract"}, detail["available_methods"])
}

func TestMethodNotFoundSystemNamespace(t *testing.T) {
	svc := newTestService(t)
	registerSubtract(t, svc)

	errObj := callError(t, svc, `{"version":"1.1","method":"system.missing"}`)

	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, []any{"system.describe"}, detail["available_methods"],
		"a system-namespace miss must report system methods, not application methods")
}

func TestDottedNamesResolveInApplicationNamespace(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("math.add", ParamsHandler(func(ctx context.Context, params, options any) (any, error) {
		args := params.([]any)
		return args[0].(float64) + args[1].(float64), nil
	})))
	require.NoError(t, svc.Register("describe", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return "application describe", nil
	})))

	resp := call(t, svc, `{"version":"1.1","method":"math.add","params":[2,3]}`)
	assert.Equal(t, float64(5), resp["result"])

	// "describe" without the system prefix is an application method.
	resp = call(t, svc, `{"version":"1.1","method":"describe"}`)
	assert.Equal(t, "application describe", resp["result"])

	// A two-part name with a non-system prefix stays in the application
	// namespace.
	errObj := callError(t, svc, `{"version":"1.1","method":"other.add"}`)
	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, []any{"describe", "math.add"}, detail["available_methods"])
}

func TestInvalidEnvelope(t *testing.T) {
	svc := newTestService(t)
	registerSubtract(t, svc)

	tests := []struct {
		name string
		body string
		path string
	}{
		{"wrong version", `{"version":"2.0","method":"subtract"}`, "version"},
		{"missing version", `{"method":"subtract"}`, "version"},
		{"missing method", `{"version":"1.1"}`, "method"},
		{"non-string method", `{"version":"1.1","method":5}`, "method"},
		{"scalar params", `{"version":"1.1","method":"subtract","params":5}`, "params"},
		{"null params", `{"version":"1.1","method":"subtract","params":null}`, "params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errObj := callError(t, svc, tt.body)
			assert.Equal(t, float64(CodeInvalidRequest), errObj["code"])
			assert.Equal(t, "Invalid Request", errObj["message"])
			detail := errObj["error"].(map[string]any)
			assert.Equal(t, tt.path, detail["path"])
		})
	}
}

func TestInvalidEnvelopeRecoversID(t *testing.T) {
	svc := newTestService(t)

	resp := call(t, svc, `{"id":7,"method":"subtract"}`)
	assert.Equal(t, float64(7), resp["id"], "id must be recovered from an invalid request object")

	resp = call(t, svc, `[1,2,3]`)
	assert.NotContains(t, resp, "id")
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidRequest), errObj["code"])
}

func TestHandlerAPIError(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("fail", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return nil, &APIError{Code: 42, Message: "domain failure", Data: map[string]any{"detail": "x"}}
	})))

	errObj := callError(t, svc, `{"version":"1.1","id":1,"method":"fail"}`)

	assert.Equal(t, "APIError", errObj["name"])
	assert.Equal(t, float64(42), errObj["code"])
	assert.Equal(t, "domain failure", errObj["message"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "x", detail["detail"])
	assert.Equal(t, "fail", detail["method"])
}

func TestReservedCodeNeverForwarded(t *testing.T) {
	for _, badCode := range []int{-32768, -32700, -32600, -32099, -32000} {
		apiErr := &APIError{Code: badCode, Message: "sneaky"}
		svc := newTestService(t)
		require.NoError(t, svc.Register("fail", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
			return nil, apiErr
		})))

		errObj := callError(t, svc, `{"version":"1.1","method":"fail"}`)

		assert.Equal(t, float64(CodeReservedErrorCode), errObj["code"])
		assert.Equal(t, "Reserved error code", errObj["message"])
		detail := errObj["error"].(map[string]any)
		assert.Equal(t, float64(badCode), detail["bad_code"])
		assert.Equal(t, "fail", detail["method"])
	}
}

func TestReservedCodePolicingCoversProtocolErrors(t *testing.T) {
	// A hand-built protocol error with an undefined reserved code must be
	// intercepted just like an application error.
	svc := newTestService(t)
	require.NoError(t, svc.Register("fail", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return nil, &Error{Code: -32050, Message: "made up"}
	})))

	errObj := callError(t, svc, `{"version":"1.1","method":"fail"}`)

	assert.Equal(t, float64(CodeReservedErrorCode), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, float64(-32050), detail["bad_code"])
}

func TestHandlerProtocolErrorPassthrough(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("fail", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return nil, NewServerError("backend unavailable")
	})))

	errObj := callError(t, svc, `{"version":"1.1","method":"fail"}`)

	assert.Equal(t, "JSONRPCError", errObj["name"])
	assert.Equal(t, float64(CodeServerError), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "backend unavailable", detail["message"])
	assert.Equal(t, "fail", detail["method"])
}

func TestHandlerDefect(t *testing.T) {
	tests := []struct {
		name    string
		handler NoParamsHandler
	}{
		{"returned error", func(ctx context.Context, options any) (any, error) {
			return nil, errors.New("database exploded")
		}},
		{"panic", func(ctx context.Context, options any) (any, error) {
			panic("database exploded")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			require.NoError(t, svc.Register("boom", tt.handler))

			errObj := callError(t, svc, `{"version":"1.1","id":1,"method":"boom"}`)

			assert.Equal(t, float64(-32002), errObj["code"])
			assert.Equal(t, "Exception calling method", errObj["message"])
			detail := errObj["error"].(map[string]any)
			assert.Equal(t, "An unexpected exception was caught executing the method", detail["message"])
			assert.Contains(t, detail["exception_message"], "database exploded")
			assert.Equal(t, "boom", detail["method"])
			trace := detail["diagnostic_trace"].([]any)
			assert.NotEmpty(t, trace)
			assert.LessOrEqual(t, len(trace), maxTraceLines)
		})
	}
}

func TestSystemDescribe(t *testing.T) {
	svc := newTestService(t)

	want := map[string]any{
		"sdversion": "1.0",
		"name":      "test service",
		"id":        "https://example.com/test",
		"version":   "1.0.0",
	}

	// Idempotent: repeated calls return the identical descriptor.
	for i := 0; i < 3; i++ {
		resp := call(t, svc, `{"version":"1.1","id":1,"method":"system.describe"}`)
		assert.Equal(t, want, resp["result"])
	}
}

func TestSystemDescribeRejectsParams(t *testing.T) {
	svc := newTestService(t)

	errObj := callError(t, svc, `{"version":"1.1","method":"system.describe","params":[]}`)

	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "Method has no parameters specified, but arguments were provided", detail["message"])
}

func TestRegisterSystemMethod(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.RegisterSystem("system.ping", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return "pong", nil
	})))

	assert.Equal(t, []string{"system.describe", "system.ping"}, svc.Methods(NamespaceSystem))

	// The built-in system gateway declares no policy for extension
	// methods, so calls to them are rejected.
	errObj := callError(t, svc, `{"version":"1.1","method":"system.ping"}`)
	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "Validation is enabled, but no parameter validator was provided", detail["message"])
}

func TestDescriptionOmitsEmptyFields(t *testing.T) {
	svc, err := New(ServiceDescription{Name: "bare", ID: "urn:bare"})
	require.NoError(t, err)

	resp := call(t, svc, `{"version":"1.1","method":"system.describe"}`)

	assert.Equal(t, map[string]any{
		"sdversion": "1.0",
		"name":      "bare",
		"id":        "urn:bare",
	}, resp["result"])
}

// stubValidator is a scriptable gateway for exercising the dispatcher's
// validation policy without a schema engine.
type stubValidator struct {
	paramsSchema  map[string]bool
	noParams      map[string]bool
	resultSchema  map[string]bool
	noResult      map[string]bool
	paramsFailure *ValidationFailure
	resultFailure *ValidationFailure
}

func (v *stubValidator) HasParamsSchema(method string) bool   { return v.paramsSchema[method] }
func (v *stubValidator) HasNoParamsPolicy(method string) bool { return v.noParams[method] }
func (v *stubValidator) HasResultSchema(method string) bool   { return v.resultSchema[method] }
func (v *stubValidator) HasNoResultPolicy(method string) bool { return v.noResult[method] }

func (v *stubValidator) ValidateParams(method string, value any) *ValidationFailure {
	return v.paramsFailure
}

func (v *stubValidator) ValidateNoParams(method string) *ValidationFailure {
	return nil
}

func (v *stubValidator) ValidateResult(method string, value any) *ValidationFailure {
	return v.resultFailure
}

func echoHandler(ctx context.Context, params, options any) (any, error) {
	return params, nil
}

func TestParamsPolicyRequiredButAbsent(t *testing.T) {
	v := &stubValidator{paramsSchema: map[string]bool{"echo": true}}
	svc := newTestService(t, WithValidator(v))
	require.NoError(t, svc.Register("echo", ParamsHandler(echoHandler)))

	errObj := callError(t, svc, `{"version":"1.1","method":"echo"}`)

	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "Method has parameters specified, but none were provided", detail["message"])
}

func TestParamsPolicyForbiddenButPresent(t *testing.T) {
	v := &stubValidator{noParams: map[string]bool{"ping": true}}
	svc := newTestService(t, WithValidator(v))
	require.NoError(t, svc.Register("ping", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return "pong", nil
	})))

	errObj := callError(t, svc, `{"version":"1.1","method":"ping","params":[1]}`)

	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "Method has no parameters specified, but arguments were provided", detail["message"])
}

func TestParamsPolicyUndeclaredMethod(t *testing.T) {
	v := &stubValidator{}
	svc := newTestService(t, WithValidator(v))
	require.NoError(t, svc.Register("echo", ParamsHandler(echoHandler)))

	errObj := callError(t, svc, `{"version":"1.1","method":"echo","params":[1]}`)

	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "Validation is enabled, but no parameter validator was provided", detail["message"])
}

func TestParamsValidationFailure(t *testing.T) {
	v := &stubValidator{
		paramsSchema:  map[string]bool{"echo": true},
		paramsFailure: &ValidationFailure{Message: "5 is not of type string", Path: "0", Value: float64(5)},
	}
	svc := newTestService(t, WithValidator(v))
	require.NoError(t, svc.Register("echo", ParamsHandler(echoHandler)))

	errObj := callError(t, svc, `{"version":"1.1","method":"echo","params":[5]}`)

	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "5 is not of type string", detail["message"])
	assert.Equal(t, "0", detail["path"])
	assert.Equal(t, float64(5), detail["value"])
}

func TestParamsValidationSuccessProceeds(t *testing.T) {
	v := &stubValidator{paramsSchema: map[string]bool{"echo": true}}
	svc := newTestService(t, WithValidator(v))
	require.NoError(t, svc.Register("echo", ParamsHandler(echoHandler)))

	resp := call(t, svc, `{"version":"1.1","method":"echo","params":{"a":1}}`)

	assert.Equal(t, map[string]any{"a": float64(1)}, resp["result"])
}

func TestResultValidationRequiresValidator(t *testing.T) {
	_, err := New(ServiceDescription{Name: "x", ID: "urn:x"}, WithResultValidation())
	require.Error(t, err)
}

func TestResultValidationNoResultPolicy(t *testing.T) {
	v := &stubValidator{
		noParams: map[string]bool{"notify": true},
		noResult: map[string]bool{"notify": true},
	}
	svc := newTestService(t, WithValidator(v), WithResultValidation())
	require.NoError(t, svc.Register("notify", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return nil, nil
	})))

	resp := call(t, svc, `{"version":"1.1","id":1,"method":"notify"}`)
	assert.Nil(t, resp["result"])
	assert.NotContains(t, resp, "error")
}

func TestResultValidationNoResultPolicyViolated(t *testing.T) {
	v := &stubValidator{
		noParams: map[string]bool{"notify": true},
		noResult: map[string]bool{"notify": true},
	}
	svc := newTestService(t, WithValidator(v), WithResultValidation())
	require.NoError(t, svc.Register("notify", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return "surprise", nil
	})))

	errObj := callError(t, svc, `{"version":"1.1","method":"notify"}`)

	assert.Equal(t, float64(CodeInvalidResult), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "The method is specified to not return a result, yet a value was returned", detail["message"])
	assert.Equal(t, "surprise", detail["value"])
}

func TestResultValidationFailure(t *testing.T) {
	v := &stubValidator{
		noParams:      map[string]bool{"now": true},
		resultSchema:  map[string]bool{"now": true},
		resultFailure: &ValidationFailure{Message: "not a timestamp", Path: "", Value: "yesterday"},
	}
	svc := newTestService(t, WithValidator(v), WithResultValidation())
	require.NoError(t, svc.Register("now", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return "yesterday", nil
	})))

	errObj := callError(t, svc, `{"version":"1.1","method":"now"}`)

	assert.Equal(t, float64(CodeInvalidResult), errObj["code"])
	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "not a timestamp", detail["message"])
}

func TestResultValidationUndeclaredMethod(t *testing.T) {
	v := &stubValidator{noParams: map[string]bool{"now": true}}
	svc := newTestService(t, WithValidator(v), WithResultValidation())
	require.NoError(t, svc.Register("now", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return "x", nil
	})))

	errObj := callError(t, svc, `{"version":"1.1","method":"now"}`)

	detail := errObj["error"].(map[string]any)
	assert.Equal(t, "Validation is enabled, but no result validator was provided", detail["message"])
}

func TestUnserializableResult(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("bad", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return make(chan int), nil
	})))

	resp := call(t, svc, `{"version":"1.1","id":9,"method":"bad"}`)

	errObj := resp["error"].(map[string]any)
	assert.Equal(t, float64(CodeInternalError), errObj["code"])
	assert.Equal(t, float64(9), resp["id"])
}

func TestCallValueDecodedRequest(t *testing.T) {
	svc := newTestService(t)
	registerSubtract(t, svc)

	resp := svc.CallValue(context.Background(), map[string]any{
		"version": "1.1",
		"id":      "req-1",
		"method":  "subtract",
		"params":  []any{float64(10), float64(4)},
	}, nil)

	assert.Equal(t, "1.1", resp["version"])
	assert.Equal(t, "req-1", resp["id"])
	assert.Equal(t, float64(6), resp["result"])
}

func TestOptionsPassedThrough(t *testing.T) {
	svc := newTestService(t)
	type authInfo struct{ user string }
	require.NoError(t, svc.Register("whoami", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return options.(*authInfo).user, nil
	})))

	out := svc.Call(context.Background(), []byte(`{"version":"1.1","method":"whoami"}`), &authInfo{user: "alice"})

	var resp map[string]any
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, "alice", resp["result"])
}

func TestConcurrentInvocationCounters(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Register("noop", NoParamsHandler(func(ctx context.Context, options any) (any, error) {
		return nil, nil
	})))

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			svc.Call(context.Background(), []byte(`{"version":"1.1","method":"noop"}`), nil)
		}()
	}
	wg.Wait()

	stats, ok := svc.MethodStats("noop")
	require.True(t, ok)
	assert.Equal(t, uint64(n), stats.CallCount, "no increment may be lost under concurrency")
	assert.Equal(t, uint64(0), stats.ErrorCount)
}
