package jsonrpc

// ValidationFailure describes a single schema validation failure: a human
// message, the path locating the failure within the validated value, and
// the offending value itself.
type ValidationFailure struct {
	Message string
	Path    string
	Value   any
}

func (f *ValidationFailure) Error() string {
	return f.Message
}

// payload renders the failure as the structured error payload used by
// validation error responses.
func (f *ValidationFailure) payload() map[string]any {
	return map[string]any{
		"message": f.Message,
		"path":    f.Path,
		"value":   f.Value,
	}
}

// Validator is the capability interface the dispatcher consults to decide
// whether a method's params and result require validation, and whether a
// given value satisfies it. Implementations are keyed by method name; the
// schema package provides one backed by a JSON Schema store.
//
// A method declares either a params schema or a no-params policy, never
// both, and likewise for its result. Validators must be safe for
// concurrent use once the service is handling requests.
type Validator interface {
	HasParamsSchema(method string) bool
	HasNoParamsPolicy(method string) bool
	HasResultSchema(method string) bool
	HasNoResultPolicy(method string) bool

	// ValidateParams and ValidateResult report nil when value conforms
	// to the declared schema.
	ValidateParams(method string, value any) *ValidationFailure
	ValidateNoParams(method string) *ValidationFailure
	ValidateResult(method string, value any) *ValidationFailure
}

// systemValidator is the built-in gateway for the system namespace. It is
// the in-code equivalent of a schema store holding "system.describe.params"
// as a no-params policy and "system.describe.result" as an object schema.
type systemValidator struct{}

func (systemValidator) HasParamsSchema(method string) bool {
	return false
}

func (systemValidator) HasNoParamsPolicy(method string) bool {
	return method == "system.describe"
}

func (systemValidator) HasResultSchema(method string) bool {
	return method == "system.describe"
}

func (systemValidator) HasNoResultPolicy(method string) bool {
	return false
}

func (systemValidator) ValidateParams(method string, value any) *ValidationFailure {
	return &ValidationFailure{
		Message: `no params schema for method "` + method + `"`,
		Value:   value,
	}
}

func (systemValidator) ValidateNoParams(method string) *ValidationFailure {
	if method == "system.describe" {
		return nil
	}
	return &ValidationFailure{
		Message: `no params policy for method "` + method + `"`,
	}
}

func (systemValidator) ValidateResult(method string, value any) *ValidationFailure {
	if _, ok := value.(map[string]any); ok {
		return nil
	}
	return &ValidationFailure{
		Message: "system method result must be an object",
		Value:   value,
	}
}
