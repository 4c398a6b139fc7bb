package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mnehpets/jsonrpc11/jsonrpc"
)

// Validation implements jsonrpc.Validator over a schema Store.
type Validation struct {
	store *Store
}

// NewValidation wraps a loaded store as a validation gateway.
func NewValidation(store *Store) *Validation {
	return &Validation{store: store}
}

// NewValidationDir loads dir and wraps it as a validation gateway.
func NewValidationDir(dir string) (*Validation, error) {
	store, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewValidation(store), nil
}

func (v *Validation) HasParamsSchema(method string) bool {
	e := v.store.get(method + ".params")
	return e != nil && !e.absent
}

func (v *Validation) HasNoParamsPolicy(method string) bool {
	e := v.store.get(method + ".params")
	return e != nil && e.absent
}

func (v *Validation) HasResultSchema(method string) bool {
	e := v.store.get(method + ".result")
	return e != nil && !e.absent
}

func (v *Validation) HasNoResultPolicy(method string) bool {
	e := v.store.get(method + ".result")
	return e != nil && e.absent
}

// ValidateParams checks the supplied params value against the method's
// params schema.
func (v *Validation) ValidateParams(method string, value any) *jsonrpc.ValidationFailure {
	return v.validate(method+".params", value)
}

// ValidateNoParams confirms that the method declares the no-params policy.
// It fails only when called for a method whose schema requires params.
func (v *Validation) ValidateNoParams(method string) *jsonrpc.ValidationFailure {
	if !v.HasNoParamsPolicy(method) {
		return &jsonrpc.ValidationFailure{
			Message: "Params must be provided for this method",
		}
	}
	return nil
}

// ValidateResult checks a handler's result value against the method's
// result schema.
func (v *Validation) ValidateResult(method string, value any) *jsonrpc.ValidationFailure {
	return v.validate(method+".result", value)
}

func (v *Validation) validate(key string, value any) *jsonrpc.ValidationFailure {
	e := v.store.get(key)
	if e == nil {
		return &jsonrpc.ValidationFailure{
			Message: fmt.Sprintf("Schema %q does not exist", key),
			Value:   value,
		}
	}
	if e.absent {
		return &jsonrpc.ValidationFailure{
			Message: fmt.Sprintf("Schema %q specifies the value must be absent", key),
			Value:   value,
		}
	}
	if err := e.schema.Validate(value); err != nil {
		return failureFrom(err, value)
	}
	return nil
}

// failureFrom converts a jsonschema validation error into the structured
// failure shape, locating the innermost cause.
func failureFrom(err error, value any) *jsonrpc.ValidationFailure {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &jsonrpc.ValidationFailure{Message: err.Error(), Value: value}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &jsonrpc.ValidationFailure{
		Message: leaf.Message,
		Path:    pointerToPath(leaf.InstanceLocation),
		Value:   valueAt(value, leaf.InstanceLocation),
	}
}

// pointerToPath renders a JSON pointer as a dotted path: "/a/0/b" -> "a.0.b".
func pointerToPath(pointer string) string {
	segments := pointerSegments(pointer)
	return strings.Join(segments, ".")
}

// valueAt walks a JSON pointer into a decoded JSON value, returning the
// offending value it locates. Falls back to the whole value when the
// pointer cannot be followed.
func valueAt(value any, pointer string) any {
	current := value
	for _, seg := range pointerSegments(pointer) {
		switch node := current.(type) {
		case map[string]any:
			child, ok := node[seg]
			if !ok {
				return value
			}
			current = child
		case []any:
			idx := 0
			if _, err := fmt.Sscanf(seg, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return value
			}
			current = node[idx]
		default:
			return value
		}
	}
	return current
}

func pointerSegments(pointer string) []string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return nil
	}
	segments := strings.Split(pointer, "/")
	for i, seg := range segments {
		seg = strings.ReplaceAll(seg, "~1", "/")
		segments[i] = strings.ReplaceAll(seg, "~0", "~")
	}
	return segments
}
