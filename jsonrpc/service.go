package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
)

// Service is a transport-agnostic JSON-RPC 1.1 dispatcher. It accepts a
// request, either as raw text or as an already-decoded value, resolves it
// to a registered handler, applies the configured validation policy,
// invokes the handler, and produces a well-formed response. Every failure
// is converted into an error response; no failure escapes the entry
// points.
//
// Register all methods before handing the service to a transport. Once
// serving, the registry is read-only and requests may be dispatched
// concurrently.
type Service struct {
	description     ServiceDescription
	registry        *registry
	validator       Validator
	systemValidator Validator
	validateResult  bool
	log             zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithValidator installs the validation gateway for application methods.
// When installed, every application method must declare either a params
// schema or a no-params policy; requests to methods with no declaration
// are rejected.
func WithValidator(v Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

// WithResultValidation enables validation of handler results against the
// gateway's result declarations. Requires WithValidator.
func WithResultValidation() Option {
	return func(s *Service) {
		s.validateResult = true
	}
}

// WithLogger sets the logger used to report dispatch anomalies. The
// default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// New creates a Service exposing the given description via the built-in
// system.describe method.
func New(description ServiceDescription, opts ...Option) (*Service, error) {
	s := &Service{
		description:     description,
		registry:        newRegistry(),
		systemValidator: systemValidator{},
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validateResult && s.validator == nil {
		return nil, errors.New("jsonrpc: result validation requires a validator")
	}
	if err := s.registry.register(NamespaceSystem, "system.describe", NoParamsHandler(s.handleSystemDescribe)); err != nil {
		return nil, err
	}
	return s, nil
}

// Register adds a method to the application namespace. Registration may
// only happen before the service begins handling requests.
func (s *Service) Register(name string, h Handler) error {
	return s.registry.register(NamespaceApplication, name, h)
}

// RegisterSystem adds a method to the system namespace under a
// "system."-qualified name. The system namespace is always validated
// against the built-in declarations, which cover only system.describe;
// calls to other system methods are rejected by the params policy.
func (s *Service) RegisterSystem(name string, h Handler) error {
	return s.registry.register(NamespaceSystem, name, h)
}

// MethodStats returns the invocation statistics of a registered method,
// resolved by qualified name.
func (s *Service) MethodStats(name string) (MethodStats, bool) {
	m, _, err := s.registry.resolve(name)
	if err != nil {
		return MethodStats{}, false
	}
	return m.Stats(), true
}

// Methods returns the sorted method names registered in a namespace.
func (s *Service) Methods(ns Namespace) []string {
	return s.registry.names(ns)
}

// Call handles a raw JSON-RPC 1.1 request text and returns the serialized
// response. Invalid JSON produces a parse error response with no id.
func (s *Service) Call(ctx context.Context, data []byte, options any) []byte {
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return s.marshalResponse(s.errorResponse(NewParseError(err.Error()), "", nil, false))
	}
	return s.marshalResponse(s.CallValue(ctx, body, options))
}

// CallValue handles an already-decoded request value and returns the
// decoded response object. It never panics and never returns an invalid
// response, whatever the handler does.
func (s *Service) CallValue(ctx context.Context, body any, options any) map[string]any {
	if verr := validateEnvelope(body); verr != nil {
		// The request failed validation, but if it is an object it may
		// still carry an id to use in the response.
		var id any
		hasID := false
		if obj, ok := body.(map[string]any); ok {
			id, hasID = obj["id"]
		}
		return s.errorResponse(verr, "", id, hasID)
	}

	obj := body.(map[string]any)
	id, hasID := obj["id"]
	method := obj["method"].(string)
	// Absent params means "no params supplied", which is distinct from a
	// present-but-empty array or object. The envelope check already
	// rejected non-container params, so presence implies non-nil.
	params := obj["params"]

	result, err := s.dispatch(ctx, method, params, options)
	if err != nil {
		return s.errorResponse(err, method, id, hasID)
	}

	resp := map[string]any{
		"version": Version,
		"result":  result,
	}
	if hasID {
		resp["id"] = id
	}
	return resp
}

// dispatch runs the method lifecycle after envelope validation: resolve,
// params policy, invoke, result policy.
func (s *Service) dispatch(ctx context.Context, method string, params, options any) (any, error) {
	m, ns, nfErr := s.registry.resolve(method)
	if nfErr != nil {
		return nil, nfErr
	}
	validator := s.validatorFor(ns)

	if validator != nil {
		switch {
		case validator.HasParamsSchema(method):
			if params == nil {
				return nil, NewInvalidParams("Method has parameters specified, but none were provided")
			}
			if f := validator.ValidateParams(method, params); f != nil {
				return nil, invalidParamsFailure(f)
			}
		case validator.HasNoParamsPolicy(method):
			if params != nil {
				return nil, NewInvalidParams("Method has no parameters specified, but arguments were provided")
			}
			if f := validator.ValidateNoParams(method); f != nil {
				return nil, invalidParamsFailure(f)
			}
		default:
			// With a gateway configured, every method in the namespace
			// must declare a params policy.
			return nil, NewInvalidParams("Validation is enabled, but no parameter validator was provided")
		}
	}

	result, err := m.call(ctx, params, options)
	if err != nil {
		return nil, err
	}

	if !s.validateResult {
		return result, nil
	}
	switch {
	case validator.HasNoResultPolicy(method):
		if result != nil {
			return nil, NewInvalidResult(
				"The method is specified to not return a result, yet a value was returned", "", result)
		}
		return nil, nil
	case validator.HasResultSchema(method):
		if f := validator.ValidateResult(method, result); f != nil {
			return nil, invalidResultFailure(f)
		}
		return result, nil
	default:
		return nil, NewInvalidParams("Validation is enabled, but no result validator was provided")
	}
}

func (s *Service) validatorFor(ns Namespace) Validator {
	if ns == NamespaceSystem {
		return s.systemValidator
	}
	return s.validator
}

// errorResponse converts any failure into a well-formed error response.
// The method name, when available, is stamped into the error payload.
func (s *Service) errorResponse(err error, method string, id any, hasID bool) map[string]any {
	we := errorToWire(err)
	if method != "" {
		stampMethod(&we, method)
	}

	// Server-internal codes are anomalies: either a defect in a handler or
	// a policy violation in the application, never the caller's fault.
	if we.Code == CodeInternalError || (we.Code <= CodeServerError && we.Code >= -32099) {
		s.log.Error().Int("code", we.Code).Str("method", method).Str("message", we.Message).
			Msg("jsonrpc: server error")
	} else {
		s.log.Debug().Int("code", we.Code).Str("method", method).
			Msg("jsonrpc: request failed")
	}

	resp := map[string]any{
		"version": Version,
		"error":   we.asMap(),
	}
	if hasID {
		resp["id"] = id
	}
	return resp
}

// marshalResponse serializes a response object. A response that cannot be
// serialized (a handler returned a non-JSON-serializable result) is a
// defect; it is logged and replaced with an internal error response.
func (s *Service) marshalResponse(resp map[string]any) []byte {
	out, err := json.Marshal(resp)
	if err == nil {
		return out
	}
	s.log.Error().Err(err).Msg("jsonrpc: response serialization failed")

	fallback := map[string]any{
		"version": Version,
		"error":   errorToWire(NewInternalError()).asMap(),
	}
	if id, ok := resp["id"]; ok {
		fallback["id"] = id
	}
	out, err = json.Marshal(fallback)
	if err != nil {
		// The id itself is unserializable; it can only have come from
		// CallValue with a non-JSON value, so drop it.
		delete(fallback, "id")
		out, _ = json.Marshal(fallback)
	}
	return out
}
