// Package httprpc adapts a jsonrpc.Service to net/http.
//
// The handler accepts POST requests carrying a JSON-RPC 1.1 request body
// and mirrors the request encoding in the response: application/json
// bodies are dispatched as raw text, application/cbor bodies are decoded,
// dispatched as values, and re-encoded as CBOR. Transport-level failures
// (wrong verb, unsupported media type) are HTTP errors, never JSON-RPC
// errors.
package httprpc

import (
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/mnehpets/jsonrpc11/jsonrpc"
)

// cborDecMode decodes CBOR maps with string keys so request values have
// the same shape as JSON-decoded ones.
var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Handler serves a jsonrpc.Service over HTTP.
type Handler struct {
	service *jsonrpc.Service
	options func(r *http.Request) any
}

// Option configures a Handler.
type Option func(*Handler)

// WithOptions installs a hook deriving the opaque per-call options value
// from the HTTP request, e.g. verified auth claims. The default passes
// nil.
func WithOptions(fn func(r *http.Request) any) Option {
	return func(h *Handler) {
		h.options = fn
	}
}

// NewHandler creates an http.Handler dispatching to svc.
func NewHandler(svc *jsonrpc.Service, opts ...Option) *Handler {
	h := &Handler{service: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "JSON-RPC requires POST method", http.StatusMethodNotAllowed)
		return
	}

	var options any
	if h.options != nil {
		options = h.options(r)
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/cbor"):
		h.serveCBOR(w, r, options)
	case contentType == "" || strings.HasPrefix(contentType, "application/json"):
		h.serveJSON(w, r, options)
	default:
		http.Error(w, "Content-Type must be application/json or application/cbor", http.StatusUnsupportedMediaType)
	}
}

func (h *Handler) serveJSON(w http.ResponseWriter, r *http.Request, options any) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	resp := h.service.Call(r.Context(), body, options)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}

func (h *Handler) serveCBOR(w http.ResponseWriter, r *http.Request, options any) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req any
	var resp map[string]any
	if err := cborDecMode.Unmarshal(body, &req); err != nil {
		resp = map[string]any{
			"version": jsonrpc.Version,
			"error": map[string]any{
				"name":    "JSONRPCError",
				"code":    jsonrpc.CodeParseError,
				"message": "Parse error",
				"error":   map[string]any{"message": err.Error()},
			},
		}
	} else {
		resp = h.service.CallValue(r.Context(), req, options)
	}

	out, err := cbor.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
