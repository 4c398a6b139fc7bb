package jsonrpc

// Version is the protocol version string carried by every request and
// response.
const Version = "1.1"

// validateEnvelope checks a decoded request against the protocol request
// shape: version must equal Version, method is required and must be a
// string, params when present must be an array or object, and id is
// unconstrained. Returns an InvalidRequest error locating the first
// violation, or nil.
func validateEnvelope(body any) *Error {
	obj, ok := body.(map[string]any)
	if !ok {
		return NewInvalidRequest("request must be a JSON object", "", body)
	}

	version, ok := obj["version"]
	if !ok {
		return NewInvalidRequest("required property is missing", "version", nil)
	}
	if vs, ok := version.(string); !ok || vs != Version {
		return NewInvalidRequest(`version must be the string "`+Version+`"`, "version", version)
	}

	method, ok := obj["method"]
	if !ok {
		return NewInvalidRequest("required property is missing", "method", nil)
	}
	if _, ok := method.(string); !ok {
		return NewInvalidRequest("method must be a string", "method", method)
	}

	if params, ok := obj["params"]; ok {
		switch params.(type) {
		case []any, map[string]any:
		default:
			return NewInvalidRequest("params must be an array or object", "params", params)
		}
	}

	return nil
}
