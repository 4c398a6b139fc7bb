package jsonrpc

import "context"

// ServiceDescription is the static descriptor returned by the built-in
// system.describe method. Its shape is owned by the surrounding
// application; the dispatcher exposes it verbatim.
type ServiceDescription struct {
	Name    string
	ID      string
	Version string
	Summary string
}

// describe renders the descriptor in the service-description wire shape.
// Version and Summary are omitted when empty.
func (d ServiceDescription) describe() map[string]any {
	out := map[string]any{
		"sdversion": "1.0",
		"name":      d.Name,
		"id":        d.ID,
	}
	if d.Version != "" {
		out["version"] = d.Version
	}
	if d.Summary != "" {
		out["summary"] = d.Summary
	}
	return out
}

// handleSystemDescribe is the built-in system.describe handler.
func (s *Service) handleSystemDescribe(ctx context.Context, options any) (any, error) {
	return s.description.describe(), nil
}
