package jsonrpc

import (
	"sort"
	"strings"
)

// Namespace selects one of the two disjoint method-name scopes.
type Namespace int

const (
	// NamespaceApplication holds the service's own methods.
	NamespaceApplication Namespace = iota
	// NamespaceSystem holds the built-in "system.*" methods.
	NamespaceSystem
)

func (ns Namespace) String() string {
	if ns == NamespaceSystem {
		return "system"
	}
	return "application"
}

// registry maps method names to methods, separately per namespace. It is
// populated during setup and read-only once the service begins handling
// requests, so lookups need no locking.
type registry struct {
	application map[string]*Method
	system      map[string]*Method
}

func newRegistry() *registry {
	return &registry{
		application: make(map[string]*Method),
		system:      make(map[string]*Method),
	}
}

func (r *registry) table(ns Namespace) map[string]*Method {
	if ns == NamespaceSystem {
		return r.system
	}
	return r.application
}

// register adds a method under name in the given namespace. Names must be
// unique within a namespace; they may collide across namespaces.
func (r *registry) register(ns Namespace, name string, h Handler) error {
	table := r.table(ns)
	if _, exists := table[name]; exists {
		return &DuplicateMethodError{Name: name}
	}
	table[name] = newMethod(h)
	return nil
}

// resolve routes a qualified method name to its namespace and looks it up.
// A name with exactly one "." separator and the prefix "system" routes to
// the system namespace; every other name, dotted or not, is looked up
// verbatim in the application namespace. On a miss the returned error
// carries every name currently registered in the namespace searched.
func (r *registry) resolve(name string) (*Method, Namespace, *Error) {
	ns := NamespaceApplication
	if parts := strings.Split(name, "."); len(parts) == 2 && parts[0] == "system" {
		ns = NamespaceSystem
	}
	m, ok := r.table(ns)[name]
	if !ok {
		return nil, ns, NewMethodNotFound(name, r.names(ns))
	}
	return m, ns, nil
}

// names returns the sorted name list of a namespace.
func (r *registry) names(ns Namespace) []string {
	table := r.table(ns)
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
