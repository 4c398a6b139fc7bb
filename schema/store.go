// Package schema implements the validation gateway consulted by the
// jsonrpc dispatcher, backed by a store of JSON Schemas.
//
// Schemas are loaded from a directory (or any fs.FS) of *.json files and
// keyed by file base name: the schema for a method's params lives in
// "<method>.params.json" and for its result in "<method>.result.json". A
// zero-length file declares that the value must be absent: an empty
// "<method>.params.json" means the method takes no parameters, an empty
// "<method>.result.json" that it returns no result. References between
// files in the same directory resolve by file name.
package schema

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Store holds compiled schemas keyed by schema name, e.g.
// "subtract.params". It is read-only after Load and safe for concurrent
// use.
type Store struct {
	entries map[string]*entry
}

// entry is either a compiled schema or the absent policy.
type entry struct {
	absent bool
	schema *jsonschema.Schema
}

// Load reads and compiles every *.json file at the root of fsys.
func Load(fsys fs.FS) (*Store, error) {
	files, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	entries := make(map[string]*entry, len(files))
	compile := make([]string, 0, len(files))

	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("schema: reading %s: %w", file, err)
		}
		name := path.Base(file)
		key := strings.TrimSuffix(name, ".json")
		if len(bytes.TrimSpace(data)) == 0 {
			entries[key] = &entry{absent: true}
			continue
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema: loading %s: %w", file, err)
		}
		compile = append(compile, name)
	}

	for _, name := range compile {
		sch, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("schema: compiling %s: %w", name, err)
		}
		entries[strings.TrimSuffix(name, ".json")] = &entry{schema: sch}
	}

	return &Store{entries: entries}, nil
}

// LoadDir reads and compiles every *.json file in dir.
func LoadDir(dir string) (*Store, error) {
	return Load(os.DirFS(dir))
}

func (s *Store) get(key string) *entry {
	return s.entries[key]
}

// Has reports whether a schema or absent policy exists under key.
func (s *Store) Has(key string) bool {
	return s.entries[key] != nil
}

// Keys returns every schema key in the store, in no particular order.
func (s *Store) Keys() []string {
	out := make([]string, 0, len(s.entries))
	for key := range s.entries {
		out = append(out, key)
	}
	return out
}
