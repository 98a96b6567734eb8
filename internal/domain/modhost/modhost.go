// Package modhost exposes the service module ABI as a Go interface only
// (spec.md §1: the dynamic library loader is an external collaborator, not
// part of the core). What lives here is the contract a real loader sits
// behind, the ";"-separated search-path resolution skynet_module.c uses,
// and an LRU-bounded cache of resolved module descriptors.
package modhost

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/webitel/actor-runtime/internal/domain/registry"
)

// MaxResidentTypes bounds how many distinct module types the host keeps
// resolved at once (skynet_module.c's MAX_MODULE_TYPE).
const MaxResidentTypes = 32

// Module is the three-entry-point ABI a loaded service module provides.
// Create and Release are optional (nil is a valid, no-op implementation);
// Init is mandatory.
type Module struct {
	Name string

	// Create returns a fresh module instance, or nil if the module has
	// no per-instance state of its own.
	Create func() any

	// Init runs the instance's start-up logic against the owning
	// context — typically registering a callback via ctx.SetCallback
	// and parsing params. A non-nil error means the service failed to
	// launch.
	Init func(ctx *registry.Context, inst any, params string) error

	// Release tears the instance down. May be nil.
	Release func(inst any)
}

// Loader resolves a module by name, searching the configured path.
type Loader interface {
	Resolve(name string) (*Module, error)
}

// Registry resolves modules registered in-process (cmd wires concrete
// Module values in here; the out-of-scope dynamic loader would instead
// populate it from dlopen'd libraries) and caches up to MaxResidentTypes
// of them, matching spec.md §4.5's "caching loaded modules up to 32
// distinct types".
type Registry struct {
	available map[string]*Module
	cache     *lru.Cache[string, *Module]
}

// NewRegistry builds a registry seeded with the given modules.
func NewRegistry(modules ...*Module) (*Registry, error) {
	cache, err := lru.New[string, *Module](MaxResidentTypes)
	if err != nil {
		return nil, fmt.Errorf("modhost: building module cache: %w", err)
	}
	r := &Registry{
		available: make(map[string]*Module, len(modules)),
		cache:     cache,
	}
	for _, m := range modules {
		r.available[m.Name] = m
	}
	return r, nil
}

// Resolve returns the named module, consulting (and populating) the LRU
// cache of resident types.
func (r *Registry) Resolve(name string) (*Module, error) {
	if m, ok := r.cache.Get(name); ok {
		return m, nil
	}
	m, ok := r.available[name]
	if !ok {
		return nil, fmt.Errorf("modhost: module %q not found", name)
	}
	r.cache.Add(name, m)
	return m, nil
}

// SearchPath resolves a module name against a ";"-separated list of
// patterns, each containing exactly one "?" placeholder substituted with
// the module name — skynet_module.c's _try_open path-walking logic, minus
// the actual dlopen (out of scope; this just produces the candidate paths
// a real dynamic loader would try in order).
type SearchPath struct {
	patterns []string
}

// NewSearchPath parses a ";"-separated pattern list.
func NewSearchPath(spec string) SearchPath {
	var patterns []string
	for _, p := range strings.Split(spec, ";") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return SearchPath{patterns: patterns}
}

// Candidates returns every path the search path would try for name, in
// the pattern list's order, first-match-wins.
func (s SearchPath) Candidates(name string) ([]string, error) {
	out := make([]string, 0, len(s.patterns))
	for _, pattern := range s.patterns {
		idx := strings.IndexByte(pattern, '?')
		if idx < 0 {
			return nil, fmt.Errorf("modhost: invalid search pattern %q: missing '?' placeholder", pattern)
		}
		out = append(out, pattern[:idx]+name+pattern[idx+1:])
	}
	return out, nil
}
