package group

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/solatis/groupstore/internal/storage"
)

// Registry holds group definitions and caches one Group per connector and
// name. Safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	defs   map[string]Definition
	groups map[groupKey]*Group
}

type groupKey struct {
	conn storage.Connector
	name string
}

// NewRegistry returns a registry holding defs.
func NewRegistry(logger *slog.Logger, defs ...Definition) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger: logger,
		defs:   make(map[string]Definition),
		groups: make(map[groupKey]*Group),
	}
	for _, def := range defs {
		r.Define(def)
	}
	return r
}

// Define registers def under its name, replacing an earlier definition.
// Groups already built from the old definition are discarded.
func (r *Registry) Define(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := def.Name()
	r.defs[name] = def
	for key := range r.groups {
		if key.name == name {
			delete(r.groups, key)
		}
	}
}

// Names returns the defined group names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the group named name bound to conn, building it on first use.
func (r *Registry) Get(conn storage.Connector, name string) (*Group, error) {
	key := groupKey{conn: conn, name: name}

	r.mu.RLock()
	g, ok := r.groups[key]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[key]; ok {
		return g, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}

	g = New(conn, def, r.logger)
	r.groups[key] = g
	return g, nil
}
