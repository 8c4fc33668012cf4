package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/solatis/groupstore/internal/types"
)

var (
	// ErrStoreNotFound indicates a storage name with no configuration.
	ErrStoreNotFound = errors.New("storage not configured")

	// ErrUnknownConnector indicates a configured connector tag with no factory.
	ErrUnknownConnector = errors.New("unknown connector")

	// ErrNoDefault indicates an empty storage name with no default configured.
	ErrNoDefault = errors.New("empty storage name and no default storage")
)

// StoreConfig describes one named storage.
// Attribute values may contain {name} placeholders filled from runtime attributes.
type StoreConfig struct {
	Connector  string
	Attributes types.Attributes
}

// Factory creates an unopened connector.
type Factory func(logger *slog.Logger) Connector

// Registry opens connectors on demand and caches them by
// (storage name, runtime attributes).
type Registry struct {
	defaultName string
	stores      map[string]StoreConfig
	logger      *slog.Logger
	instrument  bool

	mu        sync.Mutex
	factories map[string]Factory
	open      map[string]Connector
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger handed to connector factories.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics wraps every opened connector with Prometheus instrumentation.
func WithMetrics() RegistryOption {
	return func(r *Registry) {
		r.instrument = true
	}
}

// NewRegistry creates a registry over the configured stores.
func NewRegistry(defaultName string, stores map[string]StoreConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		defaultName: defaultName,
		stores:      stores,
		logger:      slog.Default(),
		factories:   make(map[string]Factory),
		open:        make(map[string]Connector),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a connector tag to a factory. Later registrations win.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = f
}

// DefaultName returns the configured default storage name.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Get returns an open connector for name, opening it on first use.
// An empty name selects the default storage.
func (r *Registry) Get(ctx context.Context, name string, runtime types.Attributes) (Connector, error) {
	if name == "" {
		if r.defaultName == "" {
			return nil, ErrNoDefault
		}
		name = r.defaultName
	}

	key := cacheKey(name, runtime)

	// Held across Open so one key is never opened twice.
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.open[key]; ok {
		return c, nil
	}

	cfg, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStoreNotFound, name)
	}
	factory, ok := r.factories[cfg.Connector]
	if !ok {
		return nil, fmt.Errorf("%w: %q for storage %q", ErrUnknownConnector, cfg.Connector, name)
	}

	c := factory(r.logger.With("storage", name))
	if err := c.Open(ctx, Substitute(cfg.Attributes, runtime)); err != nil {
		return nil, err
	}
	if r.instrument {
		c = Instrument(name, c)
	}

	r.logger.Info("storage opened", "storage", name, "connector", cfg.Connector)
	r.open[key] = c
	return c, nil
}

// Close closes every cached connector and empties the cache.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, c := range r.open {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.open, key)
	}
	return errors.Join(errs...)
}

// Substitute replaces {name} placeholders in every attribute value.
func Substitute(attrs, runtime types.Attributes) types.Attributes {
	out := make(types.Attributes, len(attrs))
	for k, v := range attrs {
		for name, value := range runtime {
			v = strings.ReplaceAll(v, "{"+name+"}", value)
		}
		out[k] = v
	}
	return out
}

func cacheKey(name string, runtime types.Attributes) string {
	keys := make([]string, 0, len(runtime))
	for k := range runtime {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(name))
	for _, k := range keys {
		h.Write([]byte{0x00})
		h.Write([]byte(k))
		h.Write([]byte{0x00})
		h.Write([]byte(runtime[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
