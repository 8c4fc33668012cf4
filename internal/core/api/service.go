// Package api exposes record groups as endpoints: permission checks, query
// string decoding and error classification in front of group operations.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// Service resolves (store, group) pairs to endpoints.
// Thin orchestration layer delegating to the storage and group registries.
type Service struct {
	stores *storage.Registry
	groups *group.Registry
	perms  map[string]Permissions
	logger *slog.Logger
}

// NewService creates a service. perms is keyed by group name; groups
// without an entry get DefaultPermissions.
func NewService(stores *storage.Registry, groups *group.Registry, perms map[string]Permissions, logger *slog.Logger) (*Service, error) {
	if stores == nil {
		return nil, fmt.Errorf("stores cannot be nil")
	}
	if groups == nil {
		return nil, fmt.Errorf("groups cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		stores: stores,
		groups: groups,
		perms:  perms,
		logger: logger,
	}, nil
}

// Endpoint opens (or reuses) the named store and binds the named group.
// An empty store name selects the registry default.
func (s *Service) Endpoint(ctx context.Context, store, name string, runtime types.Attributes) (*Endpoint, error) {
	conn, err := s.stores.Get(ctx, store, runtime)
	if err != nil {
		return nil, err
	}
	g, err := s.groups.Get(conn, name)
	if err != nil {
		return nil, err
	}

	perms, ok := s.perms[name]
	if !ok {
		perms = DefaultPermissions()
	}
	return NewEndpoint(g, perms, s.logger), nil
}

// Groups returns the names of the defined groups.
func (s *Service) Groups() []string {
	return s.groups.Names()
}
