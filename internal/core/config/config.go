// Package config provides configuration management for groupstore services.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/groupstore/internal/core/api"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/storage/memstore"
	"github.com/solatis/groupstore/internal/types"
)

// ServerConfig holds configuration for the gRPC storage service.
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration

	// MetricsPort serves /metrics over HTTP; 0 disables it.
	MetricsPort int
}

// StorageConfig names the configured stores and the default one.
type StorageConfig struct {
	Default string
	Stores  map[string]storage.StoreConfig
}

// AuthConfig maps client names to API keys. An empty map disables
// authentication.
type AuthConfig struct {
	Keys map[string]string
}

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Auth    AuthConfig

	// Groups are the config-declared group definitions, compiled.
	Groups []group.Definition

	// Endpoints holds permissions per group name.
	Endpoints map[string]api.Permissions
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           50051,
		MaxConnections: 1000,
		RequestTimeout: 30 * time.Second,
		MetricsPort:    9100,
	}
}

// DefaultStorageConfig is a single in-memory store named "memory".
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Default: "memory",
		Stores: map[string]storage.StoreConfig{
			"memory": {Connector: memstore.ConnectorName},
		},
	}
}

// groupConfig is one entry of the groups list.
type groupConfig struct {
	group.Spec `mapstructure:",squash"`
	Endpoint   endpointConfig `mapstructure:"endpoint"`
}

// endpointConfig mirrors api.Permissions with optional flags so unset keys
// keep their defaults.
type endpointConfig struct {
	CanPull      *bool    `mapstructure:"can_pull"`
	CanPush      *bool    `mapstructure:"can_push"`
	CanUpdate    *bool    `mapstructure:"can_update"`
	CanDelete    *bool    `mapstructure:"can_delete"`
	CountTotals  *bool    `mapstructure:"count_totals"`
	PullFields   []string `mapstructure:"pull_fields"`
	PushFields   []string `mapstructure:"push_fields"`
	UpdateFields []string `mapstructure:"update_fields"`
	SearchFields []string `mapstructure:"search_fields"`
}

func (e endpointConfig) permissions() api.Permissions {
	p := api.DefaultPermissions()
	for _, flag := range []struct {
		set *bool
		dst *bool
	}{
		{e.CanPull, &p.CanPull},
		{e.CanPush, &p.CanPush},
		{e.CanUpdate, &p.CanUpdate},
		{e.CanDelete, &p.CanDelete},
		{e.CountTotals, &p.CountTotals},
	} {
		if flag.set != nil {
			*flag.dst = *flag.set
		}
	}
	p.PullFields = e.PullFields
	p.PushFields = e.PushFields
	p.UpdateFields = e.UpdateFields
	p.SearchFields = e.SearchFields
	return p
}

// storeAttributes converts one raw store section into a StoreConfig.
// Values are expanded from the environment. Passwords must be environment
// references; literal secrets in config files are rejected.
func storeAttributes(name string, raw map[string]any) (storage.StoreConfig, error) {
	cfg := storage.StoreConfig{Attributes: types.Attributes{}}

	for key, value := range raw {
		s := fmt.Sprint(value)
		if key == "connector" {
			cfg.Connector = s
			continue
		}
		if isSecret(key) && !strings.HasPrefix(strings.TrimSpace(s), "$") {
			return storage.StoreConfig{}, fmt.Errorf("storage %s: %s must reference an environment variable (e.g. ${GS_DB_PASSWORD}), not a literal", name, key)
		}
		cfg.Attributes[key] = os.ExpandEnv(s)
	}

	if cfg.Connector == "" {
		return storage.StoreConfig{}, fmt.Errorf("storage %s: connector is required", name)
	}
	return cfg, nil
}

// apiKeys reads auth.keys. Every key must be an environment reference that
// expands to a non-empty value.
func apiKeys(raw map[string]string) (map[string]string, error) {
	keys := make(map[string]string, len(raw))
	for client, ref := range raw {
		if !strings.HasPrefix(strings.TrimSpace(ref), "$") {
			return nil, fmt.Errorf("auth key %s must reference an environment variable, not a literal", client)
		}
		key := os.ExpandEnv(ref)
		if key == "" {
			return nil, fmt.Errorf("auth key %s: %s is empty", client, ref)
		}
		keys[client] = key
	}
	return keys, nil
}

func isSecret(key string) bool {
	return key == "password" || strings.HasSuffix(key, "_secret")
}
