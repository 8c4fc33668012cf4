package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/groupstore/internal/core/api"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/storage"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultServerConfig
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.max_connections", 1000)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.metrics_port", 9100)

	// Bind environment variables with GS_ prefix
	v.SetEnvPrefix("GS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MaxConnections: v.GetInt("server.max_connections"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MetricsPort:    v.GetInt("server.metrics_port"),
		},
		Endpoints: make(map[string]api.Permissions),
	}

	if err := validateConfig(&cfg.Server); err != nil {
		return nil, err
	}

	storageCfg, err := loadStorage(v)
	if err != nil {
		return nil, err
	}
	cfg.Storage = storageCfg

	keys, err := apiKeys(v.GetStringMapString("auth.keys"))
	if err != nil {
		return nil, err
	}
	cfg.Auth.Keys = keys

	if err := loadGroups(v, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, positive values for connections and timeout.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0 and 65535, got %d", cfg.MetricsPort)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	return nil
}

// loadStorage reads storage.stores. Store names are lowercased by viper.
// Without any configured store the in-memory default applies.
func loadStorage(v *viper.Viper) (StorageConfig, error) {
	raw := v.GetStringMap("storage.stores")
	if len(raw) == 0 {
		out := DefaultStorageConfig()
		if name := v.GetString("storage.default"); name != "" && name != out.Default {
			return StorageConfig{}, fmt.Errorf("default storage %q is not configured", name)
		}
		return out, nil
	}

	out := StorageConfig{
		Default: v.GetString("storage.default"),
		Stores:  make(map[string]storage.StoreConfig, len(raw)),
	}
	for name := range raw {
		section := v.GetStringMap("storage.stores." + name)
		store, err := storeAttributes(name, section)
		if err != nil {
			return StorageConfig{}, err
		}
		out.Stores[name] = store
	}

	if out.Default == "" && len(out.Stores) == 1 {
		for name := range out.Stores {
			out.Default = name
		}
	}
	if out.Default != "" {
		if _, ok := out.Stores[out.Default]; !ok {
			return StorageConfig{}, fmt.Errorf("default storage %q is not configured", out.Default)
		}
	}
	return out, nil
}

// loadGroups compiles the groups list. Every invalid group is reported.
func loadGroups(v *viper.Viper, cfg *Config) error {
	var entries []groupConfig
	if err := v.UnmarshalKey("groups", &entries); err != nil {
		return fmt.Errorf("failed to decode groups: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if seen[entry.Name] {
			errs = append(errs, fmt.Errorf("group %s declared twice", entry.Name))
			continue
		}
		seen[entry.Name] = true

		def, err := entry.Spec.Definition()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cfg.Groups = append(cfg.Groups, def)
		cfg.Endpoints[entry.Name] = entry.Endpoint.permissions()
	}
	return errors.Join(errs...)
}

// Registries builds the storage and group registries described by cfg.
// Connector factories are registered by the caller.
func (c *Config) Registries(opts ...storage.RegistryOption) (*storage.Registry, *group.Registry) {
	stores := storage.NewRegistry(c.Storage.Default, c.Storage.Stores, opts...)
	groups := group.NewRegistry(nil, c.Groups...)
	return stores, groups
}
