package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/groupstore/internal/core/api"
	"github.com/solatis/groupstore/internal/core/config"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/storage/dynamostore"
	"github.com/solatis/groupstore/internal/storage/memstore"
	"github.com/solatis/groupstore/internal/storage/sqlstore"
)

var (
	configFile string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "groupstore",
	Short:         "Validated record groups over pluggable storage",
	Long:          `groupstore serves named record groups with field rules, uniqueness checks and query-string search over SQL, DynamoDB or in-memory storage.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from --log-level and --log-format.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(logFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", logFormat)
	}
}

// app bundles what every command needs after configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	stores  *storage.Registry
	groups  *group.Registry
	service *api.Service
}

// setup loads configuration and wires registries and the endpoint service.
// Callers close rt.stores.
func setup(instrument bool) (*app, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := []storage.RegistryOption{storage.WithLogger(logger)}
	if instrument {
		opts = append(opts, storage.WithMetrics())
	}
	stores, groups := cfg.Registries(opts...)
	stores.Register(memstore.ConnectorName, memstore.Factory)
	stores.Register(sqlstore.ConnectorName, sqlstore.Factory)
	stores.Register(dynamostore.ConnectorName, dynamostore.Factory)

	svc, err := api.NewService(stores, groups, cfg.Endpoints, logger)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		stores:  stores,
		groups:  groups,
		service: svc,
	}, nil
}
