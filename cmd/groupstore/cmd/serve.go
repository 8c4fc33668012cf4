package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/groupstore/internal/core/auth"
	"github.com/solatis/groupstore/internal/core/server"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC storage service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := setup(true)
	if err != nil {
		return err
	}
	defer rt.stores.Close()

	cfg := &rt.cfg.Server
	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}

	var authenticator *auth.Authenticator
	if len(rt.cfg.Auth.Keys) > 0 {
		authenticator, err = auth.NewAuthenticator(rt.cfg.Auth.Keys, rt.logger)
		if err != nil {
			return fmt.Errorf("failed to create authenticator: %w", err)
		}
	} else {
		rt.logger.Warn("no API keys configured, serving without authentication")
	}

	grpcServer, err := server.NewGRPCServer(cfg, server.NewHandler(rt.service, rt.logger), authenticator, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var metrics *http.Server
	if cfg.MetricsPort > 0 {
		metrics = server.StartMetrics(fmt.Sprintf("%s:%d", cfg.Host, cfg.MetricsPort), rt.logger)
	}

	rt.logger.Info("starting groupstore",
		"version", Version,
		"host", cfg.Host,
		"port", cfg.Port,
		"groups", rt.service.Groups(),
		"default_storage", rt.stores.DefaultName())
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		rt.logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if metrics != nil {
			_ = metrics.Shutdown(shutdownCtx)
		}
		return grpcServer.Shutdown(shutdownCtx)
	}
}
