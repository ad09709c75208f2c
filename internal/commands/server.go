package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grumpyguvner/mailkeys/internal/api"
	"github.com/grumpyguvner/mailkeys/internal/logging"
	"github.com/grumpyguvner/mailkeys/internal/metrics"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func NewServerCommand() *cobra.Command {
	var (
		port        int
		bearerToken string
		backendName string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the key index API server",
		Long:  `Start the HTTP API that stores, lists and removes mail repository keys in the configured backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("token") {
				cfg.BearerToken = bearerToken
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = backendName
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if cfg.BearerToken == "" {
				return fmt.Errorf("bearer token must be configured (set MAILKEYS_BEARER_TOKEN environment variable)")
			}

			logging.InitLogger(cfg.LogMode)
			defer logging.Sync()
			metrics.Init()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			store, closer, err := openBackend(ctx, cfg, logging.Component("backend"))
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			server, err := api.NewServer(cfg, store, logging.Component("api"))
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				select {
				case <-sigChan:
					logging.Get().Info("Shutdown signal received, stopping server...")
					cancel()
				case <-ctx.Done():
				}
			}()

			logging.Get().Infof("Starting key index API on port %d (backend: %s)", cfg.Port, cfg.Backend)
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()

			logging.Get().Infof("Gracefully shutting down server (timeout: %s)...", shutdownTimeout)
			if err := server.Shutdown(shutdownCtx); err != nil {
				if err == context.DeadlineExceeded {
					logging.Get().Errorf("Graceful shutdown timed out after %s, forcing shutdown", shutdownTimeout)
				}
				return fmt.Errorf("shutdown error: %w", err)
			}

			logging.Get().Info("Server stopped gracefully")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3000, "server port")
	cmd.Flags().StringVarP(&bearerToken, "token", "t", "", "API bearer token")
	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "key index backend (cassandra, postgres, pebble, memory)")

	return cmd
}
