package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/internal/api"
	"github.com/charlesng35/ftpstore/internal/app/maintenance"
	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/internal/monitoring/checks"
	"github.com/charlesng35/ftpstore/internal/storage"
	"github.com/charlesng35/ftpstore/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the object API with health checks, metrics and keepalive",
		Long: `Open storage.pool_size FTP sessions and serve until SIGINT or SIGTERM:

  /health, /health/live, /health/ready   probes (ready sends NOOP on every session)
  /metrics                               Prometheus metrics
  /api/status                            aggregated storage activity
  /api/objects/<path>                    PUT stores, DELETE removes, GET resolves URLs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(addr) != "" {
				c.cfg.Monitoring.Address = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Override monitoring.address")
	return cmd
}

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Pool      *storage.Pool
	Module    *monitoring.Module
	Keepalive *maintenance.Keepalive
	Router    *gin.Engine
}

// bootstrapRuntime opens the pool, wires monitoring and keepalive, and builds the router.
func (c *cli) bootstrapRuntime(ctx context.Context, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Module, err = monitoring.NewModule(monitoring.Options{RuntimeCollectors: true})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Module)

	sizes, err := c.cfg.Storage.Sizes()
	if err != nil {
		return nil, err
	}

	stack.Pool, err = c.openPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("open storage pool: %w", err)
	}
	log.Info("storage pool ready",
		zap.String("addr", c.cfg.Storage.FTP.Remote().Address()),
		zap.Int("sessions", stack.Pool.Size()),
	)

	health := stack.Module.Health()
	health.SetCheckTimeout(c.cfg.Monitoring.CheckTimeout)
	health.RegisterLiveness(checks.Process())
	health.RegisterReadiness(checks.Storage(stack.Pool, c.cfg.Monitoring.CheckTimeout))

	if spec := strings.TrimSpace(c.cfg.Monitoring.Keepalive); spec != "" {
		stack.Keepalive = maintenance.NewKeepalive(stack.Pool, maintenance.WithSchedule(spec))
		if err := stack.Keepalive.Start(); err != nil {
			return nil, fmt.Errorf("start keepalive: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Storage:    stack.Pool,
		Monitoring: stack.Module,
		Sizes:      sizes,
		TempDir:    c.cfg.Storage.TempDir,
		PoolSize:   stack.Pool.Size(),
		Root:       c.cfg.Storage.FTP.Root,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops the keepalive job and closes every FTP session.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Keepalive != nil {
		select {
		case <-s.Keepalive.Stop().Done():
		case <-ctx.Done():
			log.Warn("keepalive did not stop in time")
		}
	}

	if s.Pool != nil {
		if err := s.Pool.Close(); err != nil {
			log.Warn("storage pool shutdown", zap.Error(err))
		}
	}
}

func (c *cli) serve(ctx context.Context) error {
	log := logger.WithModule("bootstrap")

	stack, err := c.bootstrapRuntime(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stack.Shutdown(shutdownCtx, log)
	}()

	server := &http.Server{
		Addr:              c.cfg.Monitoring.Address,
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
