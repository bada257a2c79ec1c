package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charlesng35/ftpstore/internal/app"
	"github.com/charlesng35/ftpstore/internal/remote"
	"github.com/charlesng35/ftpstore/internal/storage"
	"github.com/charlesng35/ftpstore/pkg/logger"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg *app.Config
	// dialer replaces the FTP dialer when set.
	dialer remote.Dialer
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "ftpstore",
		Short: "Store uploaded objects and their thumbnails on an FTP server",
		Long: `ftpstore writes objects under a configured root on an FTP server, generates
thumbnail variants next to them, removes them again and resolves their public URLs.

Configuration is read from config.yaml (./config, the working directory or --config)
and FTPSTORE_* environment variables, e.g. FTPSTORE_STORAGE_FTP_HOST.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}
			return c.init()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to configuration directory or file")
	flags.StringVar(&c.logLevel, "log-level", "", "Override log_level from the configuration")

	root.AddCommand(
		newPutCommand(c),
		newRmCommand(c),
		newURLCommand(c),
		newCheckCommand(c),
		newServeCommand(c),
	)
	return root
}

func (c *cli) init() error {
	cfg, err := loadApplicationConfig(c.configPath)
	if err != nil {
		return err
	}
	if level := strings.TrimSpace(c.logLevel); level != "" {
		cfg.LogLevel = level
	}
	if err := app.ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	c.cfg = cfg
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfigFile(path)
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

// storageOptions returns the adapter options implied by the configuration.
func (c *cli) storageOptions() ([]storage.Option, error) {
	opts, err := c.cfg.Storage.Options()
	if err != nil {
		return nil, err
	}
	if c.dialer != nil {
		opts = append(opts, storage.WithDialer(c.dialer))
	}
	return opts, nil
}

// openStorage connects a single adapter for one-shot commands.
func (c *cli) openStorage(ctx context.Context) (*storage.FTPStorage, error) {
	opts, err := c.storageOptions()
	if err != nil {
		return nil, err
	}
	return storage.NewFTPStorage(ctx, c.cfg.Storage.Backend(), opts...)
}

// openPool connects storage.pool_size adapters for the server.
func (c *cli) openPool(ctx context.Context) (*storage.Pool, error) {
	opts, err := c.storageOptions()
	if err != nil {
		return nil, err
	}
	return storage.NewPool(ctx, c.cfg.Storage.Backend(), c.cfg.Storage.PoolSize, opts...)
}
