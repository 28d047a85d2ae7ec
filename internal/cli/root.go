package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaken/genpost-sub001/internal/app/storage"
	"github.com/numaken/genpost-sub001/internal/config"
	"github.com/numaken/genpost-sub001/internal/infra/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// runtime is what every subcommand needs: loaded config, a logger and open
// stores. Close releases the stores and flushes the logger.
type runtime struct {
	cfg    config.Config
	log    *zap.Logger
	stores *storage.Stores
}

func (r *runtime) Close() {
	if r.stores != nil {
		if err := r.stores.Close(); err != nil {
			r.log.Warn("close store", zap.Error(err))
		}
	}
	_ = r.log.Sync()
}

func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "genpostctl",
		Short:         "Administrative tasks for the GenPost purchase store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("APP_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfig, "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level from the config")

	cmd.AddCommand(reconcileCmd(opts))
	cmd.AddCommand(migrateCmd(opts))
	cmd.AddCommand(cleanupIntentsCmd(opts))

	return cmd
}

func (o *rootOptions) open(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	log, err := logger.New(level, "genpostctl")
	if err != nil {
		return nil, err
	}

	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	return &runtime{cfg: cfg, log: log, stores: stores}, nil
}
