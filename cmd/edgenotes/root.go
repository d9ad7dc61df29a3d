package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitalvas/edgenotes/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "edgenotes",
		Short:         "Edge Notes server",
		Long:          "Edge Notes stores short notes and runs AI text operations over them behind a small HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newRoutesCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

// loadConfig reads and validates the configuration named by --config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (o *rootOptions) newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if o.debug {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
