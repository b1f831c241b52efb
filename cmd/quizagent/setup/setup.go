// Package setup holds the flags and bootstrapping shared by quizagent commands.
package setup

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/config"
	"github.com/papercomputeco/quizagent/pkg/logger"
)

// Flags are the common command flags.
type Flags struct {
	ConfigPath string
	Debug      bool
}

// Register adds the common flags to cmd.
func (f *Flags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "Enable debug logging")
}

// Load reads the configuration and builds the logger.
func (f *Flags) Load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load config: %w", err)
	}
	return cfg, logger.NewLogger(f.Debug), nil
}

// ResolveDBPath returns path, falling back to the configured transcript database.
func ResolveDBPath(path string, cfg *config.Config) (string, error) {
	if path != "" {
		return path, nil
	}
	if cfg != nil && cfg.Transcript.DBPath != "" {
		return cfg.Transcript.DBPath, nil
	}
	return "", errors.New("no transcript database: pass --db or set transcript.db_path")
}
