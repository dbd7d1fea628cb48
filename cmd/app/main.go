package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"RegimeLab/pkg/config"
	applogger "RegimeLab/pkg/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "regimelab",
		Short:        "Regime exhaustion research pipeline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	root.AddCommand(analyzeCmd(&configPath), serveCmd(&configPath))
	return root
}

// loadConfig reads the YAML config with environment overrides and builds a
// logger for the command itself.
func loadConfig(path string) (*config.Config, *applogger.Logger, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, nil, err
	}
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}
