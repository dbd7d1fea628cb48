package main

import (
	"github.com/spf13/cobra"

	"RegimeLab/internal/di"
	applogger "RegimeLab/pkg/logger"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			l.Info("starting",
				applogger.String("env", cfg.Environment),
				applogger.String("source", cfg.Source.Type),
				applogger.Strings("sinks", cfg.Sink.Types),
				applogger.Bool("queue", cfg.Queue.Enabled))

			app, cleanup, err := di.InitializeApp(cfg)
			if err != nil {
				l.Error("app initialization failed", applogger.Error(err))
				return err
			}
			defer cleanup()

			if err := app.Run(cmd.Context()); err != nil {
				l.Error("app error", applogger.Error(err))
				return err
			}
			return nil
		},
	}
}
