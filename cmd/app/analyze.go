package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"RegimeLab/internal/di"
	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
	applogger "RegimeLab/pkg/logger"
	xutil "RegimeLab/pkg/util"
)

func analyzeCmd(configPath *string) *cobra.Command {
	var (
		symbols string
		from    string
		to      string
		years   int
		fresh   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the pipeline once per symbol and write the configured sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			syms := xutil.SplitList(symbols)
			if len(syms) == 0 {
				syms = []string{cfg.Analysis.Symbol}
			}
			if years <= 0 {
				years = cfg.Analysis.Years
			}
			start, end, ok := xutil.ResolveRange(from, to, years, time.Now())
			if !ok {
				return fmt.Errorf("invalid range --from %q --to %q", from, to)
			}

			uc, cleanup, err := di.InitializeRunner(cfg)
			if err != nil {
				return fmt.Errorf("init pipeline: %w", err)
			}
			defer cleanup()

			failed := 0
			for _, sym := range syms {
				rep, err := uc.Run(cmd.Context(), domsvc.RunParams{Symbol: sym, From: start, To: end, Fresh: fresh})
				if err != nil {
					failed++
					l.Error("analyze failed", applogger.String("symbol", sym), applogger.Error(err))
					continue
				}
				summarize(l, rep)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(syms))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbols, "symbol", "", "symbol or comma separated symbols (default analysis.symbol)")
	cmd.Flags().StringVar(&from, "from", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "end date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&years, "years", 0, "lookback in years when --from is empty (default analysis.years)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore a cached report")
	return cmd
}

func summarize(l *applogger.Logger, rep *models.Report) {
	fields := []applogger.Field{
		applogger.String("symbol", rep.Symbol),
		applogger.String("run_id", rep.RunID),
		applogger.Int("rows", len(rep.Rows)),
		applogger.Int("regimes", len(rep.Intervals)),
		applogger.Int("signals", rep.Evaluation.TotalSignals),
		applogger.Float64("hit_rate", rep.Evaluation.HitRate),
		applogger.Float64("baseline_rate", rep.Evaluation.BaselineRate),
	}
	if rep.Evaluation.EdgeDefined {
		fields = append(fields, applogger.Float64("edge_ratio", rep.Evaluation.EdgeRatio))
	}
	if c := rep.Current; c != nil {
		fields = append(fields,
			applogger.Float64("score", c.Score),
			applogger.String("level", string(c.Level)),
			applogger.Int("age", c.Age))
	}
	if len(rep.Warnings) > 0 {
		fields = append(fields, applogger.Strings("warnings", rep.Warnings))
	}
	l.Info("analysis complete", fields...)
}
