package commands

import (
	"fmt"
	"log/slog"
	"time"

	"testudot/internal/components/chrono"
	"testudot/internal/monitor"
	libtelemetry "testudot/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	monitorInterval int
	monitorCron     string
	monitorTerm     string
	monitorNoWatch  bool
)

func init() {
	monitorCmd.Flags().IntVarP(&monitorInterval, "interval", "i", 0, "Minutes between cycles, defaults to the config file or 15.")
	monitorCmd.Flags().StringVar(&monitorCron, "cron", "", "A cron expression (America/New_York) to schedule cycles with instead of an interval.")
	monitorCmd.Flags().StringVar(&monitorTerm, "term", "", "The term to monitor (ex. 202608), defaults to the current term at every cycle.")
	monitorCmd.Flags().BoolVar(&monitorNoWatch, "no-watch", false, "Don't run an extra cycle when the mappings file changes.")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor [-i <minutes>] [--cron <spec>] [--term <id>]",
	Short: "Monitors every tracked course until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		interval := rt.cfg.Interval
		if monitorInterval > 0 {
			interval = time.Duration(monitorInterval) * time.Minute
		}
		spec := rt.cfg.Cron
		if monitorCron != "" {
			spec = monitorCron
		}

		var cron chrono.CronAPI
		if spec != "" {
			err = chrono.ValidateSpec(spec)
			if err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", spec, err)
			}
			cron = chrono.NewStandardCron(rt.tel)
		}

		termFn := func() string {
			term, _ := rt.term("")
			return term
		}
		if monitorTerm != "" {
			fixed, err := rt.term(monitorTerm)
			if err != nil {
				return err
			}
			termFn = func() string { return fixed }
		}

		opts := monitor.DaemonOptions{
			Interval: interval,
			Cron:     spec,
			Term:     termFn,
			OnReport: logReport,
		}
		if !monitorNoWatch {
			opts.Watcher = rt.mappings
		}

		libtelemetry.InstrumentPerfStats(cmd.Context(), 30*time.Second)

		schedule := fmt.Sprintf("every %s", interval)
		if spec != "" {
			schedule = fmt.Sprintf("cron %q", spec)
		}
		slog.Info("starting monitor", "schedule", schedule, "term", termFn(), "store", rt.cfg.Store.Mode)

		daemon := monitor.NewDaemon(rt.monitor, cron, opts, rt.tel)
		return daemon.Run(cmd.Context())
	},
}
