package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/roach88/renewal/internal/engine"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	Cron   string
	DryRun bool

	// Now is the reference instant for --dry-run (for testing).
	// If nil, defaults to time.Now.
	Now func() time.Time
}

// cronParser accepts five or six fields and descriptors such as @daily.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run renewal triggers on a cron schedule",
		Long: `Keep running and evaluate renewal triggers on a cron schedule until
interrupted. A tick that fires while the previous run is still going is
skipped.

Only one scheduler should run per database.

Example:
  renewal schedule --config renewal.yaml
  renewal schedule --db ./renewal.db --tenant 1 --cron "0 2 * * *"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cron, "cron", "", "cron expression (overrides config schedule)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the next activation times and exit")

	return cmd
}

func runSchedule(opts *ScheduleOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Cron != "" {
		cfg.Schedule = opts.Cron
	}
	if cfg.Schedule == "" {
		return NewExitError(ExitCommandError, "schedule is required (--cron or config schedule)")
	}
	if _, err := cronParser.Parse(cfg.Schedule); err != nil {
		return WrapExitError(ExitCommandError, "invalid cron expression", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid timezone", err)
	}
	if opts.DryRun {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		next, err := nextRuns(cfg.Schedule, loc, now(), 5)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid cron expression", err)
		}
		return opts.formatter(cmd).Success(next, func(w io.Writer) {
			fmt.Fprintf(w, "Next runs of %q (%s):\n", cfg.Schedule, loc)
			for _, t := range next {
				fmt.Fprintf(w, "  %s\n", t.Format(time.RFC3339))
			}
		})
	}
	if err := requireTenant(cfg); err != nil {
		return err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	eng, err := newEngine(cfg, st, logger, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if _, err := c.AddFunc(cfg.Schedule, func() {
		if _, err := runWithTimeout(ctx, eng, cfg, nil); err != nil {
			logger.Error("scheduled run failed", "tenant_id", cfg.Tenant, "code", engine.CodeOf(err), "error", err)
		}
	}); err != nil {
		return WrapExitError(ExitCommandError, "invalid cron expression", err)
	}

	logger.Info("scheduler started", "schedule", cfg.Schedule, "timezone", loc.String(), "tenant_id", cfg.Tenant)
	c.Start()
	<-ctx.Done()

	// Stop returns a context done once running jobs have finished.
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = cronLogger{}

// nextRuns returns the next n activation times of expr, for display.
func nextRuns(expr string, loc *time.Location, from time.Time, n int) ([]time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	t := from.In(loc)
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		out = append(out, t)
	}
	return out, nil
}
