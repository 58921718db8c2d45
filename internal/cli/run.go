package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/renewal/internal/config"
	"github.com/roach88/renewal/internal/engine"
	"github.com/roach88/renewal/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Entity   int64
	NoAtomic bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate renewal triggers once",
		Long: `Evaluate every active profile of the tenant once and create renewal
transactions for the profiles that are due.

Example:
  renewal run --db ./renewal.db --tenant 1
  renewal run --config renewal.yaml --entity 42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Entity, "entity", 0, "evaluate a single profile id")
	cmd.Flags().BoolVar(&opts.NoAtomic, "no-atomic", false, "create the transaction and ledger marks in separate writes")

	return cmd
}

func runOnce(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := requireTenant(cfg); err != nil {
		return err
	}
	if opts.NoAtomic {
		off := false
		cfg.AtomicCommit = &off
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	eng, err := newEngine(cfg, st, logger, opts.RunIDs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	var filter *int64
	if cmd.Flags().Changed("entity") {
		filter = &opts.Entity
	}
	res, err := runWithTimeout(ctx, eng, cfg, filter)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	return opts.formatter(cmd).Success(res, func(w io.Writer) {
		printRunResult(w, res)
	})
}

// newEngine wires an engine to the store with the configured options.
func newEngine(cfg config.Config, st *store.Store, logger *slog.Logger, runIDs engine.RunIDGenerator) (*engine.Engine, error) {
	deps := engine.StoreDeps(st)
	deps.Logger = logger
	if runIDs != nil {
		deps.RunIDs = runIDs
	}
	return engine.New(deps,
		engine.WithPageSize(cfg.PageSize),
		engine.WithActor(cfg.Actor),
		engine.WithAtomicCommit(cfg.Atomic()),
	)
}

// runWithTimeout runs the configured tenant once under the run timeout.
func runWithTimeout(ctx context.Context, eng *engine.Engine, cfg config.Config, filter *int64) (engine.RunResult, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return engine.RunResult{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return eng.Run(ctx, cfg.Tenant, filter)
}

// signalContext returns the command context canceled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, func()) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}

func printRunResult(w io.Writer, res engine.RunResult) {
	if res.RunID == "" {
		fmt.Fprintln(w, "Renewal triggers are disabled for this tenant.")
		return
	}
	fmt.Fprintf(w, "Run %s\n", res.RunID)
	fmt.Fprintf(w, "  categories:    %d\n", res.Categories)
	fmt.Fprintf(w, "  scanned:       %d\n", res.Scanned)
	fmt.Fprintf(w, "  triggered:     %d\n", res.Triggered)
	fmt.Fprintf(w, "  failed:        %d\n", res.Failed)
	if res.MarkFailures > 0 {
		fmt.Fprintf(w, "  mark failures: %d\n", res.MarkFailures)
	}
}
