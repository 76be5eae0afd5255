// Command feeder runs one worker of the Feeder pool (spec §4.4): a process
// that repeatedly claims a pending node from the shared graph store, fetches
// it, and commits its children — or retries/gives up on failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bluedotiya/web-crawler/internal/config"
	"github.com/bluedotiya/web-crawler/internal/feeder"
	"github.com/bluedotiya/web-crawler/internal/lease"
	"github.com/bluedotiya/web-crawler/internal/store/mongo"
)

const version = "0.2.0"

// exit codes per spec §6: 0 on a completed tick (including terminal and
// retry outcomes), 2 when no work was available, 1 on any caller-surfaced
// error.
const (
	exitOK      = 0
	exitFailure = 1
	exitNoWork  = 2
)

// runOptions collects the run subcommand's flags.
type runOptions struct {
	loop         bool
	interval     time.Duration
	reapOnly     bool
	reapInterval time.Duration
}

func main() {
	root := &cobra.Command{
		Use:     "feeder",
		Short:   "run one Feeder worker",
		Version: version,
	}

	var configPath string
	var opts runOptions

	run := &cobra.Command{
		Use:   "run",
		Short: "claim and process pending nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			code, err := runFeeder(cmd.Context(), cfg, opts)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			os.Exit(code)
			return nil
		},
	}
	run.Flags().BoolVar(&opts.loop, "loop", false, "keep ticking until the process is signaled to stop")
	run.Flags().DurationVar(&opts.interval, "interval", 0, "pause between ticks when --loop is set (0 = tick back-to-back)")
	run.Flags().BoolVar(&opts.reapOnly, "reap-only", false, "run only the lease reaper, claiming no work (requires a lease coordinator)")
	run.Flags().DurationVar(&opts.reapInterval, "reap-interval", lease.DefaultTTL/2, "pause between reaper passes")

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.AddCommand(run)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

// runFeeder constructs the Feeder and runs either the reaper alone, a single
// tick, or a loop of ticks (with a background reaper alongside, when a
// lease coordinator is configured), returning the process exit code.
func runFeeder(ctx context.Context, cfg config.Config, opts runOptions) (int, error) {
	log := charmlog.Default()

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	graph, err := mongo.Open(connCtx, mongo.Config{
		Host:     cfg.StoreHost,
		User:     cfg.StoreUser,
		Password: cfg.StorePassword,
		Database: cfg.StoreDatabase,
	})
	cancel()
	if err != nil {
		return exitFailure, fmt.Errorf("connect to graph store: %w", err)
	}
	defer graph.Close(context.Background())

	coordinator := lease.New(cfg.LeaseRedisAddr, lease.DefaultTTL)
	defer coordinator.Close()

	workerID := uuid.NewString()
	f := feeder.New(graph, coordinator, workerID)
	f.Logger = log.With("worker", workerID)

	if cfg.UserAgent != "" {
		f.Fetcher.UserAgent = cfg.UserAgent
	}

	if opts.reapOnly {
		if coordinator == nil {
			return exitFailure, fmt.Errorf("--reap-only requires a lease coordinator (set LEASE_REDIS_ADDR or lease_redis_addr)")
		}
		f.ReapLoop(ctx, opts.reapInterval)
		return exitOK, nil
	}

	if coordinator != nil {
		go f.ReapLoop(ctx, opts.reapInterval)
	}

	if !opts.loop {
		outcome, err := f.Tick(ctx)
		return codeFor(outcome, err, log)
	}

	var code int
	for {
		outcome, err := f.Tick(ctx)
		code, err = codeFor(outcome, err, log)
		if err != nil && !errors.Is(err, context.Canceled) {
			return code, err
		}
		if ctx.Err() != nil {
			return code, nil
		}
		if opts.interval > 0 {
			select {
			case <-ctx.Done():
				return exitOK, nil
			case <-time.After(opts.interval):
			}
		}
	}
}

func codeFor(outcome feeder.Outcome, err error, log *charmlog.Logger) (int, error) {
	if err != nil {
		return exitFailure, err
	}
	log.Info("tick complete", "outcome", outcome)
	if outcome == feeder.OutcomeNoWork {
		return exitNoWork, nil
	}
	if outcome == feeder.OutcomeFailed {
		return exitOK, nil
	}
	return exitOK, nil
}
