// Package main runs a typebus load generator.
//
// It builds a bus from configuration, registers a diagnostics recorder and
// a small set of demo listeners, publishes demo events from several
// goroutines and prints the bus statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/typebus/internal/config"
	"github.com/dshills/typebus/internal/event"
	"github.com/dshills/typebus/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath  string
	dispatcher  string
	executor    string
	events      int
	publishers  int
	wait        bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("typebus", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file (.toml, .yaml)")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.dispatcher, "dispatcher", "", "Dispatcher override (queued, immediate)")
	fs.StringVar(&opts.executor, "executor", "", "Executor override (direct, pool)")
	fs.IntVar(&opts.events, "events", 1000, "Number of demo events to publish")
	fs.IntVar(&opts.publishers, "publishers", 4, "Number of publishing goroutines")
	fs.BoolVar(&opts.wait, "wait", false, "Keep running after the load until interrupted")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "typebus - type-routed event bus load generator\n\n")
		fmt.Fprintf(stderr, "Usage: typebus [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  typebus -events 10000 -publishers 8\n")
		fmt.Fprintf(stderr, "  typebus -config typebus.toml -executor pool -wait\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.events < 0 {
		return opts, fmt.Errorf("invalid -events %d (must not be negative)", opts.events)
	}
	if opts.publishers < 1 {
		return opts, fmt.Errorf("invalid -publishers %d (must be at least 1)", opts.publishers)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "typebus %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger, level := logging.New(stderr, cfg.Logging)

	rt, err := newRuntime(cfg, logger, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer rt.close()

	if opts.configPath != "" {
		stopWatch, err := rt.watchConfig(ctx, opts.configPath, level)
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			defer stopWatch()
		}
	}

	loadErr := publishLoad(ctx, rt.bus, opts.events, opts.publishers)
	if loadErr != nil && !errors.Is(loadErr, context.Canceled) {
		logger.Error("publishing failed", "error", loadErr)
	}

	if opts.wait && ctx.Err() == nil {
		logger.Info("load finished, waiting for interrupt")
		<-ctx.Done()
	}

	if err := rt.drain(); err != nil {
		logger.Warn("executor did not drain", "error", err)
	}
	printStats(stdout, rt)

	if loadErr != nil && !errors.Is(loadErr, context.Canceled) {
		return 1
	}
	return 0
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dispatcher != "" {
		cfg.Bus.Dispatcher = opts.dispatcher
	}
	if opts.executor != "" {
		cfg.Bus.Executor = opts.executor
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// publishLoad publishes events demo events split across publishers
// goroutines.
func publishLoad(ctx context.Context, bus *event.Bus, events, publishers int) error {
	g, gctx := errgroup.WithContext(ctx)
	for p := range publishers {
		g.Go(func() error {
			for i := p; i < events; i += publishers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := bus.Publish(gctx, demoEvent(i)); err != nil {
					return fmt.Errorf("publishing event %d: %w", i, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func printStats(w io.Writer, rt *runtime) {
	s := rt.bus.Stats()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "bus\t%s (%s)\n", rt.bus.Identifier(), rt.bus.ID())
	fmt.Fprintf(tw, "published\t%d\n", s.Published)
	fmt.Fprintf(tw, "delivered\t%d\n", s.Delivered)
	fmt.Fprintf(tw, "failures\t%d\n", s.Failures)
	fmt.Fprintf(tw, "suppressed\t%d\n", s.SuppressedFailures)
	fmt.Fprintf(tw, "dead\t%d\n", s.DeadEvents)
	fmt.Fprintf(tw, "receivers\t%d\n", s.Receivers)
	fmt.Fprintf(tw, "orders\t%d reserved, %d shipped\n", rt.inventory.reserved.Load(), rt.shipping.shipped.Load())
	if rt.pool != nil {
		ps := rt.pool.Stats()
		fmt.Fprintf(tw, "pool\t%d executed, %d inline, avg %v\n", ps.Executed, ps.Inline, ps.AvgDuration)
	}
	_ = tw.Flush()
}
