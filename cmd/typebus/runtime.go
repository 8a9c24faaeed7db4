package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dshills/typebus/internal/config"
	"github.com/dshills/typebus/internal/diag"
	"github.com/dshills/typebus/internal/event"
	"github.com/dshills/typebus/internal/event/dispatch"
	"github.com/dshills/typebus/internal/logging"
)

// runtime owns the bus and everything attached to it for one run.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	bus    *event.Bus
	pool   *dispatch.Pool

	recorder  *diag.Recorder
	diagFile  *os.File
	inventory *inventory
	shipping  *shipping
	audit     *audit
}

func newRuntime(cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	opts := []event.Option{
		event.WithIdentifier(cfg.Bus.Identifier),
		event.WithReceiverPrefix(cfg.Bus.ReceiverPrefix),
		event.WithLogger(logging.WithComponent(logger, "bus")),
	}
	switch cfg.Bus.Dispatcher {
	case config.DispatcherImmediate:
		opts = append(opts, event.WithDispatcher(dispatch.Immediate()))
	default:
		opts = append(opts, event.WithDispatcher(dispatch.PerChainQueue()))
	}
	if cfg.Bus.Executor == config.ExecutorPool {
		rt.pool = dispatch.NewPool(
			dispatch.WithWorkerCount(cfg.Bus.Workers),
			dispatch.WithQueueSize(cfg.Bus.QueueSize),
		)
		if err := rt.pool.Start(); err != nil {
			return nil, err
		}
		opts = append(opts, event.WithExecutor(rt.pool))
	}
	rt.bus = event.New(opts...)

	if cfg.Diagnostics.Enabled {
		out := stderr
		if cfg.Diagnostics.Path != "" {
			f, err := os.OpenFile(cfg.Diagnostics.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				rt.close()
				return nil, fmt.Errorf("opening diagnostics file: %w", err)
			}
			rt.diagFile = f
			out = f
		}
		rt.recorder = diag.NewRecorder(out, logger)
	}

	rt.inventory = &inventory{bus: rt.bus}
	rt.shipping = &shipping{}
	rt.audit = &audit{}

	listeners := []any{rt.inventory, rt.shipping, rt.audit}
	if rt.recorder != nil {
		listeners = append(listeners, rt.recorder)
	}
	for _, l := range listeners {
		if err := rt.bus.Register(l); err != nil {
			rt.close()
			return nil, fmt.Errorf("registering %T: %w", l, err)
		}
	}
	if rt.bus.Registry().Len() == 0 {
		logger.Warn("no receivers registered; demo listeners use the On prefix",
			"prefix", cfg.Bus.ReceiverPrefix)
	}
	return rt, nil
}

// watchConfig applies log level changes from the config file until ctx is
// done or the returned stop function is called.
func (rt *runtime) watchConfig(ctx context.Context, path string, level *slog.LevelVar) (func(), error) {
	w, err := config.NewWatcher(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx,
			func(cfg *config.Config) {
				level.Set(logging.ParseLevel(cfg.Logging.Level))
				rt.logger.Info("config reloaded", "level", cfg.Logging.Level)
			},
			func(err error) {
				rt.logger.Warn("config reload failed", "error", err)
			})
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// drain waits for pooled deliveries to finish.
func (rt *runtime) drain() error {
	if rt.pool == nil || !rt.pool.IsRunning() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Bus.StopTimeout)
	defer cancel()
	return rt.pool.Stop(ctx)
}

func (rt *runtime) close() {
	_ = rt.drain()
	if rt.bus != nil {
		rt.bus.Close()
	}
	if rt.diagFile != nil {
		_ = rt.diagFile.Close()
	}
}
