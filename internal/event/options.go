package event

import (
	"log/slog"

	"github.com/dshills/typebus/internal/event/dispatch"
	"github.com/dshills/typebus/internal/event/hierarchy"
	"github.com/dshills/typebus/internal/event/memo"
)

// DefaultIdentifier is the identifier of buses created without one.
const DefaultIdentifier = "default"

// Option configures a Bus.
type Option func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	identifier     string
	dispatcher     dispatch.Dispatcher
	executor       dispatch.Executor
	methodCache    memo.Cache[[]Method]
	hierarchyCache memo.Cache[hierarchy.Ancestry]
	receiverPrefix string
	logger         *slog.Logger
}

// defaultBusConfig returns the default configuration: breadth-first
// dispatch on the publishing goroutine.
func defaultBusConfig() busConfig {
	return busConfig{
		identifier:     DefaultIdentifier,
		receiverPrefix: DefaultReceiverPrefix,
	}
}

// WithIdentifier sets the bus identifier used in logs and diagnostics.
func WithIdentifier(id string) Option {
	return func(c *busConfig) {
		if id != "" {
			c.identifier = id
		}
	}
}

// WithDispatcher sets the ordering strategy.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(c *busConfig) {
		if d != nil {
			c.dispatcher = d
		}
	}
}

// WithExecutor sets the executor that runs receiver bodies.
func WithExecutor(e dispatch.Executor) Option {
	return func(c *busConfig) {
		if e != nil {
			c.executor = e
		}
	}
}

// WithMethodCache sets the cache of receiver methods per listener type.
// A cache shared between buses must only be shared between buses with the
// same receiver prefix.
func WithMethodCache(cache memo.Cache[[]Method]) Option {
	return func(c *busConfig) {
		if cache != nil {
			c.methodCache = cache
		}
	}
}

// WithHierarchyCache sets the cache of structural type ancestries. Entries
// depend only on the type, so the cache may be shared between buses; each
// bus applies its own known interfaces on top of them.
func WithHierarchyCache(cache memo.Cache[hierarchy.Ancestry]) Option {
	return func(c *busConfig) {
		if cache != nil {
			c.hierarchyCache = cache
		}
	}
}

// WithReceiverPrefix sets the method name prefix that marks receivers.
func WithReceiverPrefix(prefix string) Option {
	return func(c *busConfig) {
		if prefix != "" {
			c.receiverPrefix = prefix
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
