package charter

import (
	"log/slog"
	"time"

	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock overrides the time source used to stamp verification.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPlugin registers a plugin with the engine. The registry is built
// once every option has run, so it logs through the final logger
// regardless of option order.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) { e.pending = append(e.pending, x) }
}
