package ring

import (
	"fmt"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xevent"
	"github.com/trickstertwo/xlog"
)

// New builds a Dispatcher whose cross-goroutine entry point is a ring of
// cfg.Capacity slots.
//
// Example:
//
//	d, err := ring.New(ring.Config{Capacity: 8192},
//	    ring.WithLogger(logger),
//	    ring.WithObserver(observer),
//	)
func New(cfg Config, opts ...Option) (*xevent.Dispatcher, error) {
	in, err := xevent.NewIngester(IngesterName, cfg.toMap())
	if err != nil {
		return nil, err
	}
	db := xevent.NewDispatcherBuilder().
		WithIngesterName(IngesterName).
		WithIngester(in)

	for _, o := range opts {
		if o != nil {
			o(db)
		}
	}

	d, err := db.Build()
	if err != nil {
		return nil, fmt.Errorf("ring.New: %w", err)
	}
	return d, nil
}

// Option configures the xevent.Dispatcher when calling New.
type Option func(*xevent.DispatcherBuilder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xevent.DispatcherBuilder) { b.WithLogger(l) }
}

// WithClock injects a custom clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xevent.DispatcherBuilder) { b.WithClock(c) }
}

// WithTypeRegistry shares an event type registry.
func WithTypeRegistry(r *xevent.TypeRegistry) Option {
	return func(b *xevent.DispatcherBuilder) { b.WithTypeRegistry(r) }
}

// WithMiddleware adds listener middlewares.
func WithMiddleware(mw ...xevent.Middleware) Option {
	return func(b *xevent.DispatcherBuilder) { b.WithMiddleware(mw...) }
}

// WithObserver attaches observers for dispatcher activity.
func WithObserver(obs ...xevent.Observer) Option {
	return func(b *xevent.DispatcherBuilder) { b.WithObserver(obs...) }
}

// WithObserverPool configures async observer delivery.
func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xevent.DispatcherBuilder) { b.WithObserverPool(workers, bufferSize) }
}

// WithSlowListener warns about listeners running at least d.
func WithSlowListener(d time.Duration) Option {
	return func(b *xevent.DispatcherBuilder) { b.WithSlowListener(d) }
}
