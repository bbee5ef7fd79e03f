package xevent

import (
	"fmt"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DispatcherBuilder constructs Dispatcher instances (Builder pattern).
// Every Build returns an independent dispatcher with its own registries and queues.
type DispatcherBuilder struct {
	cfg          Config
	ingesterInst Ingester
	types        *TypeRegistry
	middlewares  []Middleware
	observers    []Observer
	logger       *xlog.Logger
	clock        xclock.Clock
}

// NewDispatcherBuilder returns a new builder seeded with Defaults.
func NewDispatcherBuilder() *DispatcherBuilder {
	return &DispatcherBuilder{cfg: Defaults()}
}

// WithConfig replaces the whole configuration.
func (db *DispatcherBuilder) WithConfig(cfg Config) *DispatcherBuilder {
	db.cfg = cfg
	return db
}

// WithIngesterName selects a registered ingest strategy by name.
func (db *DispatcherBuilder) WithIngesterName(name string) *DispatcherBuilder {
	db.cfg.Ingester = name
	return db
}

// WithIngester accepts a ready Ingester instance (e.g. from an adapter).
func (db *DispatcherBuilder) WithIngester(in Ingester) *DispatcherBuilder {
	db.ingesterInst = in
	return db
}

// WithIngestLimit bounds the default ingester.
func (db *DispatcherBuilder) WithIngestLimit(n int) *DispatcherBuilder {
	db.cfg.IngestLimit = n
	return db
}

// WithTypeRegistry shares an existing TypeRegistry instead of creating one.
func (db *DispatcherBuilder) WithTypeRegistry(r *TypeRegistry) *DispatcherBuilder {
	db.types = r
	return db
}

// WithSlowListener installs TimingMiddleware with threshold d on every listener.
func (db *DispatcherBuilder) WithSlowListener(d time.Duration) *DispatcherBuilder {
	db.cfg.SlowListener = d
	return db
}

func (db *DispatcherBuilder) WithMiddleware(mw ...Middleware) *DispatcherBuilder {
	db.middlewares = append(db.middlewares, mw...)
	return db
}

func (db *DispatcherBuilder) WithObserver(obs ...Observer) *DispatcherBuilder {
	for _, o := range obs {
		if o != nil {
			db.observers = append(db.observers, o)
		}
	}
	return db
}

// WithObserverPool configures asynchronous observer delivery; workers 0 runs observers inline.
func (db *DispatcherBuilder) WithObserverPool(workers, bufferSize int) *DispatcherBuilder {
	db.cfg.ObserverWorkers = workers
	db.cfg.ObserverBuffer = bufferSize
	return db
}

func (db *DispatcherBuilder) WithLogger(l *xlog.Logger) *DispatcherBuilder {
	db.logger = l
	return db
}

func (db *DispatcherBuilder) WithClock(c xclock.Clock) *DispatcherBuilder {
	db.clock = c
	return db
}

func (db *DispatcherBuilder) Build() (*Dispatcher, error) {
	if err := db.cfg.Validate(); err != nil {
		return nil, err
	}

	in := db.ingesterInst
	if in == nil {
		var err error
		in, err = NewIngester(db.cfg.Ingester, db.cfg.ingesterConfig())
		if err != nil {
			return nil, fmt.Errorf("xevent: build ingester: %w", err)
		}
		if in == nil {
			return nil, ErrNoIngester
		}
	}

	clk := db.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := db.logger
	if lg == nil {
		lg = xlog.Default()
	}
	types := db.types
	if types == nil {
		types = NewTypeRegistry()
	}

	mws := append([]Middleware(nil), db.middlewares...)
	if db.cfg.SlowListener > 0 {
		mws = append(mws, TimingMiddleware(clk, db.cfg.SlowListener, lg))
	}

	d := &Dispatcher{
		cfg:         db.cfg,
		clock:       clk,
		logger:      lg,
		types:       types,
		middlewares: mws,
		listeners:   newListenerRegistry(),
		ingest:      in,
		metrics:     &dispatcherMetrics{},
	}
	if db.cfg.ObserverWorkers > 0 {
		d.observerPool = NewObserverPool(db.cfg.ObserverWorkers, db.cfg.ObserverBuffer)
	}

	// Attach the logging observer unless one was supplied.
	hasLoggingObserver := false
	for _, o := range db.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		d.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range db.observers {
		d.AddObserver(o)
	}

	return d, nil
}

// New constructs a Dispatcher via Builder and returns a close func for convenience.
func New(init func(b *DispatcherBuilder)) (*Dispatcher, func() error, error) {
	b := NewDispatcherBuilder()
	if init != nil {
		init(b)
	}
	d, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return d, d.Close, nil
}
