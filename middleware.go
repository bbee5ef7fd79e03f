package xevent

import (
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Middleware composes concerns around a Listener.
type Middleware func(next Listener) Listener

// Chain composes middlewares around l in order: the first middleware is the outermost.
func Chain(l Listener, mws ...Middleware) Listener {
	wrapped := l
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// TimingMiddleware logs a warning whenever a listener runs for at least threshold.
func TimingMiddleware(clock xclock.Clock, threshold time.Duration, logger *xlog.Logger) Middleware {
	if threshold <= 0 || logger == nil {
		return func(next Listener) Listener { return next }
	}
	return func(next Listener) Listener {
		return ListenerFunc(func(e Event) {
			start := clock.Now()
			next.HandleEvent(e)
			if d := clock.Since(start); d >= threshold {
				logger.With(
					xlog.Str("event_type", e.Type().String()),
					xlog.Str("event_name", e.Name()),
					xlog.Dur("duration", d),
				).Warn().Msg("xevent: slow listener")
			}
		})
	}
}

// RecoverMiddleware converts a listener panic into a call to onPanic.
// The dispatcher never installs it on its own: a subscriber opts in for its
// own listener when it prefers to contain its faults.
func RecoverMiddleware(onPanic func(e Event, r any)) Middleware {
	return func(next Listener) Listener {
		return ListenerFunc(func(e Event) {
			defer func() {
				if r := recover(); r != nil && onPanic != nil {
					onPanic(e, r)
				}
			}()
			next.HandleEvent(e)
		})
	}
}
