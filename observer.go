package xevent

import (
	"strconv"

	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(a Activity)

func (f ObserverFunc) OnActivity(a Activity) { f(a) }

// LoggingObserver is an Adapter that emits dispatcher activity via xlog.
// Activity is logged at debug; ingest rejections, which the dispatcher does
// not log on its own, at warn.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnActivity(a Activity) {
	if o.Logger == nil {
		return
	}
	lg := o.Logger.With(
		xlog.Str("kind", string(a.Kind)),
		xlog.Str("event_type", a.EventType.String()),
		xlog.Str("event_name", a.EventName),
	)
	if a.Count > 0 {
		lg = lg.With(xlog.Str("count", strconv.Itoa(a.Count)))
	}
	if a.Duration > 0 {
		lg = lg.With(xlog.Dur("duration", a.Duration))
	}
	if warnsOn(a.Kind) {
		lg.Warn().Err(a.Err).Msg("xevent activity")
		return
	}
	lg.Debug().Msg("xevent activity")
}

// warnsOn reports the kinds LoggingObserver raises to warn. Unhandled and
// flood activity is already logged by the dispatcher itself.
func warnsOn(k ActivityKind) bool {
	return k == ActivityRejected
}
