package xevent

import (
	"context"
	"time"
)

// Observer receives dispatcher activity. Implementations should be non-blocking.
type Observer interface {
	OnActivity(a Activity)
}

// HealthChecker provides health status for monitoring.
type HealthChecker interface {
	Health() HealthStatus
}

// API is the complete public surface of a Dispatcher.
type API interface {
	AddListener(t EventType, l Listener) (ListenerID, bool)
	RemoveListener(t EventType, id ListenerID) bool
	TriggerEvent(e Event) bool
	QueueEvent(e Event) bool
	ThreadSafeQueueEvent(e Event) error
	AbortEvent(t EventType, all bool) bool
	Update(budget time.Duration) bool
	Run(ctx context.Context, interval, budget time.Duration) error
	Close() error
	Stats() Stats
	Health() HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var (
	_ API           = (*Dispatcher)(nil)
	_ HealthChecker = (*Dispatcher)(nil)
)

// ActivityKind enumerates dispatcher lifecycle notifications for observers.
type ActivityKind string

const (
	ActivityTriggered  ActivityKind = "triggered"
	ActivityQueued     ActivityKind = "queued"
	ActivityIngested   ActivityKind = "ingested"
	ActivityDispatched ActivityKind = "dispatched"
	ActivityAborted    ActivityKind = "aborted"
	ActivityRequeued   ActivityKind = "requeued"
	ActivityUnhandled  ActivityKind = "unhandled"
	ActivityRejected   ActivityKind = "rejected"
	ActivityFlood      ActivityKind = "flood"
	ActivityTick       ActivityKind = "tick"
)

// Activity carries telemetry for observers.
type Activity struct {
	Kind      ActivityKind
	EventType EventType
	EventName string
	Count     int
	Duration  time.Duration
	Err       error

	// attached for async dispatch
	observers []Observer
}

// Stats is a point-in-time view of dispatcher counters.
type Stats struct {
	Triggered      uint64
	Queued         uint64
	Ingested       uint64
	IngestRejected uint64
	Dispatched     uint64
	Aborted        uint64
	Requeued       uint64
	Unhandled      uint64
	Ticks          uint64
	IngestBacklog  int
	PendingLen     int
	ActivityDrops  uint64
	ObserverPanics uint64
	AvgTickMs      float64
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped    uint64
	Processed  uint64
	Panicked   uint64 // observer panics recovered by the pool
	Queued     int
	Workers    int
	BufferSize int
}

// HealthStatus indicates dispatcher health.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Stats     Stats
	Timestamp time.Time
	Message   string
}
