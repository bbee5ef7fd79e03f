package xevent

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Unlimited disables the Update time budget. Update treats any non-positive
// budget the same way; Run reserves 0 for "use Config.TickBudget".
const Unlimited time.Duration = -1

// Config controls dispatcher behavior.
type Config struct {
	// TickBudget is the Update budget used by Run (default: 20ms, 0 or Unlimited = no limit).
	TickBudget time.Duration `env:"XEVENT_TICK_BUDGET" envDefault:"20ms"`
	// TickInterval is the period between Run ticks (default: 16ms).
	TickInterval time.Duration `env:"XEVENT_TICK_INTERVAL" envDefault:"16ms"`
	// Ingester names the cross-goroutine ingest strategy (default: "mutex").
	Ingester string `env:"XEVENT_INGESTER" envDefault:"mutex"`
	// IngestLimit bounds the ingest queue; pushes beyond it fail with ErrIngestFull (0 = unbounded).
	IngestLimit int `env:"XEVENT_INGEST_LIMIT" envDefault:"0"`
	// FloodWarnThreshold is the ingest backlog that marks the dispatcher degraded (default: 4096).
	FloodWarnThreshold int `env:"XEVENT_FLOOD_WARN_THRESHOLD" envDefault:"4096"`
	// ObserverWorkers is the number of observer goroutines (0 = observers run inline).
	ObserverWorkers int `env:"XEVENT_OBSERVER_WORKERS" envDefault:"1"`
	// ObserverBuffer is the observer pool channel capacity.
	ObserverBuffer int `env:"XEVENT_OBSERVER_BUFFER" envDefault:"1024"`
	// SlowListener enables TimingMiddleware on every listener when > 0.
	SlowListener time.Duration `env:"XEVENT_SLOW_LISTENER" envDefault:"0"`
}

// Defaults returns the default Config.
func Defaults() Config {
	return Config{
		TickBudget:         20 * time.Millisecond,
		TickInterval:       16 * time.Millisecond,
		Ingester:           MutexIngesterName,
		FloodWarnThreshold: 4096,
		ObserverWorkers:    1,
		ObserverBuffer:     1024,
	}
}

// Validate checks Config for consistency.
func (c Config) Validate() error {
	if c.TickBudget < 0 && c.TickBudget != Unlimited {
		return fmt.Errorf("config: tick_budget must be >= 0 or Unlimited, got %v", c.TickBudget)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick_interval must be > 0, got %v", c.TickInterval)
	}
	if c.Ingester == "" {
		return fmt.Errorf("config: ingester required")
	}
	if c.IngestLimit < 0 {
		return fmt.Errorf("config: ingest_limit must be >= 0, got %d", c.IngestLimit)
	}
	if c.ObserverWorkers < 0 {
		return fmt.Errorf("config: observer_workers must be >= 0, got %d", c.ObserverWorkers)
	}
	if c.ObserverWorkers > 0 && c.ObserverBuffer < 1 {
		return fmt.Errorf("config: observer_buffer must be >= 1, got %d", c.ObserverBuffer)
	}
	return nil
}

// ConfigFromEnv loads Config from XEVENT_* environment variables.
func ConfigFromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, c.Validate()
}

// ConfigFromMap converts a generic map to Config, starting from Defaults.
func ConfigFromMap(m map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := m[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}
	getDur := func(k string, d time.Duration) time.Duration {
		switch v := m[k].(type) {
		case time.Duration:
			return v
		case string:
			if p, err := time.ParseDuration(v); err == nil {
				return p
			}
		case float64:
			return time.Duration(v)
		}
		return d
	}

	c := Defaults()
	c.TickBudget = getDur("tick_budget", c.TickBudget)
	c.TickInterval = getDur("tick_interval", c.TickInterval)
	if v, ok := m["ingester"].(string); ok && v != "" {
		c.Ingester = v
	}
	c.IngestLimit = getInt("ingest_limit", c.IngestLimit)
	c.FloodWarnThreshold = getInt("flood_warn_threshold", c.FloodWarnThreshold)
	c.ObserverWorkers = getInt("observer_workers", c.ObserverWorkers)
	c.ObserverBuffer = getInt("observer_buffer", c.ObserverBuffer)
	c.SlowListener = getDur("slow_listener", c.SlowListener)
	return c
}

// ToMap converts Config to the generic map form accepted by ConfigFromMap.
func (c Config) ToMap() map[string]any {
	return map[string]any{
		"tick_budget":          c.TickBudget,
		"tick_interval":        c.TickInterval,
		"ingester":             c.Ingester,
		"ingest_limit":         c.IngestLimit,
		"flood_warn_threshold": c.FloodWarnThreshold,
		"observer_workers":     c.ObserverWorkers,
		"observer_buffer":      c.ObserverBuffer,
		"slow_listener":        c.SlowListener,
	}
}

// ingesterConfig is the map handed to the ingester factory.
func (c Config) ingesterConfig() map[string]any {
	return map[string]any{"limit": c.IngestLimit}
}
