// Package switches keeps a live view of a provisioned panel and exposes
// its user-controllable circuits as switch entities.
//
// A Coordinator polls the panel on a fixed cadence and caches the last
// good snapshot; every CircuitSwitch reads from that cache and never
// talks to the panel directly except to drive its relay. When the panel
// stops answering, polling drops to an exponential retry backoff until
// the panel recovers.
package switches

import (
	"context"
	"sync"
	"time"

	"github.com/spanpanel/span-go/pkg/log"
	"github.com/spanpanel/span-go/pkg/options"
	"github.com/spanpanel/span-go/pkg/panel"
)

// Snapshot is one consistent view of the panel state.
type Snapshot struct {
	// Status is the panel identity and door state.
	Status *panel.Status

	// Circuits holds all circuits keyed by circuit ID.
	Circuits map[string]panel.Circuit

	// Panel is the grid/relay snapshot.
	Panel *panel.PanelData

	// Battery is the storage state of energy. Nil unless battery
	// fetching is enabled.
	Battery *panel.BatteryStorage

	// UpdatedAt is when this snapshot was fetched. Zero until the first
	// successful poll.
	UpdatedAt time.Time
}

// Config configures a Coordinator.
type Config struct {
	// Interval between polls. Defaults to the default scan interval.
	Interval time.Duration

	// FetchBattery includes the battery state of energy in each poll.
	FetchBattery bool

	// Backoff overrides the retry backoff settings.
	Backoff BackoffConfig

	// Logger receives coordinator state change events. Optional.
	Logger log.Logger

	// SerialNumber tags emitted events. Optional; the snapshot serial is
	// used once known.
	SerialNumber string
}

// Coordinator polls a panel and caches the last good snapshot.
type Coordinator struct {
	api          panel.API
	interval     time.Duration
	fetchBattery bool
	backoff      *Backoff
	logger       log.Logger
	serial       string

	mu        sync.RWMutex
	snapshot  Snapshot
	lastErr   error
	healthy   bool
	listeners []func(Snapshot)

	refreshCh chan struct{}
}

// NewCoordinator creates a coordinator over the given panel client.
func NewCoordinator(api panel.API, cfg Config) *Coordinator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Duration(options.DefaultScanInterval) * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff.Jitter = JitterFactor
	}

	return &Coordinator{
		api:          api,
		interval:     interval,
		fetchBattery: cfg.FetchBattery,
		backoff:      NewBackoffWithConfig(cfg.Backoff),
		logger:       logger,
		serial:       cfg.SerialNumber,
		refreshCh:    make(chan struct{}, 1),
	}
}

// Interval returns the configured poll interval.
func (c *Coordinator) Interval() time.Duration { return c.interval }

// Snapshot returns the last good snapshot. UpdatedAt is zero when no
// poll has succeeded yet.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Healthy reports whether the most recent poll succeeded.
func (c *Coordinator) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// LastError returns the error of the most recent failed poll, or nil.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// OnUpdate registers a listener called after every successful poll.
// Listeners run on the polling goroutine and must not block.
func (c *Coordinator) OnUpdate(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RequestRefresh nudges the run loop to poll now instead of waiting out
// the current interval. Non-blocking; a pending nudge absorbs new ones.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Refresh polls once synchronously. It updates the snapshot exactly as a
// scheduled poll would.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.poll(ctx)
}

// Run polls until the context is cancelled. Failures switch the cadence
// to the retry backoff; the first success restores the regular interval.
func (c *Coordinator) Run(ctx context.Context) error {
	// First poll immediately so consumers see data without waiting out
	// an interval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-c.refreshCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		delay := c.interval
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay = c.backoff.Next()
		} else {
			c.backoff.Reset()
		}
		timer.Reset(delay)
	}
}

// poll fetches one snapshot. All fetches must succeed for the snapshot
// to be swapped in; a partial view is never published.
func (c *Coordinator) poll(ctx context.Context) error {
	status, err := c.api.StatusData(ctx)
	if err != nil {
		c.recordFailure(err)
		return err
	}
	circuits, err := c.api.Circuits(ctx)
	if err != nil {
		c.recordFailure(err)
		return err
	}
	panelData, err := c.api.PanelData(ctx)
	if err != nil {
		c.recordFailure(err)
		return err
	}

	var battery *panel.BatteryStorage
	if c.fetchBattery {
		battery, err = c.api.BatteryStorage(ctx)
		if err != nil {
			c.recordFailure(err)
			return err
		}
	}

	snap := Snapshot{
		Status:    status,
		Circuits:  circuits,
		Panel:     panelData,
		Battery:   battery,
		UpdatedAt: time.Now(),
	}

	c.mu.Lock()
	wasHealthy := c.healthy
	neverFailed := c.lastErr == nil
	c.snapshot = snap
	c.lastErr = nil
	c.healthy = true
	if c.serial == "" {
		c.serial = status.SerialNumber
	}
	listeners := append([]func(Snapshot){}, c.listeners...)
	c.mu.Unlock()

	if !wasHealthy {
		old := "degraded"
		if neverFailed {
			old = "starting"
		}
		c.logTransition(old, "polling", "poll succeeded")
	}

	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	wasHealthy := c.healthy
	firstFailure := c.lastErr == nil
	c.lastErr = err
	c.healthy = false
	c.mu.Unlock()

	// Log the flip, not every failed retry
	switch {
	case wasHealthy:
		c.logTransition("polling", "degraded", err.Error())
	case firstFailure:
		c.logTransition("starting", "degraded", err.Error())
	}
}

// logTransition emits a coordinator health transition event.
func (c *Coordinator) logTransition(oldState, newState, reason string) {
	c.mu.RLock()
	serial := c.serial
	c.mu.RUnlock()

	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		Category:     log.CategoryState,
		SerialNumber: serial,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityCoordinator,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
