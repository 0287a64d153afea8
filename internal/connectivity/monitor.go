// Package connectivity tracks whether the sink is reachable and notifies
// subscribers on online/offline transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/metrics"
)

// Prober checks network reachability once.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Handler is called on a state transition.
type Handler func(ctx context.Context)

// Monitor holds the current online state. Handlers fire only when the
// state actually changes.
type Monitor struct {
	prober   Prober
	interval time.Duration
	metrics  *metrics.Metrics

	mu        sync.Mutex
	online    bool
	onOnline  []Handler
	onOffline []Handler
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval used by Run.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMetrics records the online state on mm.
func WithMetrics(mm *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mm
	}
}

// NewMonitor creates a monitor with the given initial state. prober may be
// nil, in which case the state only changes through Set.
func NewMonitor(prober Prober, initiallyOnline bool, opts ...Option) *Monitor {
	m := &Monitor{
		prober:   prober,
		interval: 15 * time.Second,
		online:   initiallyOnline,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics.SetOnline(initiallyOnline)
	return m
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnOnline registers h to run on every offline → online transition.
func (m *Monitor) OnOnline(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, h)
}

// OnOffline registers h to run on every online → offline transition.
func (m *Monitor) OnOffline(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, h)
}

// Set records a new state and runs the matching handlers synchronously if
// it differs from the previous one. It reports whether a transition fired.
func (m *Monitor) Set(ctx context.Context, online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	var hs []Handler
	if online {
		hs = append(hs, m.onOnline...)
	} else {
		hs = append(hs, m.onOffline...)
	}
	m.mu.Unlock()

	m.metrics.SetOnline(online)
	log := zap.L().With(zap.String("component", "connectivity"))
	if online {
		log.Info("back online")
	} else {
		log.Warn("offline: leads will be queued until the connection returns")
	}

	for _, h := range hs {
		h(ctx)
	}
	return true
}

// Check probes once and applies the result. Without a prober it returns
// the current state unchanged.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}
	online := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		return m.Online()
	}
	m.Set(ctx, online)
	return online
}

// Run probes on every interval tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "connectivity"))
	log.Info("starting connectivity monitor", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("connectivity monitor stopped")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
