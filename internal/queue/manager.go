// Package queue owns the pending-delivery queue: leads whose last delivery
// attempt failed and that no later attempt has delivered.
package queue

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/leadscan/internal/metrics"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/sink"
)

// Store is the persistence the queue manager needs.
type Store interface {
	LoadQueue(ctx context.Context) ([]model.Lead, error)
	SaveQueue(ctx context.Context, queue []model.Lead) error
	MarkDelivered(ctx context.Context, timestamp string) error
}

// DrainResult summarizes one drain.
type DrainResult struct {
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
	Remaining int  `json:"remaining"`
	Skipped   bool `json:"skipped"`
	// Shared is set when the result came from a drain that more than one
	// caller requested; only one drain ran.
	Shared bool `json:"shared"`
}

// Manager enqueues failed leads and drains them in enqueue order.
type Manager struct {
	store   Store
	sink    sink.Submitter
	net     sink.Reachability
	metrics *metrics.Metrics

	flight singleflight.Group

	mu        sync.Mutex
	pending   int
	observers []func(int)
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records queue depth and drains on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(qm *Manager) {
		qm.metrics = m
	}
}

// NewManager creates a queue manager. net may be nil, meaning always online.
func NewManager(st Store, s sink.Submitter, net sink.Reachability, opts ...Option) *Manager {
	m := &Manager{store: st, sink: s, net: net}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnPendingChange registers fn to receive the pending count after every
// change.
func (m *Manager) OnPendingChange(fn func(pending int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Pending returns the last known queue length.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Refresh reloads the pending count from the store.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.store.LoadQueue(ctx)
	if err != nil {
		return eris.Wrap(err, "queue: refresh")
	}
	m.setPendingLocked(len(q))
	return nil
}

// Snapshot returns the queued leads in enqueue order.
func (m *Manager) Snapshot(ctx context.Context) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.store.LoadQueue(ctx)
	return q, eris.Wrap(err, "queue: snapshot")
}

// Enqueue appends lead to the queue and persists it. A lead whose timestamp
// is already queued is not added again.
func (m *Manager) Enqueue(ctx context.Context, lead model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := m.store.LoadQueue(ctx)
	if err != nil {
		return eris.Wrap(err, "queue: load")
	}
	for _, l := range q {
		if l.Timestamp == lead.Timestamp {
			m.setPendingLocked(len(q))
			return nil
		}
	}
	q = append(q, lead)
	if err := m.store.SaveQueue(ctx, q); err != nil {
		return eris.Wrap(err, "queue: save")
	}
	m.setPendingLocked(len(q))

	zap.L().Info("lead queued for later delivery",
		zap.String("component", "queue"),
		zap.String("timestamp", lead.Timestamp),
		zap.Int("pending", len(q)),
	)
	return nil
}

// Drain re-attempts every queued lead in enqueue order. Delivered leads
// leave the queue and are marked delivered in history; failed leads stay,
// in their original relative order. At most one drain runs at a time: a
// request made while one is running waits for and shares its result.
func (m *Manager) Drain(ctx context.Context) (DrainResult, error) {
	v, err, shared := m.flight.Do("drain", func() (any, error) {
		return m.drain(ctx)
	})
	res, _ := v.(DrainResult)
	res.Shared = shared
	if shared {
		m.metrics.ObserveDrain("shared")
	}
	return res, err
}

func (m *Manager) drain(ctx context.Context) (DrainResult, error) {
	log := zap.L().With(zap.String("component", "queue"))

	if m.net != nil && !m.net.Online() {
		log.Debug("drain skipped: offline")
		m.metrics.ObserveDrain("skipped")
		return DrainResult{Skipped: true, Remaining: m.Pending()}, nil
	}

	snapshot, err := m.Snapshot(ctx)
	if err != nil {
		return DrainResult{}, err
	}
	if len(snapshot) == 0 {
		m.metrics.ObserveDrain("skipped")
		return DrainResult{Skipped: true}, nil
	}

	m.metrics.ObserveDrain("ran")
	log.Info("draining offline queue", zap.Int("pending", len(snapshot)))

	// Bookkeeping for dispatched leads must land even if ctx is cancelled
	// mid-drain.
	persistCtx := context.WithoutCancel(ctx)

	res := DrainResult{}
	delivered := make(map[string]struct{}, len(snapshot))
	var persistErr error
	for _, lead := range snapshot {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		if m.sink.Submit(ctx, lead) != sink.Delivered {
			continue
		}
		if err := m.store.MarkDelivered(persistCtx, lead.Timestamp); err != nil {
			// The lead stays queued so history and queue agree; it will be
			// sent again on the next drain.
			persistErr = eris.Wrapf(err, "queue: mark delivered %s", lead.Timestamp)
			break
		}
		delivered[lead.Timestamp] = struct{}{}
	}
	res.Delivered = len(delivered)

	remaining, err := m.replace(persistCtx, delivered)
	if err != nil && persistErr == nil {
		persistErr = err
	}
	res.Remaining = remaining

	log.Info("drain complete",
		zap.Int("attempted", res.Attempted),
		zap.Int("delivered", res.Delivered),
		zap.Int("remaining", res.Remaining),
	)
	if res.Delivered > 0 && res.Remaining == 0 && persistErr == nil {
		log.Info("all queued leads submitted")
	}
	return res, persistErr
}

// replace persists the queue minus delivered leads as one whole value. It
// re-reads the queue under the lock so leads enqueued during the drain are
// kept.
func (m *Manager) replace(ctx context.Context, delivered map[string]struct{}) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.LoadQueue(ctx)
	if err != nil {
		return m.pending, eris.Wrap(err, "queue: reload")
	}
	if len(delivered) == 0 {
		m.setPendingLocked(len(current))
		return len(current), nil
	}

	remaining := make([]model.Lead, 0, len(current))
	for _, l := range current {
		if _, ok := delivered[l.Timestamp]; !ok {
			remaining = append(remaining, l)
		}
	}
	if err := m.store.SaveQueue(ctx, remaining); err != nil {
		return len(current), eris.Wrap(err, "queue: save")
	}
	m.setPendingLocked(len(remaining))
	return len(remaining), nil
}

func (m *Manager) setPendingLocked(n int) {
	changed := m.pending != n
	m.pending = n
	m.metrics.SetQueueDepth(n)
	if !changed {
		return
	}
	for _, fn := range m.observers {
		fn(n)
	}
}
