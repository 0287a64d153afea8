// Package monitoring reports the device's delivery health and raises
// webhook alerts when undelivered leads pile up.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

// Snapshot is a point-in-time view of local delivery state.
type Snapshot struct {
	Identity           string     `json:"identity"`
	Online             bool       `json:"online"`
	EndpointConfigured bool       `json:"endpoint_configured"`
	Pending            int        `json:"pending"`
	OldestPending      *time.Time `json:"oldest_pending,omitempty"`
	HistorySize        int        `json:"history_size"`
	Undelivered        int        `json:"undelivered"`
	CollectedAt        time.Time  `json:"collected_at"`
}

// OldestPendingAge returns how long the oldest queued lead has waited.
func (s *Snapshot) OldestPendingAge() time.Duration {
	if s.OldestPending == nil {
		return 0
	}
	return s.CollectedAt.Sub(*s.OldestPending)
}

// StateReader is the store view the collector reads.
type StateReader interface {
	LoadIdentity(ctx context.Context) (string, error)
	LoadHistory(ctx context.Context) ([]model.HistoryEntry, error)
	LoadQueue(ctx context.Context) ([]model.Lead, error)
}

// Reachability reports whether the network is currently usable.
type Reachability interface {
	Online() bool
}

// Collector gathers snapshots from the store and connectivity monitor.
type Collector struct {
	store      StateReader
	net        Reachability
	configured bool
	now        func() time.Time
}

// NewCollector creates a collector. net may be nil, meaning online.
// configured reports whether a sink endpoint is set.
func NewCollector(st StateReader, net Reachability, configured bool) *Collector {
	return &Collector{store: st, net: net, configured: configured, now: time.Now}
}

// Collect reads the current state.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Online:             c.net == nil || c.net.Online(),
		EndpointConfigured: c.configured,
		CollectedAt:        c.now().UTC(),
	}

	id, err := c.store.LoadIdentity(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: load identity")
	}
	snap.Identity = id

	queue, err := c.store.LoadQueue(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: load queue")
	}
	snap.Pending = len(queue)
	for _, l := range queue {
		at, err := model.ParseTimestamp(l.Timestamp)
		if err != nil {
			continue
		}
		if snap.OldestPending == nil || at.Before(*snap.OldestPending) {
			snap.OldestPending = &at
		}
	}

	history, err := c.store.LoadHistory(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: load history")
	}
	snap.HistorySize = len(history)
	for _, e := range history {
		if !e.Delivered {
			snap.Undelivered++
		}
	}

	return snap, nil
}
