package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

// HistoryLimit bounds the recent history list.
const HistoryLimit = 50

// Persisted keys. Each holds one whole JSON value.
const (
	keyIdentity = "staff_identity"
	keyHistory  = "recent_history"
	keyQueue    = "offline_queue"
)

// ErrDuplicateTimestamp is returned by AppendHistory when the lead's
// timestamp is already used by a recorded or queued lead.
var ErrDuplicateTimestamp = eris.New("store: timestamp already recorded")

// Store defines the local persistence interface for captured leads.
type Store interface {
	// Staff identity
	LoadIdentity(ctx context.Context) (string, error)
	SaveIdentity(ctx context.Context, name string) error

	// Recent history. AppendHistory fails with ErrDuplicateTimestamp rather
	// than overwrite or drop another lead.
	AppendHistory(ctx context.Context, lead model.Lead) error
	MarkDelivered(ctx context.Context, timestamp string) error
	LoadHistory(ctx context.Context) ([]model.HistoryEntry, error)

	// Pending queue
	LoadQueue(ctx context.Context) ([]model.Lead, error)
	SaveQueue(ctx context.Context, queue []model.Lead) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prependHistory puts lead at the front of h as undelivered and evicts the
// oldest entries beyond limit.
func prependHistory(h []model.HistoryEntry, lead model.Lead, limit int) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, len(h)+1)
	out = append(out, model.HistoryEntry{Lead: lead})
	out = append(out, h...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// timestampTaken reports whether timestamp is used in h or q. The queue is
// checked too since it can outlive a history entry evicted by the cap.
func timestampTaken(h []model.HistoryEntry, q []model.Lead, timestamp string) bool {
	for _, e := range h {
		if e.Timestamp == timestamp {
			return true
		}
	}
	for _, l := range q {
		if l.Timestamp == timestamp {
			return true
		}
	}
	return false
}

// markDelivered flips the entry with the given timestamp to delivered.
// It reports whether h changed.
func markDelivered(h []model.HistoryEntry, timestamp string) bool {
	for i := range h {
		if h[i].Timestamp != timestamp {
			continue
		}
		if h[i].Delivered {
			return false
		}
		h[i].Delivered = true
		return true
	}
	return false
}

// dedupeQueue drops later duplicates of the same timestamp, keeping order.
func dedupeQueue(q []model.Lead) []model.Lead {
	seen := make(map[string]struct{}, len(q))
	out := make([]model.Lead, 0, len(q))
	for _, l := range q {
		if _, ok := seen[l.Timestamp]; ok {
			continue
		}
		seen[l.Timestamp] = struct{}{}
		out = append(out, l)
	}
	return out
}
