package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/model"
)

// kvTx reads and writes whole values inside one backend transaction.
type kvTx interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	put(ctx context.Context, key string, value []byte) error
}

// kvBackend runs fn in a transaction, committing when fn returns nil.
type kvBackend interface {
	withTx(ctx context.Context, fn func(tx kvTx) error) error
}

// recordStore implements the Store record operations over a kvBackend.
// Every mutation is read-modify-write of a whole value under mu and a
// single transaction.
type recordStore struct {
	name    string
	backend kvBackend
	mu      sync.Mutex
}

func (s *recordStore) LoadIdentity(ctx context.Context) (string, error) {
	var name string
	err := s.read(ctx, keyIdentity, &name)
	return name, err
}

func (s *recordStore) SaveIdentity(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return eris.Errorf("%s: staff identity must not be empty", s.name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.withTx(ctx, func(tx kvTx) error {
		return s.putJSON(ctx, tx, keyIdentity, name)
	})
}

func (s *recordStore) AppendHistory(ctx context.Context, lead model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.withTx(ctx, func(tx kvTx) error {
		var h []model.HistoryEntry
		if err := s.getJSON(ctx, tx, keyHistory, &h); err != nil {
			return err
		}
		var q []model.Lead
		if err := s.getJSON(ctx, tx, keyQueue, &q); err != nil {
			return err
		}
		if timestampTaken(h, q, lead.Timestamp) {
			return eris.Wrapf(ErrDuplicateTimestamp, "%s: append %s", s.name, lead.Timestamp)
		}
		return s.putJSON(ctx, tx, keyHistory, prependHistory(h, lead, HistoryLimit))
	})
}

func (s *recordStore) MarkDelivered(ctx context.Context, timestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.withTx(ctx, func(tx kvTx) error {
		var h []model.HistoryEntry
		if err := s.getJSON(ctx, tx, keyHistory, &h); err != nil {
			return err
		}
		if !markDelivered(h, timestamp) {
			return nil
		}
		return s.putJSON(ctx, tx, keyHistory, h)
	})
}

func (s *recordStore) LoadHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	var h []model.HistoryEntry
	err := s.read(ctx, keyHistory, &h)
	return h, err
}

func (s *recordStore) LoadQueue(ctx context.Context) ([]model.Lead, error) {
	var q []model.Lead
	err := s.read(ctx, keyQueue, &q)
	return q, err
}

func (s *recordStore) SaveQueue(ctx context.Context, queue []model.Lead) error {
	q := dedupeQueue(queue)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.withTx(ctx, func(tx kvTx) error {
		return s.putJSON(ctx, tx, keyQueue, q)
	})
}

func (s *recordStore) read(ctx context.Context, key string, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.withTx(ctx, func(tx kvTx) error {
		return s.getJSON(ctx, tx, key, dst)
	})
}

func (s *recordStore) getJSON(ctx context.Context, tx kvTx, key string, dst any) error {
	raw, ok, err := tx.get(ctx, key)
	if err != nil {
		return eris.Wrapf(err, "%s: get %s", s.name, key)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return eris.Wrapf(err, "%s: unmarshal %s", s.name, key)
	}
	return nil
}

func (s *recordStore) putJSON(ctx context.Context, tx kvTx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal %s", s.name, key)
	}
	return eris.Wrapf(tx.put(ctx, key, raw), "%s: put %s", s.name, key)
}
