// Package memory is an in-process RemoteStore used by tests and the dev server.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
	"github.com/and161185/sable-sync/internal/repository"
)

var _ repository.RemoteStore = (*Store)(nil)

// Store keeps records in a map keyed by identity. Writes fail with
// errs.ErrNotAvailable unless the configured account status is available.
type Store struct {
	mu      sync.RWMutex
	status  model.AccountStatus
	records map[model.RecordID]model.Record
	seq     map[model.RecordID]uint64
	next    uint64
	lastQoS model.QoS
	fail    error
}

// New constructs an empty store with the given account status.
func New(status model.AccountStatus) *Store {
	return &Store{
		status:  status,
		records: make(map[model.RecordID]model.Record),
		seq:     make(map[model.RecordID]uint64),
	}
}

// SetStatus changes the simulated account status.
func (s *Store) SetStatus(st model.AccountStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// SetFailure makes every operation return err until cleared with nil.
// Used to simulate transport failures.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Len returns the number of stored records of kind.
func (s *Store) Len(kind model.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id := range s.records {
		if id.Kind == kind {
			n++
		}
	}
	return n
}

// LastQoS returns the QoS tag of the most recent write.
func (s *Store) LastQoS() model.QoS {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastQoS
}

// AccountStatus returns the simulated status.
func (s *Store) AccountStatus(ctx context.Context) (model.AccountStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.AccountUnavailable, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return model.AccountTemporarilyUnavailable, s.fail
	}
	return s.status, nil
}

// Save overwrites the record with the same identity.
func (s *Store) Save(ctx context.Context, rec model.Record) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(ctx); err != nil {
		return nil, err
	}
	stored := s.put(rec)
	return &stored, nil
}

// FetchAll returns records of kind in insertion order of their first save.
func (s *Store) FetchAll(ctx context.Context, kind model.Kind) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	if s.status != model.AccountAvailable {
		return nil, errs.ErrNotAvailable
	}

	out := make([]model.Record, 0)
	for id, rec := range s.records {
		if id.Kind == kind {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out, nil
}

// Delete removes a record; a missing record reports errs.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id model.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(ctx); err != nil {
		return err
	}
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, errs.ErrNotFound)
	}
	delete(s.records, id)
	delete(s.seq, id)
	return nil
}

// BatchSave stores every record atomically with respect to other callers.
func (s *Store) BatchSave(ctx context.Context, recs []model.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(ctx); err != nil {
		return 0, err
	}
	for _, r := range recs {
		s.put(r)
	}
	return len(recs), nil
}

func (s *Store) writable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lastQoS = model.QoSFrom(ctx)
	if s.fail != nil {
		return s.fail
	}
	if s.status != model.AccountAvailable {
		return fmt.Errorf("account %s: %w", s.status, errs.ErrNotAvailable)
	}
	return nil
}

func (s *Store) put(rec model.Record) model.Record {
	stored := clone(rec)
	if _, ok := s.seq[rec.ID]; !ok {
		s.next++
		s.seq[rec.ID] = s.next
	}
	s.records[rec.ID] = stored
	return clone(stored)
}

func clone(rec model.Record) model.Record {
	fields := make(map[string]model.Value, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	return model.Record{ID: rec.ID, Fields: fields}
}
