// Package service contains the entity repositories, the preference store and
// bridge token handling.
package service

import (
	"context"

	"github.com/and161185/sable-sync/internal/convert"
	"github.com/and161185/sable-sync/internal/dispatch"
	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

// Remote is the subset of the remote store client used by the repositories.
type Remote interface {
	AccountStatus(ctx context.Context) (model.AccountStatus, error)
	IsAvailable(ctx context.Context) bool
	Save(ctx context.Context, rec model.Record) (model.Record, error)
	FetchAll(ctx context.Context, kind model.Kind) ([]model.Record, error)
	Delete(ctx context.Context, id model.RecordID) error
	BatchSave(ctx context.Context, recs []model.Record) (int, error)
}

// EntityRepository persists payloads of one kind. It holds no state besides the
// kind tag, so every call is an independent round trip.
type EntityRepository struct {
	kind   model.Kind
	remote Remote
}

// NewEntityRepository returns a repository for kind.
func NewEntityRepository(kind model.Kind, remote Remote) *EntityRepository {
	return &EntityRepository{kind: kind, remote: remote}
}

// NewJournalEntries returns the JournalEntry repository.
func NewJournalEntries(remote Remote) *EntityRepository {
	return NewEntityRepository(model.KindJournalEntry, remote)
}

// NewGoals returns the Goal repository.
func NewGoals(remote Remote) *EntityRepository {
	return NewEntityRepository(model.KindGoal, remote)
}

// NewChatMessages returns the ChatMessage repository.
func NewChatMessages(remote Remote) *EntityRepository {
	return NewEntityRepository(model.KindChatMessage, remote)
}

// Kind returns the record kind handled by r.
func (r *EntityRepository) Kind() model.Kind { return r.kind }

// SaveOne upserts payload and returns the identity it was stored under.
func (r *EntityRepository) SaveOne(ctx context.Context, payload model.Payload) (string, error) {
	rec, err := convert.ToRecord(r.kind, payload)
	if err != nil {
		return "", err
	}
	saved, err := r.remote.Save(ctx, rec)
	if err != nil {
		return "", err
	}
	return saved.ID.Name, nil
}

// SaveBatch upserts payloads in one remote operation and returns the persisted count.
// Any invalid item rejects the whole batch before anything is sent.
func (r *EntityRepository) SaveBatch(ctx context.Context, payloads []model.Payload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	recs, err := convert.ToRecords(r.kind, payloads)
	if err != nil {
		return 0, err
	}
	return r.remote.BatchSave(ctx, recs)
}

// FetchAll returns every stored payload of the kind, defaults applied.
func (r *EntityRepository) FetchAll(ctx context.Context) ([]model.Payload, error) {
	recs, err := r.remote.FetchAll(ctx, r.kind)
	if err != nil {
		return nil, err
	}
	return convert.FromRecords(recs)
}

// Delete removes the payload stored under id.
func (r *EntityRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errs.Invalid("%s: empty id", r.kind)
	}
	return r.remote.Delete(ctx, model.RecordID{Kind: r.kind, Name: id})
}

// SaveOneAsync runs SaveOne in the background and delivers the result on exec.
func (r *EntityRepository) SaveOneAsync(ctx context.Context, exec dispatch.Executor, payload model.Payload, done func(string, error)) {
	dispatch.Go(ctx, exec, func(ctx context.Context) (string, error) {
		return r.SaveOne(ctx, payload)
	}, done)
}

// SaveBatchAsync runs SaveBatch in the background and delivers the result on exec.
func (r *EntityRepository) SaveBatchAsync(ctx context.Context, exec dispatch.Executor, payloads []model.Payload, done func(int, error)) {
	dispatch.Go(ctx, exec, func(ctx context.Context) (int, error) {
		return r.SaveBatch(ctx, payloads)
	}, done)
}

// FetchAllAsync runs FetchAll in the background and delivers the result on exec.
func (r *EntityRepository) FetchAllAsync(ctx context.Context, exec dispatch.Executor, done func([]model.Payload, error)) {
	dispatch.Go(ctx, exec, r.FetchAll, done)
}
