// Package repository defines the remote record store capability implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/sable-sync/internal/model"
)

// RemoteStore is the remote record store. Implementations map account-state
// rejections to errs.ErrNotAvailable and transport failures to errs.ErrNetwork.
type RemoteStore interface {
	// AccountStatus reports the store session state.
	AccountStatus(ctx context.Context) (model.AccountStatus, error)

	// Save upserts rec, overwriting every field of an existing record with the same identity.
	// It returns the stored record; a nil record with a nil error is a store defect.
	Save(ctx context.Context, rec model.Record) (*model.Record, error)

	// FetchAll returns every record of kind in store order. No records is not an error.
	FetchAll(ctx context.Context, kind model.Kind) ([]model.Record, error)

	// Delete removes the record addressed by id.
	Delete(ctx context.Context, id model.RecordID) error

	// BatchSave upserts recs as one logical operation and returns how many were persisted.
	BatchSave(ctx context.Context, recs []model.Record) (int, error)
}
