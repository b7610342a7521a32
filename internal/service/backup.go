package service

import (
	"context"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

// Backup groups the repositories served over the bridge.
type Backup struct {
	remote      Remote
	Journal     *EntityRepository
	Goals       *EntityRepository
	Chat        *EntityRepository
	Preferences *PreferenceStore
}

// NewBackup wires one repository per entity kind onto remote.
func NewBackup(remote Remote, opts ...PreferenceOption) *Backup {
	return &Backup{
		remote:      remote,
		Journal:     NewJournalEntries(remote),
		Goals:       NewGoals(remote),
		Chat:        NewChatMessages(remote),
		Preferences: NewPreferenceStore(remote, opts...),
	}
}

// AccountStatus reports the remote account state.
func (b *Backup) AccountStatus(ctx context.Context) (model.AccountStatus, error) {
	return b.remote.AccountStatus(ctx)
}

// IsAvailable reports whether writes can be attempted.
func (b *Backup) IsAvailable(ctx context.Context) bool {
	return b.remote.IsAvailable(ctx)
}

// Repository returns the entity repository for kind.
func (b *Backup) Repository(kind model.Kind) (*EntityRepository, bool) {
	switch kind {
	case model.KindJournalEntry:
		return b.Journal, true
	case model.KindGoal:
		return b.Goals, true
	case model.KindChatMessage:
		return b.Chat, true
	default:
		return nil, false
	}
}

// DeleteRecord removes one record. For preferences id is the preference key.
func (b *Backup) DeleteRecord(ctx context.Context, kind model.Kind, id string) error {
	if kind == model.KindPreference {
		return b.Preferences.DeletePreference(ctx, id)
	}
	repo, ok := b.Repository(kind)
	if !ok {
		return errs.Invalid("unknown record kind %q", kind)
	}
	return repo.Delete(ctx, id)
}
