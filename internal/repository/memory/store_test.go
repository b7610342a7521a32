package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

func rec(kind model.Kind, name, content string) model.Record {
	return model.Record{
		ID:     model.RecordID{Kind: kind, Name: name},
		Fields: map[string]model.Value{"content": model.String(content)},
	}
}

func TestStore_SaveOverwritesByIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(model.AccountAvailable)

	_, err := s.Save(ctx, rec(model.KindJournalEntry, "j1", "first"))
	require.NoError(t, err)
	_, err = s.Save(ctx, rec(model.KindJournalEntry, "j1", "second"))
	require.NoError(t, err)

	all, err := s.FetchAll(ctx, model.KindJournalEntry)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got, _ := all[0].Get("content").AsString()
	require.Equal(t, "second", got)
}

func TestStore_FetchAllFiltersByKindAndKeepsOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(model.AccountAvailable)

	n, err := s.BatchSave(ctx, []model.Record{
		rec(model.KindGoal, "g1", ""),
		rec(model.KindJournalEntry, "j1", ""),
		rec(model.KindGoal, "g2", ""),
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	goals, err := s.FetchAll(ctx, model.KindGoal)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	require.Equal(t, "g1", goals[0].ID.Name)
	require.Equal(t, "g2", goals[1].ID.Name)

	empty, err := s.FetchAll(ctx, model.KindChatMessage)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestStore_WritesRejectedWhenAccountNotAvailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, st := range []model.AccountStatus{
		model.AccountUnavailable, model.AccountRestricted, model.AccountNoAccount, model.AccountTemporarilyUnavailable,
	} {
		s := New(st)
		_, err := s.Save(ctx, rec(model.KindGoal, "g", ""))
		require.ErrorIs(t, err, errs.ErrNotAvailable, st.String())
		_, err = s.BatchSave(ctx, []model.Record{rec(model.KindGoal, "g", "")})
		require.ErrorIs(t, err, errs.ErrNotAvailable, st.String())
		require.ErrorIs(t, s.Delete(ctx, model.RecordID{Kind: model.KindGoal, Name: "g"}), errs.ErrNotAvailable)
		require.Equal(t, 0, s.Len(model.KindGoal))
	}
}

func TestStore_DeleteAndNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(model.AccountAvailable)
	id := model.RecordID{Kind: model.KindChatMessage, Name: "m"}

	require.ErrorIs(t, s.Delete(ctx, id), errs.ErrNotFound)
	_, err := s.Save(ctx, rec(model.KindChatMessage, "m", "hi"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))
	require.Equal(t, 0, s.Len(model.KindChatMessage))
}

func TestStore_FailureAndQoS(t *testing.T) {
	t.Parallel()
	s := New(model.AccountAvailable)
	boom := errors.New("boom")
	s.SetFailure(boom)

	_, err := s.FetchAll(context.Background(), model.KindGoal)
	require.ErrorIs(t, err, boom)
	st, err := s.AccountStatus(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, model.AccountTemporarilyUnavailable, st)

	s.SetFailure(nil)
	ctx := model.WithQoS(context.Background(), model.QoSUserInitiated)
	_, err = s.BatchSave(ctx, []model.Record{rec(model.KindGoal, "g", "")})
	require.NoError(t, err)
	require.Equal(t, model.QoSUserInitiated, s.LastQoS())
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New(model.AccountAvailable)
	saved, err := s.Save(ctx, rec(model.KindGoal, "g", "orig"))
	require.NoError(t, err)
	saved.Fields["content"] = model.String("mutated")

	all, err := s.FetchAll(ctx, model.KindGoal)
	require.NoError(t, err)
	got, _ := all[0].Get("content").AsString()
	require.Equal(t, "orig", got)
}
