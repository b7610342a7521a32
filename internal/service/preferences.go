package service

import (
	"context"
	"time"

	"github.com/and161185/sable-sync/internal/convert"
	"github.com/and161185/sable-sync/internal/dispatch"
	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

// PreferenceStore keeps string settings, one record per key.
type PreferenceStore struct {
	repo *EntityRepository
	now  func() time.Time
}

// PreferenceOption configures a PreferenceStore.
type PreferenceOption func(*PreferenceStore)

// WithClock overrides the clock used to stamp updatedAt.
func WithClock(now func() time.Time) PreferenceOption {
	return func(p *PreferenceStore) { p.now = now }
}

// NewPreferenceStore returns a store over remote.
func NewPreferenceStore(remote Remote, opts ...PreferenceOption) *PreferenceStore {
	p := &PreferenceStore{
		repo: NewEntityRepository(model.KindPreference, remote),
		now:  time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SavePreference upserts value under key.
func (p *PreferenceStore) SavePreference(ctx context.Context, key, value string) error {
	if key == "" {
		return errs.Invalid("%s: empty key", model.KindPreference)
	}
	_, err := p.repo.SaveOne(ctx, model.Payload{
		"key":       key,
		"value":     value,
		"updatedAt": p.now(),
	})
	return err
}

// FetchAllPreferences collapses every stored preference into a key/value map.
// Records missing key or value are skipped. If a key appears twice the entry
// with the newer updatedAt wins, and on a tie the later one.
func (p *PreferenceStore) FetchAllPreferences(ctx context.Context) (map[string]string, error) {
	payloads, err := p.repo.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(payloads))
	stamps := make(map[string]float64, len(payloads))
	for _, pl := range payloads {
		key, ok := pl["key"].(string)
		if !ok || key == "" {
			continue
		}
		value, ok := pl["value"].(string)
		if !ok {
			continue
		}
		at, _ := pl["updatedAt"].(float64)
		if prev, seen := stamps[key]; seen && at < prev {
			continue
		}
		out[key] = value
		stamps[key] = at
	}
	return out, nil
}

// DeletePreference removes the record for key.
func (p *PreferenceStore) DeletePreference(ctx context.Context, key string) error {
	if key == "" {
		return errs.Invalid("%s: empty key", model.KindPreference)
	}
	return p.repo.remote.Delete(ctx, convert.PreferenceID(key))
}

// SavePreferenceAsync runs SavePreference in the background and delivers the result on exec.
func (p *PreferenceStore) SavePreferenceAsync(ctx context.Context, exec dispatch.Executor, key, value string, done func(error)) {
	dispatch.Go(ctx, exec, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.SavePreference(ctx, key, value)
	}, func(_ struct{}, err error) { done(err) })
}

// FetchAllPreferencesAsync runs FetchAllPreferences in the background and delivers the result on exec.
func (p *PreferenceStore) FetchAllPreferencesAsync(ctx context.Context, exec dispatch.Executor, done func(map[string]string, error)) {
	dispatch.Go(ctx, exec, p.FetchAllPreferences, done)
}
