// Package client is the remote store client: it runs every operation against the
// injected RemoteStore and turns whatever comes back into a classified result.
package client

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
	"github.com/and161185/sable-sync/internal/repository"
)

// Client wraps a RemoteStore. It does not gate writes on account status; a store
// that rejects a write because of account state surfaces as errs.ErrNotAvailable.
type Client struct {
	store   repository.RemoteStore
	log     *zap.Logger
	metrics *Metrics
}

// Option configures a Client during construction in New.
type Option func(*Client)

// WithLogger sets the logger used for failed operations.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics records operation counters and latencies into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New constructs a client over store.
func New(store repository.RemoteStore, opts ...Option) *Client {
	c := &Client{store: store, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AccountStatus queries the store session state.
func (c *Client) AccountStatus(ctx context.Context) (st model.AccountStatus, err error) {
	defer c.observe("account_status", "", time.Now(), &err)
	st, err = c.store.AccountStatus(ctx)
	if err != nil {
		return st, c.fail("account status", "", err)
	}
	return st, nil
}

// IsAvailable reports whether the account status is available.
func (c *Client) IsAvailable(ctx context.Context) bool {
	st, err := c.AccountStatus(ctx)
	return err == nil && st == model.AccountAvailable
}

// Save upserts one record with overwrite-by-identity semantics.
func (c *Client) Save(ctx context.Context, rec model.Record) (saved model.Record, err error) {
	defer c.observe("save", rec.Type(), time.Now(), &err)
	out, err := c.store.Save(model.WithQoS(ctx, model.QoSDefault), rec)
	if err != nil {
		return model.Record{}, c.fail("save "+rec.ID.String(), rec.Type(), err)
	}
	if out == nil {
		err = errs.New(errs.KindUnknown, "save "+rec.ID.String()+": store returned no record", nil)
		return model.Record{}, c.fail("save "+rec.ID.String(), rec.Type(), err)
	}
	return *out, nil
}

// FetchAll returns every record of kind. An empty collection is not an error.
func (c *Client) FetchAll(ctx context.Context, kind model.Kind) (recs []model.Record, err error) {
	defer c.observe("fetch_all", kind, time.Now(), &err)
	recs, err = c.store.FetchAll(model.WithQoS(ctx, model.QoSDefault), kind)
	if err != nil {
		return nil, c.fail("fetch "+string(kind), kind, err)
	}
	if recs == nil {
		recs = []model.Record{}
	}
	return recs, nil
}

// Delete removes the record addressed by id.
func (c *Client) Delete(ctx context.Context, id model.RecordID) (err error) {
	defer c.observe("delete", id.Kind, time.Now(), &err)
	if err = c.store.Delete(model.WithQoS(ctx, model.QoSDefault), id); err != nil {
		return c.fail("delete "+id.String(), id.Kind, err)
	}
	return nil
}

// BatchSave upserts recs in one logical remote operation at user-initiated priority.
// A failure is terminal for the whole batch: no partial count is reported.
func (c *Client) BatchSave(ctx context.Context, recs []model.Record) (n int, err error) {
	kind := batchKind(recs)
	defer c.observe("batch_save", kind, time.Now(), &err)
	if len(recs) == 0 {
		return 0, nil
	}
	n, err = c.store.BatchSave(model.WithQoS(ctx, model.QoSUserInitiated), recs)
	if err != nil {
		return 0, c.fail("batch save "+string(kind), kind, err)
	}
	return n, nil
}

// fail classifies err and logs it.
func (c *Client) fail(op string, kind model.Kind, err error) error {
	ce := Classify(op, err)
	c.log.Warn("remote store operation failed",
		zap.String("op", op),
		zap.String("kind", string(kind)),
		zap.String("error_kind", string(ce.Kind)),
		zap.Error(err),
	)
	return ce
}

func (c *Client) observe(op string, kind model.Kind, start time.Time, err *error) {
	if c.metrics == nil {
		return
	}
	c.metrics.observe(op, kind, errs.KindOf(*err), time.Since(start))
}

// Classify turns any error into a *errs.Error. Errors already mapped onto a sentinel
// keep their kind; context expiry and net.Error become network errors; everything
// else is unknown.
func Classify(op string, err error) *errs.Error {
	var ce *errs.Error
	if errors.As(err, &ce) {
		return ce
	}

	kind := errs.KindOf(err)
	if kind == errs.KindUnknown {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
			kind = errs.KindNetwork
		}
	}
	return errs.New(kind, op, err)
}

func batchKind(recs []model.Record) model.Kind {
	if len(recs) == 0 {
		return ""
	}
	return recs[0].Type()
}
