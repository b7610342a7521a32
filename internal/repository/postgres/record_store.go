package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
	"github.com/and161185/sable-sync/internal/repository"
)

var _ repository.RemoteStore = (*RecordStore)(nil)

// Statement timeouts per QoS class.
const (
	DefaultStatementTimeout       = 5 * time.Second
	UserInitiatedStatementTimeout = 60 * time.Second
)

// RecordStore implements RemoteStore over the records/accounts tables for a single account.
type RecordStore struct {
	db      *DB
	account string
}

// NewRecordStore constructs a store bound to account.
func NewRecordStore(db *DB, account string) *RecordStore {
	return &RecordStore{db: db, account: account}
}

// AccountStatus reads the account row; a missing row means no account is signed in.
func (s *RecordStore) AccountStatus(ctx context.Context) (model.AccountStatus, error) {
	const q = `SELECT status FROM accounts WHERE id=$1`
	var st string
	err := s.db.Pool.QueryRow(ctx, q, s.account).Scan(&st)
	switch {
	case err == nil:
		return model.ParseAccountStatus(st), nil
	case errors.Is(err, pgx.ErrNoRows):
		return model.AccountNoAccount, nil
	default:
		err = classify("account status", err)
		if errors.Is(err, errs.ErrNetwork) {
			return model.AccountTemporarilyUnavailable, err
		}
		return model.AccountUnavailable, err
	}
}

// Save upserts one record, replacing all fields of an existing row.
func (s *RecordStore) Save(ctx context.Context, rec model.Record) (saved *model.Record, err error) {
	doc, err := model.EncodeFields(rec.Fields)
	if err != nil {
		return nil, errs.Invalid("encode %s: %v", rec.ID, err)
	}

	err = s.inTx(ctx, "save", func(tx pgx.Tx) error {
		const ups = `
INSERT INTO records (account_id, kind, name, fields)
VALUES ($1,$2,$3,$4)
ON CONFLICT (account_id, kind, name) DO UPDATE SET fields=EXCLUDED.fields, updated_at=now()
RETURNING fields`
		var stored []byte
		scanErr := tx.QueryRow(ctx, ups, s.account, string(rec.ID.Kind), rec.ID.Name, doc).Scan(&stored)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		fields, decErr := model.DecodeFields(stored)
		if decErr != nil {
			return decErr
		}
		saved = &model.Record{ID: rec.ID, Fields: fields}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// FetchAll returns every record of kind for the account.
func (s *RecordStore) FetchAll(ctx context.Context, kind model.Kind) ([]model.Record, error) {
	if err := s.requireAvailable(s.db.Pool.QueryRow(ctx, `SELECT status FROM accounts WHERE id=$1`, s.account)); err != nil {
		return nil, classify("fetch "+string(kind), err)
	}

	const q = `
SELECT name, fields
FROM records
WHERE account_id=$1 AND kind=$2`
	rows, err := s.db.Pool.Query(ctx, q, s.account, string(kind))
	if err != nil {
		return nil, classify("fetch "+string(kind), err)
	}
	defer rows.Close()

	out := make([]model.Record, 0)
	for rows.Next() {
		var (
			name string
			doc  []byte
		)
		if err = rows.Scan(&name, &doc); err != nil {
			return nil, classify("fetch "+string(kind), err)
		}
		fields, err := model.DecodeFields(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", kind, name, err)
		}
		out = append(out, model.Record{ID: model.RecordID{Kind: kind, Name: name}, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch "+string(kind), err)
	}
	return out, nil
}

// Delete removes one record.
func (s *RecordStore) Delete(ctx context.Context, id model.RecordID) error {
	return s.inTx(ctx, "delete", func(tx pgx.Tx) error {
		const del = `DELETE FROM records WHERE account_id=$1 AND kind=$2 AND name=$3`
		tag, err := tx.Exec(ctx, del, s.account, string(id.Kind), id.Name)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete %s: %w", id, errs.ErrNotFound)
		}
		return nil
	})
}

// BatchSave upserts all records in one transaction. Any failure rolls the whole batch back.
func (s *RecordStore) BatchSave(ctx context.Context, recs []model.Record) (n int, err error) {
	docs := make([][]byte, len(recs))
	for i, r := range recs {
		if docs[i], err = model.EncodeFields(r.Fields); err != nil {
			return 0, errs.Invalid("item[%d]: encode %s: %v", i, r.ID, err)
		}
	}

	err = s.inTx(ctx, "batch save", func(tx pgx.Tx) error {
		const ups = `
INSERT INTO records (account_id, kind, name, fields)
VALUES ($1,$2,$3,$4)
ON CONFLICT (account_id, kind, name) DO UPDATE SET fields=EXCLUDED.fields, updated_at=now()`
		for i, r := range recs {
			tag, err := tx.Exec(ctx, ups, s.account, string(r.ID.Kind), r.ID.Name, docs[i])
			if err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
			n += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// inTx runs fn after locking the account row and applying the QoS statement timeout.
func (s *RecordStore) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			err = classify(op, err)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = classify(op, e)
		}
	}()

	const lock = `SELECT status FROM accounts WHERE id=$1 FOR SHARE`
	if err = s.requireAvailable(tx.QueryRow(ctx, lock, s.account)); err != nil {
		return err
	}

	timeout := DefaultStatementTimeout
	if model.QoSFrom(ctx) == model.QoSUserInitiated {
		timeout = UserInitiatedStatementTimeout
	}
	const setTimeout = `SELECT set_config('statement_timeout', $1, true)`
	if _, err = tx.Exec(ctx, setTimeout, fmt.Sprintf("%dms", timeout.Milliseconds())); err != nil {
		return err
	}

	return fn(tx)
}

func (s *RecordStore) requireAvailable(row pgx.Row) error {
	var st string
	if err := row.Scan(&st); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("account %q: %w", s.account, errs.ErrNotAvailable)
		}
		return err
	}
	if status := model.ParseAccountStatus(st); status != model.AccountAvailable {
		return fmt.Errorf("account %s: %w", status, errs.ErrNotAvailable)
	}
	return nil
}
