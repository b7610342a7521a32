package convert

import (
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

// idField is the payload key carrying the caller-supplied identity.
const idField = "id"

// newID generates a record name when the caller supplies none.
var newID = func() string { return uuid.Must(uuid.NewV4()).String() }

// ToRecord builds a record of kind from payload. Fields outside the kind's
// schema are dropped; values of the wrong type are treated as absent.
//
// Identity is the payload "id" (a fresh UUID when missing) for every kind
// except Preference, whose identity is always PreferenceID(key).
func ToRecord(kind model.Kind, payload model.Payload) (model.Record, error) {
	specs, ok := schemas[kind]
	if !ok {
		return model.Record{}, errs.Invalid("unknown record kind %q", kind)
	}
	if payload == nil {
		return model.Record{}, errs.Invalid("%s: nil payload", kind)
	}

	rec := model.Record{Fields: make(map[string]model.Value, len(specs)+1)}

	if kind == model.KindPreference {
		key, _ := payload["key"].(string)
		if key == "" {
			return model.Record{}, errs.Invalid("%s: empty key", kind)
		}
		rec.ID = PreferenceID(key)
	} else {
		id, _ := payload[idField].(string)
		if id != "" {
			rec.Fields[idField] = model.String(id)
		} else {
			id = newID()
		}
		rec.ID = model.RecordID{Kind: kind, Name: id}
	}

	for _, f := range specs {
		if v, ok := coerce(f.typ, payload[f.name]); ok {
			rec.Fields[f.name] = v
			continue
		}
		if f.writeDefault != nil {
			rec.Fields[f.name] = *f.writeDefault
		}
	}
	return rec, nil
}

// ToRecords converts a batch; the first failing item aborts the conversion.
func ToRecords(kind model.Kind, payloads []model.Payload) ([]model.Record, error) {
	out := make([]model.Record, 0, len(payloads))
	for i, p := range payloads {
		rec, err := ToRecord(kind, p)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// FromRecord rebuilds a complete payload from rec, applying the documented
// defaults for every absent field. Optional fields without a default are omitted.
func FromRecord(rec model.Record) (model.Payload, error) {
	specs, ok := schemas[rec.Type()]
	if !ok {
		return nil, errs.Invalid("unknown record kind %q", rec.Type())
	}

	out := make(model.Payload, len(specs)+1)
	if rec.Type() != model.KindPreference {
		id, ok := rec.Get(idField).AsString()
		if !ok || id == "" {
			id = rec.ID.Name
		}
		out[idField] = id
	}

	for _, f := range specs {
		if v, ok := read(rec.Get(f.name), f.typ); ok {
			out[f.name] = emit(v)
			continue
		}
		if f.readDefault != nil {
			out[f.name] = defaultCopy(f.readDefault)
		}
	}
	return out, nil
}

// FromRecords converts every record, skipping none.
func FromRecords(recs []model.Record) ([]model.Payload, error) {
	out := make([]model.Payload, 0, len(recs))
	for _, r := range recs {
		p, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PreferenceID derives the deterministic record identity for key.
func PreferenceID(key string) model.RecordID {
	return model.RecordID{Kind: model.KindPreference, Name: PreferenceIDPrefix + key}
}

// read accepts v when it holds typ; an integer stored where a double is expected is widened.
func read(v model.Value, typ model.ValueType) (model.Value, bool) {
	if v.Type() == typ {
		return v, true
	}
	if typ == model.TypeDouble {
		if n, ok := v.AsInt(); ok {
			return model.Double(float64(n)), true
		}
	}
	return model.Null(), false
}

// defaultCopy keeps shared slice defaults from leaking between payloads.
func defaultCopy(v any) any {
	if ss, ok := v.([]string); ok {
		return append([]string{}, ss...)
	}
	return v
}
