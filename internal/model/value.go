package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueType tags the dynamic type held by a Value.
type ValueType string

// Value types a record field may hold.
const (
	TypeNull      ValueType = "null"
	TypeString    ValueType = "string"
	TypeInt       ValueType = "int"
	TypeDouble    ValueType = "double"
	TypeBool      ValueType = "bool"
	TypeTimestamp ValueType = "timestamp"
	TypeStrings   ValueType = "strings"
)

// Value is a single record field value. The zero Value is Null.
type Value struct {
	typ  ValueType
	str  string
	num  int64
	dbl  float64
	flag bool
	ts   time.Time
	list []string
}

// Null returns the null value.
func Null() Value { return Value{typ: TypeNull} }

// String wraps s.
func String(s string) Value { return Value{typ: TypeString, str: s} }

// Int wraps n.
func Int(n int64) Value { return Value{typ: TypeInt, num: n} }

// Double wraps f.
func Double(f float64) Value { return Value{typ: TypeDouble, dbl: f} }

// Bool wraps b.
func Bool(b bool) Value { return Value{typ: TypeBool, flag: b} }

// Timestamp wraps t, normalised to UTC.
func Timestamp(t time.Time) Value { return Value{typ: TypeTimestamp, ts: t.UTC()} }

// Strings wraps a copy of ss.
func Strings(ss []string) Value {
	cp := make([]string, len(ss))
	copy(cp, ss)
	return Value{typ: TypeStrings, list: cp}
}

// Type returns the held type.
func (v Value) Type() ValueType {
	if v.typ == "" {
		return TypeNull
	}
	return v.typ
}

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.Type() == TypeNull }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.str, v.typ == TypeString }

// AsInt returns the integer and whether v holds one.
func (v Value) AsInt() (int64, bool) { return v.num, v.typ == TypeInt }

// AsDouble returns the double and whether v holds one.
func (v Value) AsDouble() (float64, bool) { return v.dbl, v.typ == TypeDouble }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.flag, v.typ == TypeBool }

// AsTimestamp returns the time and whether v holds one.
func (v Value) AsTimestamp() (time.Time, bool) { return v.ts, v.typ == TypeTimestamp }

// AsStrings returns a copy of the sequence and whether v holds one.
func (v Value) AsStrings() ([]string, bool) {
	if v.typ != TypeStrings {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Equal reports deep equality of two values.
func (v Value) Equal(o Value) bool {
	if v.Type() != o.Type() {
		return false
	}
	switch v.Type() {
	case TypeString:
		return v.str == o.str
	case TypeInt:
		return v.num == o.num
	case TypeDouble:
		return v.dbl == o.dbl
	case TypeBool:
		return v.flag == o.flag
	case TypeTimestamp:
		return v.ts.Equal(o.ts)
	case TypeStrings:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// wireValue is the tagged JSON form used by stores that persist fields as documents.
type wireValue struct {
	T ValueType       `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// MarshalJSON encodes v as {"t": type, "v": value}.
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch v.Type() {
	case TypeNull:
		return json.Marshal(wireValue{T: TypeNull})
	case TypeString:
		raw, err = json.Marshal(v.str)
	case TypeInt:
		raw, err = json.Marshal(v.num)
	case TypeDouble:
		raw, err = json.Marshal(v.dbl)
	case TypeBool:
		raw, err = json.Marshal(v.flag)
	case TypeTimestamp:
		raw, err = json.Marshal(v.ts.Format(time.RFC3339Nano))
	case TypeStrings:
		list := v.list
		if list == nil {
			list = []string{}
		}
		raw, err = json.Marshal(list)
	default:
		return nil, fmt.Errorf("marshal value: unknown type %q", v.typ)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{T: v.Type(), V: raw})
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON.
func (v *Value) UnmarshalJSON(b []byte) error {
	var w wireValue
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.T {
	case TypeNull, "":
		*v = Null()
	case TypeString:
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return fmt.Errorf("string value: %w", err)
		}
		*v = String(s)
	case TypeInt:
		var n int64
		if err := json.Unmarshal(w.V, &n); err != nil {
			return fmt.Errorf("int value: %w", err)
		}
		*v = Int(n)
	case TypeDouble:
		var f float64
		if err := json.Unmarshal(w.V, &f); err != nil {
			return fmt.Errorf("double value: %w", err)
		}
		*v = Double(f)
	case TypeBool:
		var f bool
		if err := json.Unmarshal(w.V, &f); err != nil {
			return fmt.Errorf("bool value: %w", err)
		}
		*v = Bool(f)
	case TypeTimestamp:
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return fmt.Errorf("timestamp value: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp value: %w", err)
		}
		*v = Timestamp(t)
	case TypeStrings:
		var ss []string
		if err := json.Unmarshal(w.V, &ss); err != nil {
			return fmt.Errorf("strings value: %w", err)
		}
		*v = Strings(ss)
	default:
		return fmt.Errorf("unmarshal value: unknown type %q", w.T)
	}
	return nil
}

// EncodeFields serialises a field map to its JSON document form.
func EncodeFields(fields map[string]Value) ([]byte, error) {
	if fields == nil {
		fields = map[string]Value{}
	}
	return json.Marshal(fields)
}

// DecodeFields parses a document written by EncodeFields.
func DecodeFields(b []byte) (map[string]Value, error) {
	fields := map[string]Value{}
	if len(b) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
