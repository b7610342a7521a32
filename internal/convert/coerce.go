package convert

import (
	"encoding/json"
	"math"
	"time"

	"github.com/and161185/sable-sync/internal/model"
)

// coerce converts a caller value to typ. ok is false when the value cannot
// represent typ; such fields are treated as absent.
func coerce(typ model.ValueType, v any) (model.Value, bool) {
	if v == nil {
		return model.Null(), false
	}
	switch typ {
	case model.TypeString:
		s, ok := v.(string)
		return model.String(s), ok
	case model.TypeInt:
		n, ok := toInt(v)
		return model.Int(n), ok
	case model.TypeDouble:
		f, ok := toFloat(v)
		return model.Double(f), ok
	case model.TypeBool:
		b, ok := v.(bool)
		return model.Bool(b), ok
	case model.TypeTimestamp:
		t, ok := toTime(v)
		return model.Timestamp(t), ok
	case model.TypeStrings:
		ss, ok := toStrings(v)
		return model.Strings(ss), ok
	default:
		return model.Null(), false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) || n < -(1<<63) || n >= 1<<63 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Epoch-second bounds of the years 0001 through 9999, the range RFC 3339 can encode.
const (
	minEpochSeconds = -62135596800
	maxEpochSeconds = 253402300799
)

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if y := t.UTC().Year(); t.IsZero() || y < 1 || y > 9999 {
			return time.Time{}, false
		}
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		sec, ok := toFloat(v)
		if !ok || math.IsNaN(sec) || sec < minEpochSeconds || sec > maxEpochSeconds {
			return time.Time{}, false
		}
		return model.FromEpochSeconds(sec), true
	}
}

func toStrings(v any) ([]string, bool) {
	switch ss := v.(type) {
	case []string:
		return ss, true
	case []any:
		out := make([]string, 0, len(ss))
		for _, e := range ss {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// emit converts a stored value to its payload form. Timestamps leave as epoch seconds.
func emit(v model.Value) any {
	switch v.Type() {
	case model.TypeString:
		s, _ := v.AsString()
		return s
	case model.TypeInt:
		n, _ := v.AsInt()
		return n
	case model.TypeDouble:
		f, _ := v.AsDouble()
		return f
	case model.TypeBool:
		b, _ := v.AsBool()
		return b
	case model.TypeTimestamp:
		t, _ := v.AsTimestamp()
		return model.EpochSeconds(t)
	case model.TypeStrings:
		ss, _ := v.AsStrings()
		return ss
	default:
		return nil
	}
}
