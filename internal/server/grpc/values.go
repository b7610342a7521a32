package grpcserver

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/sable-sync/internal/model"
)

// ToValue converts payload-shaped data into a structpb.Value. Besides what
// structpb.NewValue accepts it handles []string, []model.Payload and time.Time
// (as epoch seconds).
func ToValue(v any) (*structpb.Value, error) {
	v, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewValue(v)
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case time.Time:
		return model.EpochSeconds(t), nil
	case model.Payload:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []model.Payload:
		out := make([]any, len(t))
		for i, p := range t {
			n, err := normalize(p)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// payloadOf returns the Struct argument as a payload.
func payloadOf(v *structpb.Value) (model.Payload, bool) {
	s := v.GetStructValue()
	if s == nil {
		return nil, false
	}
	return model.Payload(s.AsMap()), true
}

// payloadsOf returns a list argument as payloads; non-struct elements become nil
// and are rejected by the repository.
func payloadsOf(v *structpb.Value) ([]model.Payload, bool) {
	l := v.GetListValue()
	if l == nil {
		return nil, false
	}
	out := make([]model.Payload, len(l.GetValues()))
	for i, e := range l.GetValues() {
		if s := e.GetStructValue(); s != nil {
			out[i] = model.Payload(s.AsMap())
		}
	}
	return out, true
}
