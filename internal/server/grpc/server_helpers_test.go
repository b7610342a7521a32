package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

func ctxWithAuth(token string) context.Context {
	md := metadata.New(map[string]string{
		"authorization": "Bearer " + token,
	})
	return metadata.NewIncomingContext(context.Background(), md)
}

func Test_bearerTokenFromMD_OkAndErrors(t *testing.T) {
	t.Parallel()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc.def.ghi"))
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic foo"))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on non-bearer")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer   "))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on empty token")
	}

	if _, err := bearerTokenFromMD(context.Background()); err == nil {
		t.Fatalf("want error on no metadata")
	}
}

func TestWithSubject_And_SubjectFromCtx(t *testing.T) {
	t.Parallel()

	if _, ok := SubjectFromCtx(context.Background()); ok {
		t.Fatalf("expected no subject in empty ctx")
	}
	got, ok := SubjectFromCtx(WithSubject(context.Background(), "operator"))
	if !ok || got != "operator" {
		t.Fatalf("subject mismatch: %q %v", got, ok)
	}
	if _, ok := SubjectFromCtx(WithSubject(context.Background(), "")); ok {
		t.Fatalf("empty subject must not count")
	}
}

func Test_toStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		code   codes.Code
		reason string
	}{
		{errs.New(errs.KindNotAvailable, "save", errs.ErrNotAvailable), codes.FailedPrecondition, "NOT_AVAILABLE"},
		{fmt.Errorf("fetch: %w", errs.ErrNetwork), codes.Unavailable, "NETWORK"},
		{errs.Invalid("bad"), codes.InvalidArgument, "INVALID_INPUT"},
		{errs.ErrNotFound, codes.NotFound, "NOT_FOUND"},
		{errors.New("opaque"), codes.Unknown, "UNKNOWN"},
	}
	for _, tc := range tests {
		err := toStatus(tc.err)
		st, _ := status.FromError(err)
		if st.Code() != tc.code {
			t.Fatalf("%v: code %v, want %v", tc.err, st.Code(), tc.code)
		}
		var reason string
		for _, d := range st.Details() {
			if info, ok := d.(*errdetails.ErrorInfo); ok {
				reason = info.GetReason()
			}
		}
		if reason != tc.reason {
			t.Fatalf("%v: reason %q, want %q", tc.err, reason, tc.reason)
		}
		if k := KindFromStatus(err); Reason(k) != tc.reason {
			t.Fatalf("%v: kind round trip gave %q", tc.err, k)
		}
	}

	if k := KindFromStatus(status.Error(codes.Unavailable, "plain")); k != errs.KindNetwork {
		t.Fatalf("code fallback: got %q", k)
	}
}

func TestToValue_PayloadShapes(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	v, err := ToValue([]model.Payload{{
		"id":    "j1",
		"tags":  []string{"a", "b"},
		"mood":  int64(3),
		"when":  ts,
		"score": 0.5,
	}})
	if err != nil {
		t.Fatalf("ToValue: %v", err)
	}
	item := v.GetListValue().GetValues()[0].GetStructValue().GetFields()
	if item["tags"].GetListValue().GetValues()[1].GetStringValue() != "b" {
		t.Fatalf("tags not converted: %v", item["tags"])
	}
	if item["mood"].GetNumberValue() != 3 {
		t.Fatalf("mood: %v", item["mood"])
	}
	if item["when"].GetNumberValue() != float64(ts.Unix()) {
		t.Fatalf("when: %v", item["when"])
	}

	m, err := ToValue(map[string]string{"theme": "dark"})
	if err != nil || m.GetStructValue().GetFields()["theme"].GetStringValue() != "dark" {
		t.Fatalf("map: %v %v", m, err)
	}

	if _, err := ToValue(make(chan int)); err == nil {
		t.Fatalf("want error on unsupported type")
	}
}

func Test_payloadsOf(t *testing.T) {
	t.Parallel()

	list, _ := structpb.NewList([]any{map[string]any{"id": "a"}, "not-an-object"})
	ps, ok := payloadsOf(structpb.NewListValue(list))
	if !ok || len(ps) != 2 || ps[0]["id"] != "a" || ps[1] != nil {
		t.Fatalf("unexpected payloads: %v %v", ps, ok)
	}
	if _, ok := payloadsOf(structpb.NewStringValue("x")); ok {
		t.Fatalf("string is not a list")
	}
	if _, ok := payloadsOf(nil); ok {
		t.Fatalf("nil is not a list")
	}
}

func TestLoggingUnary_RecordsBridgeMethod(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ic := LoggingUnary(zap.New(core))
	req := &structpb.Struct{Fields: map[string]*structpb.Value{"method": structpb.NewStringValue(MethodSaveGoal)}}
	info := &grpc.UnaryServerInfo{FullMethod: InvokeMethod}

	if _, err := ic(context.Background(), req, info, func(context.Context, any) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	entries := logs.FilterField(zap.String("bridge_method", MethodSaveGoal)).All()
	if len(entries) != 1 {
		t.Fatalf("want one log line with bridge_method, got %d", len(entries))
	}
}
