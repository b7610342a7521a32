package grpcserver

import (
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/sable-sync/internal/errs"
)

// ErrorDomain is the ErrorInfo domain attached to bridge errors.
const ErrorDomain = "sable.backup"

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindNotAvailable: codes.FailedPrecondition,
	errs.KindNetwork:      codes.Unavailable,
	errs.KindInvalidInput: codes.InvalidArgument,
	errs.KindNotFound:     codes.NotFound,
	errs.KindUnknown:      codes.Unknown,
}

// toStatus maps a classified error to a gRPC status carrying ErrorInfo with the
// upper-cased kind as reason.
func toStatus(err error) error {
	kind := errs.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code, kind = codes.Unknown, errs.KindUnknown
	}
	st := status.New(code, err.Error())
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: Reason(kind),
		Domain: ErrorDomain,
	}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// Reason is the ErrorInfo reason for kind, e.g. NOT_AVAILABLE.
func Reason(kind errs.Kind) string {
	return strings.ToUpper(string(kind))
}

// KindFromStatus recovers the error kind from a bridge status error. It returns
// "" for statuses that carry no kind, such as Unimplemented or Unauthenticated.
func KindFromStatus(err error) errs.Kind {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return errs.Kind(strings.ToLower(info.GetReason()))
		}
	}
	for k, c := range kindCodes {
		if c == st.Code() {
			return k
		}
	}
	return ""
}
