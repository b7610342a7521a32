package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/smithy-go"

	"github.com/and161185/sable-sync/internal/errs"
)

// Error codes grouped by how they surface to callers.
var (
	accessCodes = map[string]bool{
		"AccessDenied": true, "Forbidden": true, "AllAccessDisabled": true, "AccountProblem": true,
	}
	credentialCodes = map[string]bool{
		"InvalidAccessKeyId": true, "SignatureDoesNotMatch": true, "ExpiredToken": true,
		"InvalidToken": true, "TokenRefreshRequired": true,
	}
	transientCodes = map[string]bool{
		"SlowDown": true, "RequestTimeout": true, "ServiceUnavailable": true,
		"InternalError": true, "Throttling": true, "ThrottlingException": true,
	}
	missingCodes = map[string]bool{"NoSuchKey": true, "NotFound": true}
)

func apiCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

// classify maps SDK errors onto the errs sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errs.KindOf(err) != errs.KindUnknown {
		return err
	}

	code := apiCode(err)
	switch {
	case accessCodes[code], credentialCodes[code], code == "NoSuchBucket":
		return fmt.Errorf("%s: %w: %w", op, errs.ErrNotAvailable, err)
	case transientCodes[code]:
		return fmt.Errorf("%s: %w: %w", op, errs.ErrNetwork, err)
	case missingCodes[code]:
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
