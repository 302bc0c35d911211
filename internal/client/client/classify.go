package client

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// classifyError is the shared core of every backend's HandleError.
//
// Order matters: an error that is already classified passes through, gRPC
// status errors are split by code, and everything else (context errors,
// net and url errors, decoding failures) means the exchange did not
// complete and becomes a NetworkError.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		he *HTTPError
		ne *NetworkError
	)
	if errors.As(err, &he) {
		return he
	}
	if errors.As(err, &ne) {
		return ne
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		if isTransport(st) {
			return &NetworkError{Op: op, Err: err}
		}
		return &HTTPError{Status: httpStatusFromCode(st.Code()), Message: st.Message()}
	}

	return &NetworkError{Op: op, Err: err}
}

// isTransport reports whether st describes a failed exchange rather than a
// backend verdict. Internal errors raised by grpc-go itself, such as a
// response that cannot be unmarshalled, carry the "grpc: " prefix.
func isTransport(st *status.Status) bool {
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return true
	case codes.Internal:
		return strings.HasPrefix(st.Message(), "grpc: ")
	default:
		return false
	}
}

func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
