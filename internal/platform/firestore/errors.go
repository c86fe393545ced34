package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/menuboard/api/internal/repositories"
)

// WrapError maps gRPC status codes onto repository error categories. Context
// cancellation passes through untouched.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var existing *repositories.Error
	if errors.As(err, &existing) {
		return err
	}

	e := &repositories.Error{Op: op, Err: err}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.NotFound:
		e.NotFound = true
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		e.Conflict = true
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		e.Unavailable = true
	}
	return e
}
