package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/syntrixbase/pager/pkg/model"
)

// WithTimeout bounds a single store round-trip. A zero timeout only adds cancellation.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// ClassifyError maps a backend error to the model taxonomy. parent is the
// caller's context: if it is done the caller gave up and ErrCanceled is returned;
// otherwise deadline and network timeouts become ErrStoreTimeout.
func ClassifyError(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return model.ErrCanceled
	}
	if IsTimeout(err) {
		return fmt.Errorf("%w: %v", model.ErrStoreTimeout, err)
	}
	return err
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, model.ErrStoreTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ProcedureFailure wraps a procedure error, marking timeouts, unless the caller canceled.
func ProcedureFailure(parent context.Context, spec ProcedureSpec, err error) error {
	if parent.Err() != nil {
		return model.ErrCanceled
	}
	return &model.ProcedureError{Procedure: spec.Name(), Timeout: IsTimeout(err), Err: err}
}
