package database

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTransient marks a store failure as retryable by the caller. The
// retrieval core itself never retries; it only classifies. Check with:
//
//	if errors.Is(err, database.ErrTransient) { ... }
var ErrTransient = errors.New("transient store error")

// Classify wraps err with ErrTransient when it looks like a connectivity or
// timeout problem rather than a logic error. Permanent errors pass through
// unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// isTransient reports whether err is a connectivity/timeout failure.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsConnectionException(pgErr.Code):
			return true
		case pgerrcode.IsOperatorIntervention(pgErr.Code):
			// Server shutdown, crash recovery, cannot-connect-now.
			return true
		case pgErr.Code == pgerrcode.QueryCanceled:
			return true
		case pgErr.Code == pgerrcode.LockNotAvailable,
			pgErr.Code == pgerrcode.DeadlockDetected,
			pgErr.Code == pgerrcode.SerializationFailure:
			return true
		}
	}

	return pgconn.SafeToRetry(err)
}
