package checkin

import "github.com/pkg/errors"

var (
	// ErrMalformedToken means the token payload cannot be parsed into the
	// required fields or its signature does not verify. Caller defect; the
	// engine never retries it.
	ErrMalformedToken = errors.New("malformed session token")

	// ErrUnknownSession means the session embedded in the token is not known
	// to the registry.
	ErrUnknownSession = errors.New("unknown session")

	// ErrSessionClosed is terminal for a submission: the session has been
	// closed or expired, or the token does not belong to the target session.
	ErrSessionClosed = errors.New("session closed")

	// ErrStorageConflict means the create-if-absent primitive was unavailable
	// or timed out. The whole record call is idempotent by construction and
	// safe to retry with backoff.
	ErrStorageConflict = errors.New("storage conflict")
)

// CreditError reports a partial success: the attendance record was durably
// created but the points credit failed. The record stands (attendance is
// truthful); only the credit step may be retried, using the same idempotency
// key, never the record creation.
type CreditError struct {
	Record AttendanceRecord
	Err    error
}

func (e *CreditError) Error() string {
	return "crediting points for " + e.Record.ParticipantID + ": " + e.Err.Error()
}

func (e *CreditError) Unwrap() error { return e.Err }
