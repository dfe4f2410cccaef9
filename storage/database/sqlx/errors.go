package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/techjoejoe/leadergrid/core/checkin"
	"github.com/techjoejoe/leadergrid/core/session"
)

// trapNoRowsErr maps psql "no rows" err to session.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return session.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapWriteErr maps transient storage failures to checkin.ErrStorageConflict
// so callers know the whole call is safe to retry with backoff.
func trapWriteErr(err error, msg string) error {
	if isTransient(err) {
		return errors.Wrap(checkin.ErrStorageConflict, err.Error())
	}
	return errors.Wrap(err, msg)
}

func isTransient(err error) bool {
	if err == context.DeadlineExceeded || err == context.Canceled {
		return true
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		code := string(pqErr.Code)
		// connection failures, serialization failures, resource exhaustion,
		// operator intervention
		for _, class := range []string{"08", "40", "53", "57"} {
			if strings.HasPrefix(code, class) {
				return true
			}
		}
	}
	return false
}
