package postgres

import (
	"database/sql"
	"errors"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}

// mapError converts driver errors into the application error taxonomy
func mapError(err error, entity string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ierr.WithError(err).
			WithHintf("%s not found", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	case isUniqueViolation(err):
		return ierr.WithError(err).
			WithHintf("%s already exists", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	default:
		return ierr.WithError(err).
			WithHintf("Failed to access %s", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrDatabase)
	}
}

func requireTx(tx bool, op string) error {
	if tx {
		return nil
	}
	return ierr.NewError(op + " requires a transaction").
		WithHint("Operation must run inside a transaction").
		Mark(ierr.ErrSystem)
}
