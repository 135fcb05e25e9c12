package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/signalscope/internal/domain"
)

// IsUniqueViolation reports whether err is a uniqueness constraint failure.
// Both sqlite drivers in use report it with the same message.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ClassifyError maps driver errors onto the domain taxonomy.
func ClassifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrPersistenceConflict, err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, context.DeadlineExceeded),
		strings.Contains(err.Error(), "database is locked"),
		strings.Contains(err.Error(), "unable to open database"):
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	default:
		return err
	}
}
