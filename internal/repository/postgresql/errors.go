package postgresql

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict means the row exists but its status moved away from the
	// expected value between read and write.
	ErrStatusConflict = errors.New("status changed concurrently")
)

// mapPostgresError annotates the driver errors the job and role queries can
// hit; anything else passes through unchanged.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case pgErr.Code == pgerrcode.InvalidTextRepresentation:
		// malformed uuid reaching the driver
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
	case pgErr.Code == pgerrcode.CheckViolation:
		return fmt.Errorf("job row rejected by %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.IsConnectionException(pgErr.Code):
		return fmt.Errorf("database connection lost: %w", err)
	default:
		return fmt.Errorf("postgres %s: %w", pgErr.Code, err)
	}
}
