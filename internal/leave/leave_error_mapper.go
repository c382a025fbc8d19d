package leave

import (
	"errors"

	leaveerrors "go-hris-leave/internal/leave/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgForeignKeyViolation = "23503"
	pgExclusionViolation  = "23P01"

	overlapConstraint = "ex_leaves_active_period"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leaveerrors.ErrLeaveNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == overlapConstraint:
			return leaveerrors.ErrLeaveOverlap
		case pgErr.Code == pgForeignKeyViolation:
			return leaveerrors.ErrEmployeeNotFound
		}
	}
	return err
}
