// Package storeerr classifies driver errors from PostgreSQL and SQLite into the
// store failures the services report.
package storeerr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/claims-management/internal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || pgCode(err) == pgUniqueViolation {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || pgCode(err) == pgForeignKeyViolation {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Translate maps err to a store AppError. Errors that already are AppErrors pass
// through; constraint violations get the generic duplicate/missing codes.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	switch {
	case IsUniqueViolation(err):
		return apperrors.ErrDuplicateRecord.WithCause(err)
	case IsForeignKeyViolation(err):
		return apperrors.ErrMissingRecord.WithCause(err)
	default:
		return apperrors.ErrStoreFailure.WithCause(err)
	}
}
