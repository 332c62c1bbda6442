package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidData       = fmt.Errorf("invalid data provided")
	ErrAlreadyExists     = fmt.Errorf("already exists")
	ErrInvalidTransition = fmt.Errorf("status transition not allowed")
	ErrBudgetExceeded    = fmt.Errorf("budget would be exceeded")
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgErrorCode(err) == uniqueViolation }

func isCheckViolation(err error) bool { return pgErrorCode(err) == checkViolation }
