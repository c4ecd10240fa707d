package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateQueryCanceled   = "57014"
	sqlStateUndefinedTable  = "42P01"
	sqlStateUndefinedColumn = "42703"
)

// SQLState extracts the Postgres error code from either driver's error type.
func SQLState(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsTimeout reports whether err came from a cancelled context or a statement timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return SQLState(err) == sqlStateQueryCanceled
}

// IsSchemaError reports whether err points at a missing table or column.
func IsSchemaError(err error) bool {
	switch SQLState(err) {
	case sqlStateUndefinedTable, sqlStateUndefinedColumn:
		return true
	}
	return false
}
