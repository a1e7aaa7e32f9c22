package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStorageUnavailable means the store is closed or its distance function
	// is missing from the connection.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSearchFailure means a similarity query could not be executed.
	ErrSearchFailure = errors.New("similarity search failed")
	// ErrLinkNotFound means an embedding row has no owning turn.
	ErrLinkNotFound = errors.New("embedding link not found")
	// ErrDimensionMismatch means a vector does not have the table's dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidIdentifier means a table, column or field name was rejected.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

func unavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "no such function: "+distanceFunction)
}

// wrapErr annotates a driver error with the operation, tagging it as
// ErrStorageUnavailable when the store itself is gone.
func wrapErr(op string, err error) error {
	if unavailable(err) {
		return fmt.Errorf("%w: failed to %s: %w", ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
