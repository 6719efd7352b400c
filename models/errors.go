package models

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Failure taxonomy shared by every operation in this package. Callers branch
// on these; the HTTP layer maps them to status codes.
var (
	ErrAlreadyCancelled = errors.New("order is already cancelled")
	ErrNotDeletable     = errors.New("record cannot be deleted")
	ErrConflict         = errors.New("conflicting concurrent update")
)

// MySQL error numbers for lock-wait timeout and deadlock victim.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// wrapConflict turns driver-level lock contention into ErrConflict so the
// caller sees a retryable failure instead of an opaque database error. Every
// other error passes through unchanged.
func wrapConflict(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) &&
		(myErr.Number == mysqlErrLockWaitTimeout || myErr.Number == mysqlErrDeadlock) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StockInsufficientError reports the first product that could not cover the
// requested quantity. Nothing has been debited when it is returned.
type StockInsufficientError struct {
	ProductId   int
	Designation string
	Available   int
	Requested   int
}

func (e *StockInsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (product %d): available %d, requested %d",
		e.Designation, e.ProductId, e.Available, e.Requested)
}

type NotFoundError struct {
	Resource string
	Id       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.Id)
}
