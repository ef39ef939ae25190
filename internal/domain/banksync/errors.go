package banksync

import (
	"errors"
	"fmt"
)

// ErrCustomerNotFound is the only failure that prevents a sync run from
// producing a Result.
var ErrCustomerNotFound = errors.New("customer not found")

// ReconciliationError describes one sub-tree that could not be fetched or
// persisted. It is collected into Result.Errors and never aborts siblings.
type ReconciliationError struct {
	ConnectionID string
	AccountID    string
	Stage        string
	Err          error
}

func (e *ReconciliationError) Error() string {
	switch {
	case e.ConnectionID == "":
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	case e.AccountID == "":
		return fmt.Sprintf("connection %s: %s: %v", e.ConnectionID, e.Stage, e.Err)
	default:
		return fmt.Sprintf("connection %s account %s: %s: %v", e.ConnectionID, e.AccountID, e.Stage, e.Err)
	}
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// CommitError means the run's writes were rolled back as a whole.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to commit sync: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
