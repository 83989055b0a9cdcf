package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound        = errors.New("table not found")
	ErrTableUnavailable     = errors.New("table is out of service")
	ErrNoActiveOrder        = errors.New("no active order for table")
	ErrItemAlreadySent      = errors.New("line item already sent to kitchen")
	ErrOrderClosed          = errors.New("order closed, bill already requested")
	ErrNothingToSend        = errors.New("no unsent line items")
	ErrFinalizationRejected = errors.New("sale finalization rejected")
	ErrPersistenceFailure   = errors.New("snapshot persistence failed")
	ErrNoActivePrinters     = errors.New("no active printer destinations")
)

// InvalidTransitionError is returned by the state machine for any combination
// not present in the transition table.
type InvalidTransitionError struct {
	State TableState
	Event TableEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: state %q does not accept event %q", e.State, e.Event)
}

// RevisionConflictError means another writer mutated the order after the caller
// read it. The caller is expected to re-fetch and retry.
type RevisionConflictError struct {
	TableID  int64
	Expected uint64
	Actual   uint64
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("revision conflict on table %d: expected %d, stored %d", e.TableID, e.Expected, e.Actual)
}
