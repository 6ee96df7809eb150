package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain error taxonomy. Planning errors abort a whole run; ledger errors
// abort only the failing primitive call; state machine errors force the
// caller to re-read and retry. All of these are matched with errors.As at the
// HTTP edge — never string-compared.

// CyclicBomError means a component reappeared on its own expansion path.
// Explosion aborts with no partial output rather than looping.
type CyclicBomError struct {
	ItemID uuid.UUID
	Path   []uuid.UUID
}

func (e *CyclicBomError) Error() string {
	return fmt.Sprintf("cyclic BOM: item %s appears on its own expansion path (depth %d)", e.ItemID, len(e.Path))
}

// MissingBomError means an item flagged as assembled has no active BOM.
type MissingBomError struct {
	ItemID uuid.UUID
}

func (e *MissingBomError) Error() string {
	return fmt.Sprintf("item %s is assembled but has no active BOM", e.ItemID)
}

// InsufficientStockError is returned by Reserve when available stock cannot
// cover the full request. Reservations are all-or-nothing; there is no
// partial reserve.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %s, available %s",
		e.ItemID, e.Requested, e.Available)
}

// AlreadyConsumedError guards against double consumption / double free of a
// reservation handle: the second Consume or a Release after Consume fails
// with stock unchanged.
type AlreadyConsumedError struct {
	ReservationID uuid.UUID
}

func (e *AlreadyConsumedError) Error() string {
	return fmt.Sprintf("reservation %s already consumed", e.ReservationID)
}

// AlreadyReleasedError is the release-side counterpart.
type AlreadyReleasedError struct {
	ReservationID uuid.UUID
}

func (e *AlreadyReleasedError) Error() string {
	return fmt.Sprintf("reservation %s already released", e.ReservationID)
}

// InvariantViolationError means a primitive would have produced a negative
// quantity or allocated > on_hand. The call is rejected with no partial state
// change; this is always a bug upstream, never silently coerced.
type InvariantViolationError struct {
	ItemID uuid.UUID
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("stock invariant violated for item %s: %s", e.ItemID, e.Detail)
}

// StaleStateError means the order's status changed between read and
// transition. The caller must re-read and decide again; transitions never
// race to overwrite.
type StaleStateError struct {
	OrderID  uuid.UUID
	Expected string
	Observed string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("production order %s: expected status %q, found %q", e.OrderID, e.Expected, e.Observed)
}

// InvalidTransitionError means the requested transition is not legal from
// the order's current state (as opposed to a race, which is StaleStateError).
type InvalidTransitionError struct {
	OrderID uuid.UUID
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("production order %s: illegal transition %s → %s", e.OrderID, e.From, e.To)
}
