package claimstore

import (
	"fmt"
	"sort"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// SystemRequester is the requester identity used for administrative removals.
// A removal issued by the SystemRequester skips the ownership check.
const SystemRequester = ""

// ClaimRecord is the persisted binding of a map location to its owner.
// Records are never mutated in place, a change of owner is a Remove followed by an Add.
type ClaimRecord struct {
	Location int    `json:"location"`
	Owner    string `json:"owner"`
}

// IClaimStore is the interface of the durable claim store.
// At most one record exists per location. Add and Remove are each a single
// atomic step per location and are durable once they return without error.
type IClaimStore interface {
	// Exists reports whether a claim exists for the location.
	Exists(location int) (bool, error)
	// Add inserts a claim. It returns ErrConflict if the location is already claimed.
	Add(location int, owner string) error
	// Remove deletes the claim at location. It returns ErrNotFound if no claim exists and
	// ErrUnauthorized if requester is neither the owner nor the SystemRequester.
	Remove(location int, requester string) error
	// FindByLocation returns the claim at location. The boolean indicates whether a claim was found.
	FindByLocation(location int) (ClaimRecord, bool, error)
	// FindByOwner returns the claim of owner with the lowest location.
	FindByOwner(owner string) (ClaimRecord, bool, error)
	// ListAll returns all claims ordered by location.
	ListAll() ([]ClaimRecord, error)
	// ListByOwner returns all claims of owner ordered by location.
	ListByOwner(owner string) ([]ClaimRecord, error)
	// Close releases all resources held by the store.
	Close() error
}

// SortRecords orders records by location in place.
func SortRecords(records []ClaimRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Location < records[j].Location })
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ClaimStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same return code.
// This allows errors.Is(err, claimstore.ErrConflict) regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new ClaimStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Sentinel errors, to be used with errors.Is
var (
	ErrConflict     = &Error{Code: RetCConflict, Msg: "location already claimed"}
	ErrNotFound     = &Error{Code: RetCNotFound, Msg: "no claim at location"}
	ErrUnauthorized = &Error{Code: RetCUnauthorized, Msg: "requester does not own the claim"}
)

// NewConflictError returns an ErrConflict for the location.
func NewConflictError(location int) error {
	return NewError(RetCConflict, fmt.Sprintf("location %d is already claimed", location))
}

// NewNotFoundError returns an ErrNotFound for the location.
func NewNotFoundError(location int) error {
	return NewError(RetCNotFound, fmt.Sprintf("no claim at location %d", location))
}

// NewUnauthorizedError returns an ErrUnauthorized for the location and requester.
func NewUnauthorizedError(location int, requester string) error {
	return NewError(RetCUnauthorized, fmt.Sprintf("%q does not own the claim at location %d", requester, location))
}

// CheckRemove validates a removal of existing (found reports whether a claim exists)
// by requester. All backends use it so the rules are the same everywhere.
func CheckRemove(location int, existing ClaimRecord, found bool, requester string) error {
	if !found {
		return NewNotFoundError(location)
	}
	if requester != SystemRequester && requester != existing.Owner {
		return NewUnauthorizedError(location, requester)
	}
	return nil
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation.
	RetCConflict                        // 3: The location is already claimed.
	RetCNotFound                        // 4: No claim exists at the location.
	RetCUnauthorized                    // 5: The requester does not own the claim.
)

// String returns the name of the return code
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConflict:
		return "Conflict"
	case RetCNotFound:
		return "NotFound"
	case RetCUnauthorized:
		return "Unauthorized"
	default:
		return "Unknown"
	}
}
