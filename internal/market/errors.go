package market

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service for a rejected request
// matches exactly one of these with errors.Is; anything else is an internal
// failure.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrForbidden            = errors.New("forbidden")
	ErrSubscriptionInactive = errors.New("subscription inactive. Please subscribe to access this feature")
	ErrSubscriptionExpired  = errors.New("subscription expired. Please renew to continue")
	ErrTooFar               = errors.New("collector too far from item")
	ErrValidation           = errors.New("validation failed")
)

// Error is a rejection of a specific kind with a user-facing message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func validationError(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

var (
	ErrUserNotFound      = newError(ErrNotFound, "user not found")
	ErrCollectorNotFound = newError(ErrNotFound, "collector not found")
	ErrSellerNotFound    = newError(ErrNotFound, "seller not found")
	ErrItemNotFound      = newError(ErrNotFound, "item not found")

	ErrItemNotPending  = newError(ErrInvalidState, "item is not available for acceptance")
	ErrItemNotAccepted = newError(ErrInvalidState, "item must be accepted before completion")
	ErrCannotCancel    = newError(ErrInvalidState, "can only cancel pending items")

	ErrWrongCollector = newError(ErrForbidden, "only the assigned collector can complete this item")
	ErrNotItemOwner   = newError(ErrForbidden, "only the seller who listed this item can change it")

	ErrNotCollector             = newError(ErrValidation, "user is not a collector")
	ErrNotSeller                = newError(ErrValidation, "user is not a seller")
	ErrCollectorLocationMissing = newError(ErrValidation, "collector location not set")
	ErrItemLocationMissing      = newError(ErrValidation, "item location not set")
)

// MaxAcceptDistanceKm is the hard limit on how far a collector may be from an
// item to accept it, independent of the collector's search radius.
const MaxAcceptDistanceKm = 10.0

// TooFarError rejects an acceptance attempted from beyond MaxAcceptDistanceKm.
type TooFarError struct {
	DistanceKm float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("collector is %.2f km away; must be within %g km to accept this item", e.DistanceKm, MaxAcceptDistanceKm)
}

func (e *TooFarError) Unwrap() error { return ErrTooFar }
