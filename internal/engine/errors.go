package engine

import (
	"errors"
	"fmt"
)

// RejectKind is the machine-readable classification of an order
// rejection. All kinds are non-retryable: the caller must correct the
// order (or authenticate) before resubmitting.
type RejectKind string

const (
	KindInvalidOrder        RejectKind = "invalid_order"
	KindInvalidSymbol       RejectKind = "invalid_symbol"
	KindBelowMinimum        RejectKind = "below_minimum"
	KindInsufficientHolding RejectKind = "insufficient_holding_balance"
	KindInsufficientCash    RejectKind = "insufficient_cash_balance"
	KindPositionLimit       RejectKind = "position_limit_exceeded"
	KindNotAuthenticated    RejectKind = "user_not_authenticated"
)

// Rejection is a validation failure raised at the point of the failing
// check. It carries both a machine-readable kind and a user-facing
// message; the caller decides how to surface it.
type Rejection struct {
	Kind        RejectKind
	Message     string // diagnostic, for logs
	UserMessage string // safe to show in the app
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("order rejected (%s): %s", r.Kind, r.Message)
}

func reject(kind RejectKind, userMsg, format string, args ...any) *Rejection {
	return &Rejection{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		UserMessage: userMsg,
	}
}

// NotAuthenticated is the rejection for requests with no user session.
// Raised by callers above the executor; defined here to keep the error
// taxonomy in one place.
func NotAuthenticated() *Rejection {
	return reject(KindNotAuthenticated,
		"Please sign in to trade.",
		"no active user session")
}

// AsRejection returns the Rejection inside err, or nil.
func AsRejection(err error) *Rejection {
	var r *Rejection
	if errors.As(err, &r) {
		return r
	}
	return nil
}
