// ABOUTME: Typed validation errors for trade preconditions
// ABOUTME: Each code maps to a user-facing explanation

package trade

import (
	"errors"
	"fmt"
)

// Code identifies which precondition rejected a trade.
type Code string

const (
	CodeNoOwnItem         Code = "NO_OWN_ITEM"
	CodeItemUnavailable   Code = "ITEM_UNAVAILABLE"
	CodeSameItem          Code = "SAME_ITEM"
	CodeSameOwner         Code = "SAME_OWNER"
	CodeInsufficientValue Code = "INSUFFICIENT_VALUE"
	CodeAlreadyTraded     Code = "ALREADY_TRADED"
)

// Error is a trade validation failure. It is always safe to show to the participant.
type Error struct {
	Code Code

	// ItemName names the item the ALREADY_TRADED check tripped on.
	ItemName string
	// Requester is true when the requester is the one who previously owned ItemName's counterpart.
	Requester bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("trade rejected: %s", e.Code)
}

// Message returns the text shown to the participant.
func (e *Error) Message() string {
	switch e.Code {
	case CodeNoOwnItem:
		return "❌Sorry, you have no item to trade-in with others yet, please update you item first!"
	case CodeItemUnavailable:
		return "❌Sorry, that item is not available anymore!"
	case CodeSameItem:
		return "❌Sorry, the item for trade is the same"
	case CodeSameOwner:
		return "❌Sorry, both items have the same owner"
	case CodeInsufficientValue:
		return "❌Sorry, your item has lower value."
	case CodeAlreadyTraded:
		if e.Requester {
			return fmt.Sprintf("❌Sorry, that %s was already preowned by you and can't be trade-in again", e.ItemName)
		}
		return fmt.Sprintf("❌Sorry, Your item %s was already preowned by that person and can't be trade-in again", e.ItemName)
	default:
		return "❌Sorry, the trade-in could not be completed"
	}
}

// CodeOf returns the validation code carried by err, or "" when err is not a trade.Error.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func reject(code Code) *Error {
	return &Error{Code: code}
}
