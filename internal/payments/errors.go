package payments

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	ErrPaymentNotFound      = fmt.Errorf("payment %w", ErrNotFound)
	ErrDetailNotFound       = fmt.Errorf("payment detail %w", ErrNotFound)
	ErrCancellationNotFound = fmt.Errorf("cancellation %w", ErrNotFound)

	// Non-owners see the same answer as a missing payment
	ErrNotOwner = fmt.Errorf("payment owned by another user: %w", ErrNotFound)

	ErrAlreadyCancelled       = errors.New("payment already fully cancelled")
	ErrDetailAlreadyCancelled = errors.New("payment detail already cancelled")
	ErrInsufficientRemaining  = errors.New("cancel amount exceeds remaining balance")
	ErrInvalidTransition      = errors.New("invalid payment state transition")
	ErrAlreadyApproved        = errors.New("transaction already recorded")
	ErrConcurrentModification = errors.New("payment was modified concurrently")
	ErrHeaderBusy             = errors.New("payment is being modified by another request")

	// The provider confirmed a charge the ledger cannot record as is
	ErrInvalidGatewayAmount = errors.New("provider approved without a payable amount")
	ErrAmountMismatch       = errors.New("approved amount does not match current seat prices")

	ErrEmptySeatList   = errors.New("at least one seat is required")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
