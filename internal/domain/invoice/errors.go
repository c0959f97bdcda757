package invoice

import "github.com/invoicing/backend/internal/domain/shared"

var (
	// ErrUnknownFrequency is returned when a recurring invoice carries a frequency the engine cannot advance
	ErrUnknownFrequency = shared.NewDomainError("UNKNOWN_FREQUENCY", "Unrecognized recurrence frequency")

	// ErrInvalidStatusTransition is returned for status changes outside the invoice state machine
	ErrInvalidStatusTransition = shared.NewDomainError("INVALID_STATUS_TRANSITION", "Invalid status transition")

	// ErrAlreadyCanceled is returned when canceling an invoice that is already canceled
	ErrAlreadyCanceled = shared.NewDomainError("ALREADY_CANCELED", "Invoice is already canceled")

	// ErrNotRecurring is returned for recurrence operations on a one-off invoice
	ErrNotRecurring = shared.NewDomainError("NOT_RECURRING", "Invoice is not recurring")

	// ErrLastGeneratedRegression guards the monotonicity of LastGeneratedOn
	ErrLastGeneratedRegression = shared.NewDomainError("LAST_GENERATED_REGRESSION", "Last generated date cannot move backwards")
)
