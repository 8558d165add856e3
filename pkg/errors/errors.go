package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pawdesk/scheduling-api/internal/model"
)

// Kind classifies an error as one of the expected, recoverable-by-the-caller
// outcomes of a scheduling operation.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindBookingConflict   Kind = "BOOKING_CONFLICT"
	KindSlotConflict      Kind = "SLOT_CONFLICT"
	KindInvalidTransition Kind = "INVALID_STATUS_TRANSITION"
	KindMissingReason     Kind = "MISSING_REASON"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Kind      Kind             `json:"kind"`
	Message   string           `json:"message"`
	Conflicts []model.Conflict `json:"conflicts,omitempty"`
	Err       error            `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to an HTTP status. The error middleware
// looks for this method.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindMissingReason:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBookingConflict, KindSlotConflict, KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NotFound(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func BookingConflict(conflicts []model.Conflict) *AppError {
	return &AppError{
		Kind:      KindBookingConflict,
		Message:   "requested slot conflicts with existing commitments",
		Conflicts: conflicts,
	}
}

func SlotConflict(conflicts []model.Conflict) *AppError {
	return &AppError{
		Kind:      KindSlotConflict,
		Message:   "hold could not be placed, slot is taken",
		Conflicts: conflicts,
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot transition appointment from %s to %s", from, to),
	}
}

func MissingReason(status string) *AppError {
	return &AppError{
		Kind:    KindMissingReason,
		Message: fmt.Sprintf("a reason is required when marking an appointment %s", status),
	}
}

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf extracts the Kind from err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
