package flow

import (
	"errors"
	"fmt"
	"net/http"

	"flowline/internal/queue"
)

// Code classifies a flow error for API consumers.
type Code string

const (
	CodeValidation        Code = "validation"
	CodeNotFound          Code = "not_found"
	CodeAlreadyQueued     Code = "already_queued"
	CodeItemInFlight      Code = "item_in_flight"
	CodeInvalidReorderSet Code = "invalid_reorder_set"
	CodeClaimContention   Code = "claim_contention"
	CodeNotInProgress     Code = "not_in_progress"
	CodeQueuePaused       Code = "queue_paused"
	CodeConflict          Code = "conflict"
	CodeInternal          Code = "internal"
)

// Error is the typed failure flow operations return. Message is safe to show
// to API clients; Err keeps the underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a flow error with a preset code.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds a flow error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// validationErrorf is the shorthand for rejecting caller input.
func validationErrorf(format string, args ...any) *Error {
	return Errorf(CodeValidation, format, args...)
}

// CodeOf extracts the classification from any error. Errors that did not
// come out of the flow layer classify as internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code onto the transport status the API contract uses.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyQueued, CodeItemInFlight, CodeInvalidReorderSet, CodeClaimContention, CodeConflict:
		return http.StatusConflict
	case CodeNotInProgress, CodeQueuePaused:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// translate wraps store sentinels in the API taxonomy. Errors that already
// carry a code pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}

	code := CodeInternal
	switch {
	case errors.Is(err, queue.ErrQueueNotFound),
		errors.Is(err, queue.ErrTicketNotFound),
		errors.Is(err, queue.ErrTaskNotFound),
		errors.Is(err, queue.ErrItemNotFound),
		errors.Is(err, queue.ErrNotQueued):
		code = CodeNotFound
	case errors.Is(err, queue.ErrAlreadyQueued):
		code = CodeAlreadyQueued
	case errors.Is(err, queue.ErrItemInFlight):
		code = CodeItemInFlight
	case errors.Is(err, queue.ErrInvalidReorderSet):
		code = CodeInvalidReorderSet
	case errors.Is(err, queue.ErrClaimRace):
		code = CodeClaimContention
	case errors.Is(err, queue.ErrNotInProgress), errors.Is(err, queue.ErrAgentMismatch):
		code = CodeNotInProgress
	case errors.Is(err, queue.ErrQueuePaused):
		code = CodeQueuePaused
	case errors.Is(err, queue.ErrDuplicateName):
		code = CodeConflict
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}
