// Package apperr is the error taxonomy shared by the coordinator and the transports.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the status class of an error
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindBadRequest
)

// Code is a machine-readable error code
type Code string

const (
	CodeInternal     Code = "INTERNAL"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeBadRequest   Code = "BAD_REQUEST"

	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"

	CodeNotParticipant Code = "NOT_PARTICIPANT"
	CodeNotCreator     Code = "NOT_CREATOR"
	CodeNotTarget      Code = "NOT_TARGET"
	CodeNotDetector    Code = "NOT_DETECTOR"

	CodeSessionExists          Code = "SESSION_EXISTS"
	CodeRoomFull               Code = "ROOM_FULL"
	CodeNotEnoughPlayers       Code = "NOT_ENOUGH_PLAYERS"
	CodeRolesAlreadyAssigned   Code = "ROLES_ALREADY_ASSIGNED"
	CodeWrongState             Code = "WRONG_STATE"
	CodePersonaAlreadyActive   Code = "PERSONA_ALREADY_ACTIVE"
	CodePersonaNotActive       Code = "PERSONA_NOT_ACTIVE"
	CodePersonaBudgetExhausted Code = "PERSONA_BUDGET_EXHAUSTED"
	CodeGuessAlreadyUsed       Code = "GUESS_ALREADY_USED"
	CodeContention             Code = "CONTENTION"
	CodeCodeUnavailable        Code = "CODE_UNAVAILABLE"
	CodeGuestsDisabled         Code = "GUESTS_DISABLED"
)

// Error is the domain error type
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, CodeUnauthorized, message)
}

func Forbidden(code Code, message string) *Error {
	return New(KindForbidden, code, message)
}

func NotFound(code Code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Conflict(code Code, message string) *Error {
	return New(KindConflict, code, message)
}

func BadRequest(message string) *Error {
	return New(KindBadRequest, CodeBadRequest, message)
}

// Internal wraps a store or infrastructure failure
func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, CodeInternal, message, cause)
}

// As returns the *Error in err's chain, if any
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err; errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, or CodeInternal
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a kind to its HTTP status
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
