package services

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service matches exactly one of these
// with errors.Is; handlers map them onto HTTP status codes.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("store error")
)

// Error is a service failure with a kind, a stable code for clients and a
// human-readable message.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Is lets a wrapped copy of a sentinel match the sentinel itself.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Kind == e.Kind
}

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrSelfRequest           = newError(ErrValidation, "self_request", "cannot send a friend request to yourself")
	ErrAlreadyFriends        = newError(ErrConflict, "already_friends", "you are already friends with this user")
	ErrDuplicateRequest      = newError(ErrConflict, "duplicate_request", "a friend request to this user is already pending")
	ErrInboundRequestPending = newError(ErrConflict, "inbound_request_pending", "this user has already sent you a friend request; respond to it instead")
	ErrRequestNotFound       = newError(ErrNotFound, "request_not_found", "no pending friend request found")
	ErrUserNotFound          = newError(ErrNotFound, "user_not_found", "user not found")
	ErrInvalidTimezone       = newError(ErrValidation, "invalid_timezone", "timezone is not a valid IANA zone name")
	ErrInvalidActivityType   = newError(ErrValidation, "invalid_activity_type", "activity type must be lowercase letters, digits, '-' or '_' (max 32)")
	ErrInvalidAmount         = newError(ErrValidation, "invalid_amount", "amount must be a positive number")
	ErrInvalidInput          = newError(ErrValidation, "invalid_input", "invalid input")
	ErrUsernameTaken         = newError(ErrConflict, "username_taken", "username is already taken")
	ErrUserExists            = newError(ErrConflict, "user_exists", "user already exists")
	ErrWaitlistDuplicate     = newError(ErrConflict, "waitlist_duplicate", "email already registered in waitlist")
	ErrWaitlistEntryNotFound = newError(ErrNotFound, "waitlist_entry_not_found", "waitlist entry not found")
	ErrGoalNotFound          = newError(ErrNotFound, "goal_not_found", "goal not found")
	ErrRoutineNotFound       = newError(ErrNotFound, "routine_not_found", "routine not found")
	ErrUnknownRoutine        = newError(ErrValidation, "unknown_routine", "schedule references a routine that does not exist")
	ErrNotFoundGeneric       = newError(ErrNotFound, "not_found", "not found")
)

// invalid returns a validation error carrying a specific message.
func invalid(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Code: ErrInvalidInput.Code, Message: fmt.Sprintf(format, args...)}
}

// storeErr wraps a document store failure.
func storeErr(op string, err error) error {
	return &Error{Kind: ErrStore, Code: "store_error", Message: op, Err: err}
}
