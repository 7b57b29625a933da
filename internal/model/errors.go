package model

import (
	"errors"
	"fmt"
)

var (
	// User related errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicate          = errors.New("duplicate entry")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// TokenErrorReason tells why a bearer token was refused.
type TokenErrorReason string

const (
	TokenMalformed        TokenErrorReason = "malformed"
	TokenSignatureInvalid TokenErrorReason = "signature_invalid"
	TokenExpired          TokenErrorReason = "expired"
	TokenWrongKind        TokenErrorReason = "wrong_kind"
)

type TokenError struct {
	Reason TokenErrorReason
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Reason, e.Err)
	}
	return "token " + string(e.Reason)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is matches any *TokenError with the same reason; a target without a reason matches every token error.
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrToken                 = &TokenError{}
	ErrTokenMalformed        = &TokenError{Reason: TokenMalformed}
	ErrTokenSignatureInvalid = &TokenError{Reason: TokenSignatureInvalid}
	ErrTokenExpired          = &TokenError{Reason: TokenExpired}
	ErrTokenWrongKind        = &TokenError{Reason: TokenWrongKind}
)

// Resource names used by NotFoundError.
type Resource string

const (
	ResourceBook        Resource = "book"
	ResourceUser        Resource = "user"
	ResourceTransaction Resource = "transaction"
)

type NotFoundError struct {
	Resource Resource
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found with id: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return t.Resource == "" || t.Resource == e.Resource
}

func NotFound(resource Resource, id any) error {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

var (
	ErrNotFound            = &NotFoundError{}
	ErrBookNotFound        = &NotFoundError{Resource: ResourceBook}
	ErrUserNotFound        = &NotFoundError{Resource: ResourceUser}
	ErrTransactionNotFound = &NotFoundError{Resource: ResourceTransaction}
)

type ConflictReason string

const (
	ConflictBookUnavailable ConflictReason = "book_unavailable"
	ConflictAlreadyReturned ConflictReason = "already_returned"
	ConflictBookBorrowed    ConflictReason = "book_borrowed"
	ConflictOpenLoans       ConflictReason = "open_loans"
)

type ConflictError struct {
	Reason  ConflictReason
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict: " + string(e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	t, ok := target.(*ConflictError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrConflict        = &ConflictError{}
	ErrBookUnavailable = &ConflictError{Reason: ConflictBookUnavailable}
	ErrAlreadyReturned = &ConflictError{Reason: ConflictAlreadyReturned}
	ErrBookBorrowed    = &ConflictError{Reason: ConflictBookBorrowed}
	ErrOpenLoans       = &ConflictError{Reason: ConflictOpenLoans}
)

type AuthorizationReason string

const (
	Unauthenticated  AuthorizationReason = "unauthenticated"
	InsufficientRole AuthorizationReason = "insufficient_role"
)

type AuthorizationError struct {
	Reason AuthorizationReason
}

func (e *AuthorizationError) Error() string {
	if e.Reason == InsufficientRole {
		return "insufficient permissions"
	}
	return "authentication required"
}

func (e *AuthorizationError) Is(target error) bool {
	t, ok := target.(*AuthorizationError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrUnauthenticated  = &AuthorizationError{Reason: Unauthenticated}
	ErrInsufficientRole = &AuthorizationError{Reason: InsufficientRole}
)
