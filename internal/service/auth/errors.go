package auth

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/tix-bus/internal/domain"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidAccount     = errors.New("invalid account data")
	ErrAccountNotFound    = errors.New("account not found")
)

// Error gives the package sentinels a kind for the transport layer.
type Error struct {
	err  error
	kind domain.ErrorKind
	code string
}

func (e Error) Error() string           { return e.err.Error() }
func (e Error) Unwrap() error           { return e.err }
func (e Error) Kind() domain.ErrorKind  { return e.kind }
func (e Error) Code() string            { return e.code }
func (e Error) Details() map[string]any { return nil }

func emailTaken() error {
	return Error{err: ErrEmailTaken, kind: domain.KindConflict, code: "EmailTaken"}
}

func invalidCredentials() error {
	return Error{err: ErrInvalidCredentials, kind: domain.KindUnauthorized, code: "InvalidCredentials"}
}

func invalidToken() error {
	return Error{err: ErrInvalidToken, kind: domain.KindUnauthorized, code: "InvalidToken"}
}

func invalidAccount(reason string) error {
	return Error{
		err:  fmt.Errorf("%w: %s", ErrInvalidAccount, reason),
		kind: domain.KindValidation,
		code: "ValidationError",
	}
}

func accountNotFound() error {
	return Error{err: ErrAccountNotFound, kind: domain.KindNotFound, code: "AccountNotFound"}
}
