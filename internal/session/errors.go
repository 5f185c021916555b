package session

import "errors"

// Validation errors, raised before any remote call
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidTransition    = errors.New("session cannot move to that status")
	ErrSessionTrashed       = errors.New("a session in the trash cannot be started or stopped")
	ErrNotTrashed           = errors.New("only sessions in the trash can be restored or deleted permanently")
	ErrConfirmationRequired = errors.New("permanent deletion must be confirmed")
)
