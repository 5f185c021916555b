package types

import "errors"

// ARCHITECTURAL DISCOVERY: Validation errors are raised before any remote call
// and their text is shown to the user as-is
var (
	ErrInvalidSessionName       = errors.New("session name must be 1-200 characters")
	ErrInvalidWorkspaceID       = errors.New("workspace id must be positive")
	ErrInvalidPasscode          = errors.New("passcode must be 4-12 letters or digits")
	ErrInvalidEmail             = errors.New("a valid email address is required")
	ErrInvalidCode              = errors.New("verification code must be 4-8 digits")
	ErrInvalidEntryMode         = errors.New("unknown participant entry mode")
	ErrInvalidStatus            = errors.New("unknown status")
	ErrEmptyMessage             = errors.New("message cannot be empty")
	ErrMessageTooLong           = errors.New("message must be at most 2000 characters")
	ErrGuestTokenRequired       = errors.New("Guest token is required")
	ErrParticipantTokenRequired = errors.New("Participant token is required")
	ErrUserTokenRequired        = errors.New("User token is required")
)
