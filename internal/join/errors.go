package join

import "errors"

var (
	ErrEmailVerificationRequired = errors.New("this session requires email verification")
	ErrWrongEntryMode            = errors.New("session does not use this entry mode")
	ErrNoTokenIssued             = errors.New("server issued no token")
	ErrNoTimerModule             = errors.New("session has no timer module")
)
