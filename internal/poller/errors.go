package poller

import "errors"

var (
	ErrInvalidInterval = errors.New("poll interval must be positive")
)
