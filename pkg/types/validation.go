package types

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
var (
	passcodeRegex = regexp.MustCompile(`^[A-Za-z0-9]{4,12}$`)
	codeRegex     = regexp.MustCompile(`^[0-9]{4,8}$`)
)

// ValidateSessionName checks a name before a session is created
func ValidateSessionName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < 1 || n > 200 {
		return ErrInvalidSessionName
	}
	return nil
}

// NormalizePasscode trims and upper-cases a passcode typed or scanned by a participant
func NormalizePasscode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidPasscode reports whether a normalized passcode has an acceptable shape
func IsValidPasscode(code string) bool {
	return passcodeRegex.MatchString(code)
}

// ValidateEmail accepts a bare address only, no display name
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateVerificationCode checks an email verification code
func ValidateVerificationCode(code string) error {
	if !codeRegex.MatchString(strings.TrimSpace(code)) {
		return ErrInvalidCode
	}
	return nil
}

// ValidateMessage checks Q&A content before it is posted
func ValidateMessage(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > 2000 {
		return ErrMessageTooLong
	}
	return nil
}

// IsValidEntryMode checks the mode is one the join flow can dispatch
func IsValidEntryMode(mode string) bool {
	switch mode {
	case EntryModeAnonymous, EntryModeRegistered, EntryModeSSO, EntryModeEmailCode:
		return true
	default:
		return false
	}
}

// IsValidStatus checks a lifecycle status or view tab value
func IsValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusArchive, StatusTrash:
		return true
	default:
		return false
	}
}

// CredentialKindFor maps an entry mode to the only token family it may use
func CredentialKindFor(mode string) (string, error) {
	switch mode {
	case EntryModeAnonymous:
		return CredentialParticipant, nil
	case EntryModeEmailCode:
		return CredentialGuest, nil
	case EntryModeRegistered, EntryModeSSO:
		return CredentialUser, nil
	default:
		return "", ErrInvalidEntryMode
	}
}
