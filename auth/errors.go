package auth

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of authentication failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidEmail
	KindUserDisabled
	KindUserNotFound
	KindWrongPassword
	KindInvalidCredential
	KindEmailInUse
	KindWeakPassword
	KindNetworkRequestFailed
	KindPopupClosedByUser
	KindUnauthorizedDomain
)

var kindCodes = map[ErrorKind]string{
	KindUnknown:              "auth/unknown",
	KindInvalidEmail:         "auth/invalid-email",
	KindUserDisabled:         "auth/user-disabled",
	KindUserNotFound:         "auth/user-not-found",
	KindWrongPassword:        "auth/wrong-password",
	KindInvalidCredential:    "auth/invalid-credential",
	KindEmailInUse:           "auth/email-already-in-use",
	KindWeakPassword:         "auth/weak-password",
	KindNetworkRequestFailed: "auth/network-request-failed",
	KindPopupClosedByUser:    "auth/popup-closed-by-user",
	KindUnauthorizedDomain:   "auth/unauthorized-domain",
}

func (k ErrorKind) String() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindUnknown]
}

const FallbackMessage = "unexpected error occurred"

var messages = map[ErrorKind]string{
	KindInvalidEmail:         "Invalid email address",
	KindUserDisabled:         "This account has been disabled",
	KindUserNotFound:         "Invalid email or password",
	KindWrongPassword:        "Invalid email or password",
	KindInvalidCredential:    "Invalid email or password",
	KindEmailInUse:           "An account with this email already exists",
	KindWeakPassword:         "Password should be at least 6 characters",
	KindNetworkRequestFailed: "Network error. Please check your connection",
	KindPopupClosedByUser:    "Google sign-in was cancelled",
	KindUnauthorizedDomain:   "This domain is not authorized. Please contact the administrator.",
}

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the kind of an auth error, KindUnknown for anything else.
func KindOf(err error) ErrorKind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}

// Message maps err to the text shown to the user.
func Message(err error) string {
	if msg, ok := messages[KindOf(err)]; ok {
		return msg
	}
	return FallbackMessage
}
