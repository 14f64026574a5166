package model

import (
	"errors"
	"fmt"
)

// Kind classifies an error for display and backoff decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidURL
	KindURLHasCredentials
	KindInvalidPort
	KindEmptyCredential
	KindInvalidAuth
	KindCannotConnect
	KindRenderFailed
	KindSetupFailed
	KindUpdateFailed
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindInvalidURL:        "invalid_url",
	KindURLHasCredentials: "url_has_credentials",
	KindInvalidPort:       "invalid_port",
	KindEmptyCredential:   "empty_credential",
	KindInvalidAuth:       "invalid_auth",
	KindCannotConnect:     "cannot_connect",
	KindRenderFailed:      "render_failed",
	KindSetupFailed:       "setup_failed",
	KindUpdateFailed:      "update_failed",
}

// String returns the translation key style name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Error is the error type surfaced by every layer above the UniFi adapter.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an error of the given kind.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether any *Error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// ErrInvalidAuth reports rejected controller credentials.
func ErrInvalidAuth(err error) *Error {
	return NewError(KindInvalidAuth, "invalid authentication", err)
}

// ErrCannotConnect reports a transport, timeout or non-auth controller failure.
func ErrCannotConnect(msg string, err error) *Error {
	if msg == "" {
		msg = "cannot connect"
	}
	return NewError(KindCannotConnect, msg, err)
}

// ErrRenderFailed reports malformed controller data.
func ErrRenderFailed(err error) *Error {
	return NewError(KindRenderFailed, "render failed", err)
}

// ErrSetupFailed wraps the cause of a failed first refresh.
func ErrSetupFailed(err error) *Error {
	return NewError(KindSetupFailed, "setup failed", err)
}

// ErrUpdateFailed wraps a failed refresh. With an empty msg the cause's text is used.
func ErrUpdateFailed(msg string, err error) *Error {
	return NewError(KindUpdateFailed, msg, err)
}
