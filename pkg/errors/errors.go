// Package errors holds the OAuth error taxonomy and the single translator that
// turns it into HTTP responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags which response family an error belongs to.
type Kind int

const (
	KindInternal Kind = iota
	// KindRedirect errors are delivered as a 302 to the client's redirect_uri.
	KindRedirect
	// KindBody errors are delivered as a 400 JSON body.
	KindBody
	// KindToken errors are body errors from the token endpoint and are never cached.
	KindToken
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindRedirect:
		return "redirect"
	case KindBody:
		return "body"
	case KindToken:
		return "token"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Code is the value of the "error" field.
type Code string

// RFC 6749 section 4.1.2.1 and 5.2
const (
	CodeInvalidRequest          Code = "invalid_request"
	CodeUnauthorizedClient      Code = "unauthorized_client"
	CodeAccessDenied            Code = "access_denied"
	CodeUnsupportedResponseType Code = "unsupported_response_type"
	CodeInvalidScope            Code = "invalid_scope"
	CodeServerError             Code = "server_error"
	CodeTemporarilyUnavailable  Code = "temporarily_unavailable"
	CodeInvalidClient           Code = "invalid_client"
	CodeInvalidGrant            Code = "invalid_grant"
	CodeUnsupportedGrantType    Code = "unsupported_grant_type"
)

// RFC 7591 section 3.2.2
const (
	CodeInvalidRedirectURI          Code = "invalid_redirect_uri"
	CodeInvalidClientMetadata       Code = "invalid_client_metadata"
	CodeInvalidSoftwareStatement    Code = "invalid_software_statement"
	CodeUnapprovedSoftwareStatement Code = "unapproved_software_statement"
)

const (
	CodeNotFound         Code = "not_found"
	CodeUserExists       Code = "user_exists_error"
	CodeUserDoesNotExist Code = "user_does_not_exist_error"
)

// Error is the tagged variant carried through the service layer. Only the
// fields relevant to Kind are set.
type Error struct {
	Kind        Kind
	Code        Code
	Description string

	// Redirect family
	RedirectURI string
	State       string

	// Conflict family
	Location string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, code and description so that copies produced by
// WithRedirect or Wrap still compare equal to the package-level values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code && e.Description == t.Description
}

// HTTPStatus returns the status the translator uses for this error
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindRedirect:
		if e.RedirectURI == "" {
			return http.StatusBadRequest
		}
		return http.StatusFound
	case KindBody:
		return http.StatusBadRequest
	case KindToken:
		if e.Code == CodeInvalidClient {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WithRedirect returns a copy bound to a redirect target.
func (e *Error) WithRedirect(redirectURI, state string) *Error {
	c := *e
	c.RedirectURI = redirectURI
	c.State = state
	return &c
}

// Wrap returns a copy carrying the underlying cause.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

func Redirect(code Code, description string) *Error {
	return &Error{Kind: KindRedirect, Code: code, Description: description}
}

func Body(code Code, description string) *Error {
	return &Error{Kind: KindBody, Code: code, Description: description}
}

func Token(code Code, description string) *Error {
	return &Error{Kind: KindToken, Code: code, Description: description}
}

// Conflict points the caller at the resource that already exists.
func Conflict(code Code, description, location string) *Error {
	return &Error{Kind: KindConflict, Code: code, Description: description, Location: location}
}

func NotFound(code Code, description string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Description: description}
}

// Internal wraps an unexpected failure. The cause is logged, never rendered.
func Internal(err error) *Error {
	return &Error{
		Kind:        KindInternal,
		Code:        CodeServerError,
		Description: "The authorization server encountered an unexpected condition",
		Err:         err,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code
func IsCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
