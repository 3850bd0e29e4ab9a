package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")

	ErrOTPNotFound = errors.New("no OTP found for this phone")
	ErrOTPExpired  = errors.New("OTP expired")
	ErrOTPMismatch = errors.New("invalid OTP")

	// ErrTokenInvalid covers unknown, expired and exhausted verification tokens.
	ErrTokenInvalid = fmt.Errorf("invalid or expired verification token: %w", ErrUnauthorized)

	ErrSMSFailed      = errors.New("failed to send OTP")
	ErrIdentityFailed = errors.New("identity service error")
)

// DownstreamError reports a failed call to an external collaborator.
// Status, ContentType and Body carry the collaborator's response when there
// was one; Status is zero for transport failures.
type DownstreamError struct {
	Kind        error
	Status      int
	ContentType string
	Body        []byte
	Err         error
}

func (e *DownstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%v: status %d", e.Kind, e.Status)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *DownstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
