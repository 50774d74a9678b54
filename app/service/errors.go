package service

import (
	"errors"

	"github.com/clubware/ms-go-memberships/app/policy"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrTemplateNotFound     = errors.New("subscription template not found")
	ErrTemplateInactive     = errors.New("subscription template is not active")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrRenewalNotAllowed    = errors.New("template does not allow manual renewal")
	ErrInvalidTransition    = errors.New("invalid status transition")
	// ErrInvariantViolation marks data corruption, e.g. a subscription whose
	// template no longer exists. It is not a user-facing condition.
	ErrInvariantViolation = errors.New("data invariant violated")
)

// ValidationError is the expected domain failure returned by Use when the
// redemption is rejected. It carries the structured reason so the caller can
// tell "cannot redeem right now" apart from a system fault.
type ValidationError struct {
	Reason policy.Reason
}

func (e *ValidationError) Error() string {
	return "validation failed: " + string(e.Reason)
}
