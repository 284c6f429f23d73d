package security

import "errors"

// Verification-stage failures are terminal at the HTTP boundary and never
// reach business logic.
var (
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrReplayDetected   = errors.New("replay detected")
	ErrRateLimited      = errors.New("rate limited")
)
