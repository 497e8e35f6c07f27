package hub

import (
	"errors"
	"fmt"
)

// Sentinel errors for common hub conditions.
var (
	// ErrAlreadyStarted is returned when Start is called on a running hub.
	ErrAlreadyStarted = errors.New("hub: already started")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("hub: invalid config")
)

// StartupError wraps a listener failure during Start. It is fatal and
// surfaced synchronously to the caller; the hub never retries internally.
type StartupError struct {
	Err error
}

// Error returns the error message.
func (e *StartupError) Error() string {
	return fmt.Sprintf("hub: listener failed to start: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *StartupError) Unwrap() error {
	return e.Err
}

// IdentityCollisionError reports that the identity allocator handed out
// an identity that is already registered. The allocator contract makes
// this impossible in correct operation, so the hub treats it as a fatal
// programming error and panics with this value.
type IdentityCollisionError struct {
	ID uint64
}

// Error returns the error message.
func (e *IdentityCollisionError) Error() string {
	return fmt.Sprintf("hub: identity %d already registered, allocator violated uniqueness", e.ID)
}
