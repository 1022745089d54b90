package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent failure conditions shared by the CLI layers.
var (
	// Validation errors
	ErrVMIDRequired             = errors.New("VM ID is required")
	ErrInvalidDockerCredentials = errors.New("invalid Docker credentials format, expected username:password")
	ErrEmptyRegistry            = errors.New("docker registry cannot be empty")
	ErrInteractiveRequired      = errors.New("browser login requires interactive mode, please use the -i flag")

	// Auth errors
	ErrNotLoggedIn     = errors.New("you are not logged in")
	ErrSessionUnknown  = errors.New("session status unknown or you are not logged in")
	ErrLoginTimeout    = errors.New("login timed out: the local server did not receive a callback within 2 minutes")
	ErrCSRFTokenAbsent = errors.New("CSRF token not found in response")

	// ErrCancelled is returned when the user declines a confirmation or
	// interrupts a prompt. It is not reported as a command failure.
	ErrCancelled = errors.New("operation cancelled by user")
)

// MissingOptionError reports a required flag that was not supplied in
// non-interactive mode.
type MissingOptionError struct {
	Flag string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("missing required option: %s", e.Flag)
}
