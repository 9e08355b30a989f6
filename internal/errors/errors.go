// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// Error kinds. Wrap with the constructors below so callers can match via
// errors.Is regardless of the message.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrAlreadyInProgress  = errors.New("already in progress")
	ErrNoRecipients       = errors.New("no recipients")
)

func NewInvalidArgument(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidArgument)
}

func NewContactNotFound(id int) error {
	return fmt.Errorf("contact with ID %d: %w", id, ErrNotFound)
}

func NewGroupNotFound(id int) error {
	return fmt.Errorf("group with ID %d: %w", id, ErrNotFound)
}

func NewJobNotFound(id int) error {
	return fmt.Errorf("broadcast job with ID %d: %w", id, ErrNotFound)
}

func NewGroupNameTaken(name string) error {
	return fmt.Errorf("group name %q already exists: %w", name, ErrConflict)
}

func NewGroupNotEmpty(id, members int) error {
	return fmt.Errorf("group %d still has %d contacts: %w", id, members, ErrPreconditionFailed)
}

func NewJobNotCancellable(id int, status string) error {
	return fmt.Errorf("job %d is %s, only pending jobs can be cancelled: %w", id, status, ErrPreconditionFailed)
}

func NewSyncInProgress() error {
	return fmt.Errorf("roster synchronization: %w", ErrAlreadyInProgress)
}

func NewNoRecipients() error {
	return fmt.Errorf("selected groups resolve to zero contacts: %w", ErrNoRecipients)
}
