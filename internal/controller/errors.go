package controller

import (
	"errors"
	"fmt"

	"live-clientv1/internal/model"
)

// Deposit bounds enforced locally before any network call is made.
const (
	MinDeposit = 10.0
	MaxDeposit = 1_000_000.0
)

var (
	// ErrOperationInFlight rejects concurrent lifecycle operations.
	ErrOperationInFlight = errors.New("controller: another lifecycle operation is in flight")
	// ErrConfirmationRequired gates real-mode session creation.
	ErrConfirmationRequired = errors.New("controller: real-mode session requires explicit confirmation")
	// ErrDisposed rejects operations after Dispose.
	ErrDisposed = errors.New("controller: disposed")
)

// ValidationError reports a locally rejected session config. It never
// reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid session config: %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a lifecycle operation attempted from the
// wrong state. The state machine is left unchanged.
type InvalidTransitionError struct {
	From model.Status
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("controller: cannot %s while session is %q", e.Op, e.From)
}
