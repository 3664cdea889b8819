package client

import (
	"context"
	"fmt"
)

// State is a step of the client folder lifecycle.
type State string

const (
	StateUnvalidated State = "unvalidated"
	StateValidated   State = "validated"
	StateExisting    State = "existing"
	StateNew         State = "new"
	StateReady       State = "ready"
)

// ExistenceChecker probes the storage provider for a client namespace.
type ExistenceChecker interface {
	ClientExists(ctx context.Context, clientID string) (bool, error)
}

// Lifecycle walks one client id through
// Unvalidated -> Validated -> (Existing | New) -> Ready.
// Reset starts over; Reopen steps back from Ready only.
type Lifecycle struct {
	State    State  `json:"state"`
	ClientID string `json:"client_id,omitempty"`
	Exists   bool   `json:"exists"`
}

// NewLifecycle returns a lifecycle in the Unvalidated state.
func NewLifecycle() Lifecycle {
	return Lifecycle{State: StateUnvalidated}
}

// Submit sanitizes and validates raw input. Invalid input leaves the
// lifecycle Unvalidated with nothing retained.
func (l *Lifecycle) Submit(raw string, lowercase bool) error {
	if l.State != StateUnvalidated && l.State != "" {
		return transitionError("submit a client name", l.State)
	}

	id := Sanitize(raw)
	if lowercase {
		id = SanitizeLower(raw)
	}
	if err := Validate(id); err != nil {
		l.Reset()
		return err
	}

	l.State = StateValidated
	l.ClientID = id
	return nil
}

// Resolve moves a validated id to Existing or New. Provider errors keep the
// lifecycle in Validated so the probe can be repeated.
func (l *Lifecycle) Resolve(ctx context.Context, checker ExistenceChecker) error {
	if l.State != StateValidated {
		return transitionError("check existence", l.State)
	}
	exists, err := checker.ClientExists(ctx, l.ClientID)
	if err != nil {
		return err
	}

	l.Exists = exists
	if exists {
		l.State = StateExisting
	} else {
		l.State = StateNew
	}
	return nil
}

// Proceed is the "use existing" or "create folders" step. Both branches land
// in Ready; calling it again once Ready is a no-op.
func (l *Lifecycle) Proceed() error {
	switch l.State {
	case StateExisting, StateNew:
		l.State = StateReady
		return nil
	case StateReady:
		return nil
	default:
		return transitionError("set up folders", l.State)
	}
}

// Ready reports whether the lifecycle reached its terminal state.
func (l *Lifecycle) Ready() bool {
	return l.State == StateReady
}

// Reopen returns a Ready lifecycle to Existing or New so the folder step
// can be taken again.
func (l *Lifecycle) Reopen() {
	if l.State != StateReady {
		return
	}
	if l.Exists {
		l.State = StateExisting
	} else {
		l.State = StateNew
	}
}

// Reset discards all progress.
func (l *Lifecycle) Reset() {
	*l = NewLifecycle()
}

func transitionError(action string, from State) error {
	if from == "" {
		from = StateUnvalidated
	}
	return &ValidationError{
		Field:   "state",
		Message: fmt.Sprintf("cannot %s while client is %s", action, from),
	}
}
