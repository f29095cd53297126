package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownAction     = errors.New("unknown action")
	ErrRoundNotOpen      = errors.New("round is not open for ratings")
	ErrPersistence       = errors.New("persistence failure")
)

// TransitionError reports a lifecycle action whose precondition did not hold.
// Callers should re-fetch study state before deciding what to do next.
type TransitionError struct {
	Action       string
	Precondition string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s: %s", e.Action, e.Precondition)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// UnknownActionError reports an action name outside the lifecycle vocabulary.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action: %q", e.Action)
}

func (e *UnknownActionError) Unwrap() error { return ErrUnknownAction }

// PersistenceError wraps a storage failure that caused a whole operation to roll back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is lets errors.Is match both ErrPersistence and the underlying cause.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err unless it already carries a domain meaning.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ValidationError carries a field-level validation message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsDomain reports whether err carries a domain meaning that callers act on,
// as opposed to an infrastructure failure.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrConflict,
		ErrValidation,
		ErrInvalidTransition,
		ErrUnknownAction,
		ErrRoundNotOpen,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// WrapPersistence returns domain errors unchanged and wraps everything else
// as a PersistenceError for op.
func WrapPersistence(op string, err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	return NewPersistenceError(op, err)
}
