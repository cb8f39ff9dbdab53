package workflow

import (
	"errors"
	"fmt"

	"github.com/bloodbank/donorflow/internal/domain/physicalexam"
	"github.com/bloodbank/donorflow/internal/platform/datastore"
	"github.com/bloodbank/donorflow/internal/platform/validate"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrMissingDonor  = errors.New("no donor selected")
	ErrInvalidAction = errors.New("invalid action")
	ErrOutOfSequence = errors.New("step not available")
	ErrLocked        = physicalexam.ErrLocked
	ErrValidation    = validate.ErrInvalid
	ErrUpstream      = datastore.ErrUpstream
)

// ValidationError lists the problems with a submitted form. When every issue
// is a warning the donor is deferred rather than the form rejected.
type ValidationError = validate.Error

// MissingDonorError names the step the user has to go back to.
type MissingDonorError struct {
	RedirectStep Step
}

func (e *MissingDonorError) Error() string {
	return fmt.Sprintf("%s: return to %s", ErrMissingDonor, e.RedirectStep)
}

func (e *MissingDonorError) Is(target error) bool { return target == ErrMissingDonor }

// SequenceError reports a command for a step the workflow has not reached.
type SequenceError struct {
	Current   Step
	Requested Step
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%s: %s requested while at %s", ErrOutOfSequence, e.Requested, e.Current)
}

func (e *SequenceError) Is(target error) bool { return target == ErrOutOfSequence }
