package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match on these with errors.Is; the specific errors
// below wrap one of them.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrPreconditionNotMet = errors.New("precondition not met")
	ErrNotFound           = errors.New("not found")
)

// ErrNothingToDistribute is a reported no-op, not a failure.
var ErrNothingToDistribute = errors.New("nothing to distribute")

// ErrInconsistentState means a transition produced a partition that breaks
// its invariants. It is a programming error, never a user error.
var ErrInconsistentState = errors.New("inconsistent roster state")

var (
	ErrEmptyName       = fmt.Errorf("%w: name is required", ErrInvalidInput)
	ErrNameTooLong     = fmt.Errorf("%w: name is too long", ErrInvalidInput)
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrInvalidInput)
	ErrDuplicateID     = fmt.Errorf("%w: participant id already registered", ErrInvalidInput)
	ErrUnknownTeam     = fmt.Errorf("%w: unknown team", ErrInvalidInput)

	ErrTeamNotFull   = fmt.Errorf("%w: team is not full", ErrPreconditionNotMet)
	ErrQueueTooShort = fmt.Errorf("%w: not enough players waiting", ErrPreconditionNotMet)
	ErrAlreadyOnTeam = fmt.Errorf("%w: participant is on a team", ErrPreconditionNotMet)

	ErrParticipantNotFound = fmt.Errorf("%w: participant", ErrNotFound)
	ErrNotOnTeam           = fmt.Errorf("%w: participant is not on that team", ErrNotFound)

	ErrUnsupportedCommand = errors.New("unsupported command")
)
