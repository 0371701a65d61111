package systems

import "errors"

var (
	// ErrNotEligible means a candidate failed re-validation. The caller
	// abandons the attempt; there is no retry.
	ErrNotEligible = errors.New("not eligible")

	// ErrMissingCollaborator means a capability was absent. Decision code
	// treats it as "no candidate found".
	ErrMissingCollaborator = errors.New("missing collaborator")

	// ErrProcessInvalidated means an active mating process was cancelled
	// because a participant became invalid.
	ErrProcessInvalidated = errors.New("mating process invalidated")

	// ErrAgentGone means the agent was removed before the operation ran.
	ErrAgentGone = errors.New("agent gone")

	ErrSelfMating        = errors.New("agent cannot mate with itself")
	ErrAlreadyReserved   = errors.New("agent already reserved by a mating process")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrCoordinatorClosed = errors.New("mating coordinator closed")
)
