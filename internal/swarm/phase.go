package swarm

import (
	"fmt"
	"slices"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// Phase represents a discrete stage in the coordination lifecycle.
type Phase string

const (
	// PhaseInit is the state of a freshly created session.
	PhaseInit Phase = "init"

	// PhasePlanning covers plan collection from the expected agents.
	PhasePlanning Phase = "planning"

	// PhaseConflictDetection covers conflict detection and resolution
	// into a batch schedule.
	PhaseConflictDetection Phase = "conflict_detection"

	// PhaseClaimRegistration registers the first batch's claims.
	PhaseClaimRegistration Phase = "claim_registration"

	// PhaseImplementation runs agents batch by batch, releasing and
	// claiming at each batch barrier.
	PhaseImplementation Phase = "implementation"

	// PhaseVerification checks observed file changes against the registry.
	PhaseVerification Phase = "verification"

	// PhaseComplete indicates the session finished with zero violations.
	PhaseComplete Phase = "complete"

	// PhaseAborted indicates the session terminated on a fatal error.
	PhaseAborted Phase = "aborted"
)

// AllPhases returns all defined phases in lifecycle order.
func AllPhases() []Phase {
	return []Phase{
		PhaseInit,
		PhasePlanning,
		PhaseConflictDetection,
		PhaseClaimRegistration,
		PhaseImplementation,
		PhaseVerification,
		PhaseComplete,
		PhaseAborted,
	}
}

// IsTerminal returns true for the two terminal states.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseAborted
}

func (p Phase) String() string { return string(p) }

// ValidTransitions is the canonical source of truth for the phase state
// machine. PhaseAborted is reachable from every non-terminal state.
var ValidTransitions = map[Phase][]Phase{
	PhaseInit:              {PhasePlanning, PhaseAborted},
	PhasePlanning:          {PhaseConflictDetection, PhaseAborted},
	PhaseConflictDetection: {PhaseClaimRegistration, PhaseAborted},
	PhaseClaimRegistration: {PhaseImplementation, PhaseAborted},
	PhaseImplementation:    {PhaseVerification, PhaseAborted},
	PhaseVerification:      {PhaseComplete, PhaseAborted},
	PhaseComplete:          {},
	PhaseAborted:           {},
}

// CanTransition checks whether a transition is allowed by ValidTransitions.
func CanTransition(from, to Phase) bool {
	targets, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(targets, to)
}

// Transition captures one phase change, forming the session's audit trail
// of lifecycle progression.
type Transition struct {
	From      Phase     `json:"from,omitempty"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

func transitionError(from, to Phase) error {
	return fmt.Errorf("%w: %s -> %s", swarmerr.ErrInvalidTransition, from, to)
}
