package swarm

import (
	"testing"

	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseInit, PhasePlanning, true},
		{PhasePlanning, PhaseConflictDetection, true},
		{PhaseConflictDetection, PhaseClaimRegistration, true},
		{PhaseClaimRegistration, PhaseImplementation, true},
		{PhaseImplementation, PhaseVerification, true},
		{PhaseVerification, PhaseComplete, true},
		{PhaseInit, PhaseImplementation, false},
		{PhasePlanning, PhaseComplete, false},
		{PhaseComplete, PhasePlanning, false},
		{PhaseAborted, PhasePlanning, false},
		{Phase("bogus"), PhasePlanning, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAbortReachableFromEveryNonTerminalPhase(t *testing.T) {
	for _, p := range AllPhases() {
		if p.IsTerminal() {
			if CanTransition(p, PhaseAborted) {
				t.Errorf("terminal phase %s should not transition to aborted", p)
			}
			continue
		}
		if !CanTransition(p, PhaseAborted) {
			t.Errorf("phase %s cannot reach aborted", p)
		}
	}
}

func TestSessionTransitions(t *testing.T) {
	s := NewSession("refactor storage", []string{"agent-1"}, nil)
	if s.Phase() != PhaseInit {
		t.Fatalf("new session phase = %s, want %s", s.Phase(), PhaseInit)
	}

	if err := s.TransitionTo(PhasePlanning, "started"); err != nil {
		t.Fatalf("TransitionTo planning: %v", err)
	}
	if err := s.TransitionTo(PhaseComplete, "skip ahead"); !swarmerr.Is(err, swarmerr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if s.Phase() != PhasePlanning {
		t.Errorf("failed transition mutated phase to %s", s.Phase())
	}

	if err := s.Abort("operator cancelled"); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if err := s.TransitionTo(PhasePlanning, "revive"); err == nil {
		t.Fatal("transition out of aborted should fail")
	}

	hist := s.History()
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	last := hist[len(hist)-1]
	if last.To != PhaseAborted || last.Reason != "operator cancelled" {
		t.Errorf("last transition = %+v", last)
	}
}

func TestSessionAgentState(t *testing.T) {
	s := NewSession("task", []string{"a", "b"}, nil)

	st, ok := s.Agent("a")
	if !ok || st.Status != AgentWaiting {
		t.Fatalf("Agent(a) = %+v, %v", st, ok)
	}

	s.setAgent("a", func(st *AgentState) { st.Status = AgentRunning; st.Batch = 1 })
	st, _ = s.Agent("a")
	if st.Status != AgentRunning || st.Batch != 1 {
		t.Errorf("updated state = %+v", st)
	}

	if _, ok := s.Agent("stranger"); ok {
		t.Error("unknown agent should not be found")
	}
}
