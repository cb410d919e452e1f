package swarm

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/swarmcoord/internal/event"
)

// AgentStatus is the orchestrator's view of one agent's progress.
type AgentStatus string

const (
	// AgentWaiting means the agent has a batch assignment but has not started.
	AgentWaiting AgentStatus = "waiting"
	// AgentRunning means the agent is executing its batch work.
	AgentRunning AgentStatus = "running"
	// AgentDone means the agent reported completion.
	AgentDone AgentStatus = "done"
	// AgentFailed means the agent's run returned an error.
	AgentFailed AgentStatus = "failed"
	// AgentDropped means the agent never submitted a valid plan.
	AgentDropped AgentStatus = "dropped"
)

// AgentState tracks one agent across the session.
type AgentState struct {
	AgentID string      `json:"agent_id"`
	Status  AgentStatus `json:"status"`
	Batch   int         `json:"batch,omitempty"` // 0 until scheduled
	Files   []string    `json:"files,omitempty"` // claim paths for the batch
	Detail  string      `json:"detail,omitempty"`
}

// Session is one coordination run. The orchestrator is the sole mutator;
// the mutex guards concurrent readers (status subcommand, event handlers).
type Session struct {
	SwarmID   string    `json:"swarm_id"`
	Task      string    `json:"task"`
	StartedAt time.Time `json:"started_at"`

	mu      sync.RWMutex
	phase   Phase
	agents  map[string]*AgentState
	history []Transition

	bus   *event.Bus
	clock func() time.Time
}

// NewSession creates a Session in PhaseInit with one AgentState per
// expected agent.
func NewSession(task string, agentIDs []string, bus *event.Bus) *Session {
	s := &Session{
		SwarmID:   uuid.NewString(),
		Task:      task,
		StartedAt: time.Now(),
		phase:     PhaseInit,
		agents:    make(map[string]*AgentState, len(agentIDs)),
		bus:       bus,
		clock:     time.Now,
	}
	for _, id := range agentIDs {
		s.agents[id] = &AgentState{AgentID: id, Status: AgentWaiting}
	}
	s.history = append(s.history, Transition{To: PhaseInit, Timestamp: s.clock()})
	return s
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// TransitionTo advances the phase, recording the transition and publishing
// a PhaseChangedEvent. Invalid transitions are rejected.
func (s *Session) TransitionTo(to Phase, reason string) error {
	s.mu.Lock()
	from := s.phase
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return transitionError(from, to)
	}
	s.phase = to
	s.history = append(s.history, Transition{
		From:      from,
		To:        to,
		Timestamp: s.clock(),
		Reason:    reason,
	})
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(event.NewPhaseChangedEvent(s.SwarmID, string(from), string(to), reason))
	}
	return nil
}

// Abort transitions to PhaseAborted. Valid from every non-terminal phase.
func (s *Session) Abort(reason string) error {
	return s.TransitionTo(PhaseAborted, reason)
}

// History returns a copy of the phase transitions in order.
func (s *Session) History() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transition, len(s.history))
	copy(out, s.history)
	return out
}

// Agent returns a copy of one agent's state.
func (s *Session) Agent(agentID string) (AgentState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.agents[agentID]
	if !ok {
		return AgentState{}, false
	}
	return *st, true
}

// Agents returns a copy of all agent states keyed by agent ID.
func (s *Session) Agents() map[string]AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]AgentState, len(s.agents))
	for id, st := range s.agents {
		out[id] = *st
	}
	return out
}

// setAgent updates one agent's state under the session lock. Unknown agents
// are added; plans may introduce agents the session did not expect.
func (s *Session) setAgent(agentID string, fn func(*AgentState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.agents[agentID]
	if !ok {
		st = &AgentState{AgentID: agentID}
		s.agents[agentID] = st
	}
	fn(st)
}
