package plan

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/swarmcoord/internal/event"
	"github.com/Iron-Ham/swarmcoord/internal/logging"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// Collector gathers one plan per expected agent at swarm start. It accepts
// submissions until every expected agent has submitted or the collection
// deadline passes, whichever comes first. Agents that miss the deadline are
// dropped from the session with a recorded warning.
//
// The Collector holds plans in memory only; it never touches the claims
// registry.
type Collector struct {
	mu       sync.Mutex
	expected map[string]bool // agentID -> submitted
	plans    []Plan
	dropped  []string
	closed   bool
	allIn    chan struct{}

	bus    *event.Bus
	logger *logging.Logger
}

// NewCollector creates a Collector for the given expected agent IDs.
func NewCollector(expectedAgents []string, bus *event.Bus, logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.Nop()
	}
	expected := make(map[string]bool, len(expectedAgents))
	for _, id := range expectedAgents {
		expected[id] = false
	}
	return &Collector{
		expected: expected,
		allIn:    make(chan struct{}),
		bus:      bus,
		logger:   logger,
	}
}

// Submit records an agent's plan. It returns a PlanError if the plan lists
// no writable files, duplicates an earlier submission, or arrives after
// collection closed. Rejection has no side effects beyond the recorded
// warning; the session continues without the agent.
func (c *Collector) Submit(p Plan) error {
	c.mu.Lock()
	err := c.submitLocked(p)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("plan rejected", "agent_id", p.AgentID, "reason", err.Error())
		if c.bus != nil {
			c.bus.Publish(event.NewPlanRejectedEvent(p.AgentID, err.Error()))
		}
		return err
	}

	c.logger.Info("plan submitted",
		"agent_id", p.AgentID,
		"modify", len(p.FilesToModify),
		"create", len(p.FilesToCreate),
	)
	if c.bus != nil {
		c.bus.Publish(event.NewPlanSubmittedEvent(p.AgentID, len(p.WriteFiles())))
	}
	return nil
}

func (c *Collector) submitLocked(p Plan) error {
	if c.closed {
		return swarmerr.NewPlanError(p.AgentID, swarmerr.ErrCollectorClosed)
	}
	if err := p.Validate(); err != nil {
		return swarmerr.NewPlanError(p.AgentID, fmt.Errorf("%w: %v", swarmerr.ErrPlanEmpty, err))
	}
	submitted, known := c.expected[p.AgentID]
	if !known {
		return swarmerr.NewPlanError(p.AgentID, fmt.Errorf("agent not part of this session"))
	}
	if submitted {
		return swarmerr.NewPlanError(p.AgentID, swarmerr.ErrPlanDuplicate)
	}

	c.expected[p.AgentID] = true
	c.plans = append(c.plans, p)

	if c.allSubmittedLocked() {
		close(c.allIn)
	}
	return nil
}

func (c *Collector) allSubmittedLocked() bool {
	for _, submitted := range c.expected {
		if !submitted {
			return false
		}
	}
	return true
}

// Collect blocks until every expected agent has submitted or ctx expires,
// then closes collection and returns the accepted plans in deterministic
// (agent ID) order. Expected agents that never submitted are dropped and
// reported by Dropped.
func (c *Collector) Collect(ctx context.Context) []Plan {
	select {
	case <-c.allIn:
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, submitted := range c.expected {
		if !submitted {
			c.dropped = append(c.dropped, id)
		}
	}
	sort.Strings(c.dropped)
	for _, id := range c.dropped {
		c.logger.Warn("agent dropped from session: no plan before deadline", "agent_id", id)
	}

	plans := make([]Plan, len(c.plans))
	copy(plans, c.plans)
	sort.Slice(plans, func(i, j int) bool { return plans[i].AgentID < plans[j].AgentID })
	return plans
}

// Dropped returns the agents removed from the session for missing the
// collection deadline, sorted. Valid after Collect returns.
func (c *Collector) Dropped() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.dropped))
	copy(out, c.dropped)
	return out
}
