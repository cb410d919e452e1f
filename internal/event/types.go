package event

import "time"

// Event is the interface all coordination events implement.
type Event interface {
	// EventType returns a "category.action" identifier for this event.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Plan Collection Events
// -----------------------------------------------------------------------------

// PlanSubmittedEvent is emitted when an agent's plan is accepted by the collector.
type PlanSubmittedEvent struct {
	baseEvent
	AgentID   string // Agent that submitted the plan
	FileCount int    // Total files the plan references
}

// NewPlanSubmittedEvent creates a PlanSubmittedEvent.
func NewPlanSubmittedEvent(agentID string, fileCount int) PlanSubmittedEvent {
	return PlanSubmittedEvent{
		baseEvent: newBaseEvent("plan.submitted"),
		AgentID:   agentID,
		FileCount: fileCount,
	}
}

// PlanRejectedEvent is emitted when the collector rejects a plan.
type PlanRejectedEvent struct {
	baseEvent
	AgentID string // Agent whose plan was rejected
	Reason  string // Why the plan was rejected
}

// NewPlanRejectedEvent creates a PlanRejectedEvent.
func NewPlanRejectedEvent(agentID, reason string) PlanRejectedEvent {
	return PlanRejectedEvent{
		baseEvent: newBaseEvent("plan.rejected"),
		AgentID:   agentID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Conflict Events
// -----------------------------------------------------------------------------

// ConflictDetectedEvent is emitted when the detector finds a plan overlap.
type ConflictDetectedEvent struct {
	baseEvent
	Files  []string // Contested file paths
	Agents []string // Agents whose plans overlap
}

// NewConflictDetectedEvent creates a ConflictDetectedEvent.
func NewConflictDetectedEvent(files, agents []string) ConflictDetectedEvent {
	return ConflictDetectedEvent{
		baseEvent: newBaseEvent("conflict.detected"),
		Files:     files,
		Agents:    agents,
	}
}

// -----------------------------------------------------------------------------
// Claim Events
// -----------------------------------------------------------------------------

// ClaimRegisteredEvent is emitted when a claim transitions to claimed.
type ClaimRegisteredEvent struct {
	baseEvent
	AgentID  string // Claim owner
	FilePath string // Claimed path (may carry a #range suffix)
}

// NewClaimRegisteredEvent creates a ClaimRegisteredEvent.
func NewClaimRegisteredEvent(agentID, filePath string) ClaimRegisteredEvent {
	return ClaimRegisteredEvent{
		baseEvent: newBaseEvent("claim.registered"),
		AgentID:   agentID,
		FilePath:  filePath,
	}
}

// ClaimPendingEvent is emitted when a claim is registered in the pending state.
type ClaimPendingEvent struct {
	baseEvent
	AgentID  string
	FilePath string
}

// NewClaimPendingEvent creates a ClaimPendingEvent.
func NewClaimPendingEvent(agentID, filePath string) ClaimPendingEvent {
	return ClaimPendingEvent{
		baseEvent: newBaseEvent("claim.pending"),
		AgentID:   agentID,
		FilePath:  filePath,
	}
}

// ClaimReleasedEvent is emitted when a claim transitions to released.
type ClaimReleasedEvent struct {
	baseEvent
	AgentID  string
	FilePath string
}

// NewClaimReleasedEvent creates a ClaimReleasedEvent.
func NewClaimReleasedEvent(agentID, filePath string) ClaimReleasedEvent {
	return ClaimReleasedEvent{
		baseEvent: newBaseEvent("claim.released"),
		AgentID:   agentID,
		FilePath:  filePath,
	}
}

// -----------------------------------------------------------------------------
// Batch Events
// -----------------------------------------------------------------------------

// BatchStartedEvent is emitted when the orchestrator activates a batch.
type BatchStartedEvent struct {
	baseEvent
	Batch  int      // 1-based batch number
	Agents []string // Agents running in this batch
}

// NewBatchStartedEvent creates a BatchStartedEvent.
func NewBatchStartedEvent(batch int, agents []string) BatchStartedEvent {
	return BatchStartedEvent{
		baseEvent: newBaseEvent("batch.started"),
		Batch:     batch,
		Agents:    agents,
	}
}

// BatchCompletedEvent is emitted after every agent in a batch has reported
// and its claims have been released.
type BatchCompletedEvent struct {
	baseEvent
	Batch   int
	Success bool
}

// NewBatchCompletedEvent creates a BatchCompletedEvent.
func NewBatchCompletedEvent(batch int, success bool) BatchCompletedEvent {
	return BatchCompletedEvent{
		baseEvent: newBaseEvent("batch.completed"),
		Batch:     batch,
		Success:   success,
	}
}

// -----------------------------------------------------------------------------
// Violation Events
// -----------------------------------------------------------------------------

// ViolationDetectedEvent is emitted when the monitor finds an edit
// inconsistent with the claim registry.
type ViolationDetectedEvent struct {
	baseEvent
	AgentID  string // Offending agent, empty if the edit could not be attributed
	FilePath string // File that was edited
	Kind     string // "unclaimed_edit" or "cross_claim_edit"
}

// NewViolationDetectedEvent creates a ViolationDetectedEvent.
func NewViolationDetectedEvent(agentID, filePath, kind string) ViolationDetectedEvent {
	return ViolationDetectedEvent{
		baseEvent: newBaseEvent("violation.detected"),
		AgentID:   agentID,
		FilePath:  filePath,
		Kind:      kind,
	}
}

// -----------------------------------------------------------------------------
// Phase Events
// -----------------------------------------------------------------------------

// PhaseChangedEvent is emitted on every orchestrator phase transition.
type PhaseChangedEvent struct {
	baseEvent
	SwarmID string // Session this transition belongs to
	From    string // Source phase, empty for the initial phase
	To      string // Destination phase
	Reason  string // Optional context, set on transitions to aborted
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(swarmID, from, to, reason string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent("phase.changed"),
		SwarmID:   swarmID,
		From:      from,
		To:        to,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Amendment Events
// -----------------------------------------------------------------------------

// AmendmentRequestedEvent is emitted when an agent asks, mid-batch, for a file
// outside its original plan.
type AmendmentRequestedEvent struct {
	baseEvent
	AgentID  string
	FilePath string
	Approved bool
	Reason   string // Denial reason, empty when approved
}

// NewAmendmentRequestedEvent creates an AmendmentRequestedEvent.
func NewAmendmentRequestedEvent(agentID, filePath string, approved bool, reason string) AmendmentRequestedEvent {
	return AmendmentRequestedEvent{
		baseEvent: newBaseEvent("amendment.requested"),
		AgentID:   agentID,
		FilePath:  filePath,
		Approved:  approved,
		Reason:    reason,
	}
}
