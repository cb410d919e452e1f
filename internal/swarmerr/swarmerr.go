// Package swarmerr provides centralized error definitions for the swarm
// coordination core. It defines the error taxonomy of the claim protocol,
// constructors with context wrapping, and classification helpers.
//
// The taxonomy:
//
//   - PlanError: a malformed or duplicate plan, recovered locally by the
//     collector; the session continues without the offending agent.
//   - ConflictError: a detected conflict with no chosen resolution strategy,
//     fatal to the session.
//   - ClaimError: a claim denial, meaning the live registry disagrees with
//     the batch schedule. A scheduling bug; fatal, never retried.
//   - ViolationError: an observed edit inconsistent with the registry.
//     Cross-claim edits are fatal to the batch; unclaimed edits are
//     recoverable via a single bounded remediation pass.
//   - RegistryError: the audit log and current-state projection disagree.
//     Fatal to the whole session; requires manual audit.
//
// Checking errors:
//
//	if swarmerr.Is(err, swarmerr.ErrClaimDenied) { ... }
//
//	var ve *swarmerr.ViolationError
//	if swarmerr.As(err, &ve) { ... }
//
//	if swarmerr.IsFatal(err) { ... }
package swarmerr

import (
	"errors"
	"fmt"
)

// Re-export standard library functions so callers can import only this
// package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for recoverable conditions the session survives.
	SeverityWarning Severity = iota
	// SeverityBatchFatal is for errors that terminate the current batch.
	SeverityBatchFatal
	// SeveritySessionFatal is for errors that terminate the whole session.
	SeveritySessionFatal
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityBatchFatal:
		return "batch_fatal"
	case SeveritySessionFatal:
		return "session_fatal"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Plan collection sentinel errors.
var (
	// ErrPlanEmpty indicates a plan listing no files to modify or create.
	ErrPlanEmpty = New("plan lists no files")
	// ErrPlanDuplicate indicates the agent already submitted a plan this session.
	ErrPlanDuplicate = New("agent already submitted a plan")
	// ErrCollectorClosed indicates a submission after collection closed.
	ErrCollectorClosed = New("plan collection is closed")
)

// Conflict resolution sentinel errors.
var (
	// ErrNoStrategy indicates a conflict with no chosen resolution strategy.
	ErrNoStrategy = New("no resolution strategy chosen for conflict")
	// ErrUnknownStrategy indicates a strategy name outside the known set.
	ErrUnknownStrategy = New("unknown resolution strategy")
)

// Registry sentinel errors.
var (
	// ErrClaimDenied indicates an active claim on the path by another agent.
	ErrClaimDenied = New("file already claimed by another agent")
	// ErrNotOwner indicates an agent tried to release a claim it does not hold.
	ErrNotOwner = New("agent does not own this claim")
	// ErrRegistryCorrupt indicates the audit log and projection disagree.
	ErrRegistryCorrupt = New("registry audit log and projection disagree")
)

// Orchestration sentinel errors.
var (
	// ErrInvalidTransition indicates a phase transition outside the state machine.
	ErrInvalidTransition = New("invalid phase transition")
	// ErrSessionAborted indicates the session reached the aborted state.
	ErrSessionAborted = New("swarm session aborted")
	// ErrAmendmentDenied indicates the orchestrator refused a plan amendment.
	ErrAmendmentDenied = New("plan amendment denied")
)

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// PlanError is returned when the collector rejects a plan. Never fatal to the
// session; the offending agent is dropped with a recorded warning.
type PlanError struct {
	AgentID string
	cause   error
}

// NewPlanError creates a PlanError for the given agent.
func NewPlanError(agentID string, cause error) *PlanError {
	return &PlanError{AgentID: agentID, cause: cause}
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan rejected [agent=%s]: %v", e.AgentID, e.cause)
}

func (e *PlanError) Unwrap() error { return e.cause }

// Severity returns SeverityWarning: the session continues without the agent.
func (e *PlanError) Severity() Severity { return SeverityWarning }

// ConflictError is returned when resolution cannot proceed, most commonly
// because no strategy was chosen for a conflict.
type ConflictError struct {
	Files  []string
	Agents []string
	cause  error
}

// NewConflictError creates a ConflictError for the given contested files.
func NewConflictError(files, agents []string, cause error) *ConflictError {
	return &ConflictError{Files: files, Agents: agents, cause: cause}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unresolved conflict [files=%v agents=%v]: %v", e.Files, e.Agents, e.cause)
}

func (e *ConflictError) Unwrap() error { return e.cause }

// Severity returns SeveritySessionFatal: conflicts are never auto-guessed.
func (e *ConflictError) Severity() Severity { return SeveritySessionFatal }

// ClaimError is returned when the registry denies a claim the schedule said
// should succeed. This indicates a scheduling bug and aborts immediately.
type ClaimError struct {
	AgentID      string
	FilePath     string
	CurrentOwner string
}

// NewClaimError creates a ClaimError recording the denial.
func NewClaimError(agentID, filePath, currentOwner string) *ClaimError {
	return &ClaimError{AgentID: agentID, FilePath: filePath, CurrentOwner: currentOwner}
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim denied [agent=%s path=%s owner=%s]: %v",
		e.AgentID, e.FilePath, e.CurrentOwner, ErrClaimDenied)
}

func (e *ClaimError) Unwrap() error { return ErrClaimDenied }

// Severity returns SeveritySessionFatal: registry state inconsistent with
// the schedule is never retried silently.
func (e *ClaimError) Severity() Severity { return SeveritySessionFatal }

// ViolationKind distinguishes the two observable claim violations.
type ViolationKind string

const (
	// UnclaimedEdit is a file changed with no claim entitling the edit.
	UnclaimedEdit ViolationKind = "unclaimed_edit"
	// CrossClaimEdit is a file changed by an agent other than its claimant.
	CrossClaimEdit ViolationKind = "cross_claim_edit"
)

// ViolationError is returned when the monitor observes edits inconsistent
// with the registry.
type ViolationError struct {
	Kind     ViolationKind
	AgentID  string
	FilePath string
}

// NewViolationError creates a ViolationError.
func NewViolationError(kind ViolationKind, agentID, filePath string) *ViolationError {
	return &ViolationError{Kind: kind, AgentID: agentID, FilePath: filePath}
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("claim violation [%s agent=%s path=%s]", e.Kind, e.AgentID, e.FilePath)
}

// Severity returns SeverityBatchFatal for cross-claim edits (risk of
// corrupting another agent's in-progress work) and SeverityWarning for
// unclaimed edits, which an operator may remediate.
func (e *ViolationError) Severity() Severity {
	if e.Kind == CrossClaimEdit {
		return SeverityBatchFatal
	}
	return SeverityWarning
}

// RegistryError is returned when the registry's audit log cannot reproduce
// its current-state projection.
type RegistryError struct {
	FilePath string // first path found inconsistent
	Detail   string
}

// NewRegistryError creates a RegistryError.
func NewRegistryError(filePath, detail string) *RegistryError {
	return &RegistryError{FilePath: filePath, Detail: detail}
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry corruption [path=%s]: %s: %v", e.FilePath, e.Detail, ErrRegistryCorrupt)
}

func (e *RegistryError) Unwrap() error { return ErrRegistryCorrupt }

// Severity returns SeveritySessionFatal: corruption is never auto-repaired.
func (e *RegistryError) Severity() Severity { return SeveritySessionFatal }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// severer is implemented by all typed errors in this package.
type severer interface {
	Severity() Severity
}

// SeverityOf returns the severity of err, walking the wrap chain. Errors
// without an explicit severity default to SeveritySessionFatal so unknown
// failures are never quietly downgraded.
func SeverityOf(err error) Severity {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(severer); ok {
			return s.Severity()
		}
	}
	return SeveritySessionFatal
}

// IsFatal reports whether err terminates at least the current batch.
func IsFatal(err error) bool {
	return SeverityOf(err) >= SeverityBatchFatal
}

// IsRecoverable reports whether the session can continue past err.
func IsRecoverable(err error) bool {
	return SeverityOf(err) == SeverityWarning
}
