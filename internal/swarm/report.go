package swarm

import (
	"strings"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
	"github.com/Iron-Ham/swarmcoord/internal/monitor"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// BatchSummary is one scheduled batch as it appears in the final report.
type BatchSummary struct {
	Number int                 `json:"number"`
	Files  map[string][]string `json:"files"` // agent ID -> claim paths
}

// Report is the session's final output. Every run produces one, fatal or
// not; a fatal end names the phase reached and the offending entity and
// always carries the full claim audit trail.
type Report struct {
	SwarmID    string    `json:"swarm_id"`
	Task       string    `json:"task"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	PhaseReached Phase  `json:"phase_reached"`
	Aborted      bool   `json:"aborted"`
	Reason       string `json:"reason,omitempty"`
	Offender     string `json:"offender,omitempty"`

	Agents        map[string]AgentState  `json:"agents"`
	DroppedAgents []string               `json:"dropped_agents,omitempty"`
	Conflicts     []conflict.Conflict    `json:"conflicts,omitempty"`
	Batches       []BatchSummary         `json:"batches,omitempty"`
	ManualMerge   []string               `json:"manual_merge,omitempty"`
	Violations    []monitor.Violation    `json:"violations,omitempty"`
	Transitions   []Transition           `json:"transitions"`
	Audit         []registry.AuditRecord `json:"audit"`
}

// finish assembles the report from the session's current state. err is the
// fatal error for aborted runs, nil for completed ones.
func (o *Orchestrator) finish(err error) *Report {
	r := &Report{
		SwarmID:       o.session.SwarmID,
		Task:          o.session.Task,
		StartedAt:     o.session.StartedAt,
		FinishedAt:    time.Now(),
		PhaseReached:  o.session.Phase(),
		Agents:        o.session.Agents(),
		DroppedAgents: o.collector.Dropped(),
		Transitions:   o.session.History(),
		Audit:         o.reg.History(),
	}
	if err != nil {
		r.Aborted = true
		r.Reason = err.Error()
		r.Offender = offenderOf(err)
	}

	o.mu.Lock()
	r.Violations = append(r.Violations, o.violations...)
	if o.schedule != nil {
		for _, b := range o.schedule.Batches {
			r.Batches = append(r.Batches, BatchSummary{Number: b.Number, Files: b.Files})
		}
		for _, res := range o.schedule.Resolutions {
			r.Conflicts = append(r.Conflicts, res.Conflict)
		}
		r.ManualMerge = o.schedule.ManualMergeFiles()
	} else {
		// No schedule means resolution never completed; report the raw
		// detected conflicts instead.
		r.Conflicts = append(r.Conflicts, o.conflicts...)
	}
	o.mu.Unlock()
	return r
}

// offenderOf names the offending entity for a fatal error.
func offenderOf(err error) string {
	var (
		ce *swarmerr.ConflictError
		le *swarmerr.ClaimError
		ve *swarmerr.ViolationError
		re *swarmerr.RegistryError
		pe *swarmerr.PlanError
	)
	switch {
	case swarmerr.As(err, &ve):
		return "agent " + ve.AgentID + " on " + ve.FilePath
	case swarmerr.As(err, &le):
		return "agent " + le.AgentID + " on " + le.FilePath
	case swarmerr.As(err, &ce):
		return "files " + strings.Join(ce.Files, ", ")
	case swarmerr.As(err, &re):
		return "registry path " + re.FilePath
	case swarmerr.As(err, &pe):
		return "agent " + pe.AgentID
	}
	return ""
}
