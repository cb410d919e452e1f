package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
	"github.com/Iron-Ham/swarmcoord/internal/monitor"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/swarm"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

func sampleReport() *swarm.Report {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &swarm.Report{
		SwarmID:      "swarm-123",
		Task:         "split the storage layer",
		StartedAt:    now,
		FinishedAt:   now.Add(90 * time.Second),
		PhaseReached: swarm.PhaseAborted,
		Aborted:      true,
		Reason:       "verification failed",
		Offender:     "agent agent-2 on core.go",
		Agents: map[string]swarm.AgentState{
			"agent-1": {AgentID: "agent-1", Status: swarm.AgentDone, Batch: 1},
			"agent-2": {AgentID: "agent-2", Status: swarm.AgentDone, Batch: 1},
		},
		Conflicts: []conflict.Conflict{
			{
				Files:    []string{"core.go"},
				Agents:   []string{"agent-1", "agent-2"},
				Strategy: "section",
				Detail:   "disjoint ranges claimed",
			},
		},
		ManualMerge: []string{"core.go"},
		Batches: []swarm.BatchSummary{
			{Number: 1, Files: map[string][]string{
				"agent-1": {"core.go#1-100"},
				"agent-2": {"core.go#101-200"},
			}},
		},
		Violations: []monitor.Violation{
			{Kind: swarmerr.CrossClaimEdit, AgentID: "agent-2", FilePath: "core.go", Claimant: "agent-1"},
		},
		Transitions: []swarm.Transition{
			{To: swarm.PhaseInit, Timestamp: now},
			{From: swarm.PhaseInit, To: swarm.PhasePlanning, Timestamp: now},
		},
		Audit: []registry.AuditRecord{
			{Seq: 1, AgentID: "agent-1", FilePath: "core.go#1-100", Status: registry.StatusClaimed, RecordedAt: now},
		},
	}
}

func TestRenderAbortedReport(t *testing.T) {
	out := (&Renderer{width: 80}).Render(sampleReport())

	for _, want := range []string{
		"swarm-123",
		"split the storage layer",
		"ABORTED",
		"aborted",
		"offending entity: agent agent-2 on core.go",
		"cross_claim_edit",
		"claimed by agent-1",
		"manual merge required: core.go",
		"section",
		"core.go#1-100",
		"batch 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}

func TestRenderCompleteReport(t *testing.T) {
	r := sampleReport()
	r.Aborted = false
	r.Reason = ""
	r.Offender = ""
	r.PhaseReached = swarm.PhaseComplete
	r.Violations = nil

	out := (&Renderer{width: 80}).Render(r)
	if !strings.Contains(out, "COMPLETE") {
		t.Errorf("completed report missing COMPLETE marker\n%s", out)
	}
	if strings.Contains(out, "ABORTED") {
		t.Errorf("completed report should not say ABORTED")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["swarm_id"] != "swarm-123" {
		t.Errorf("swarm_id = %v", decoded["swarm_id"])
	}
	if decoded["aborted"] != true {
		t.Errorf("aborted = %v", decoded["aborted"])
	}
}
