package swarm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
	"github.com/Iron-Ham/swarmcoord/internal/plan"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/resolve"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

func newTestOrchestrator(t *testing.T, agents []string, opts ...Option) *Orchestrator {
	t.Helper()
	reg, err := registry.New("", nil)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return New("build the feature", agents, reg, nil, nil, opts...)
}

func modifyPlan(agentID string, files ...string) plan.Plan {
	return plan.Plan{
		AgentID:       agentID,
		TaskSummary:   "work for " + agentID,
		FilesToModify: files,
	}
}

// touchClaims is a runner that reports exactly its assigned files touched.
func touchClaims() AgentRunner {
	return RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		return Result{FilesTouched: claimBases(a.Files)}, nil
	})
}

func claimBases(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, registry.BasePath(p))
	}
	return out
}

func submitAll(t *testing.T, o *Orchestrator, plans ...plan.Plan) {
	t.Helper()
	for _, p := range plans {
		if err := o.Collector().Submit(p); err != nil {
			t.Fatalf("Submit(%s): %v", p.AgentID, err)
		}
	}
}

func TestRunDisjointPlansCompletesInOneBatch(t *testing.T) {
	o := newTestOrchestrator(t, []string{"agent-1", "agent-2"},
		WithRunner(touchClaims()))
	submitAll(t, o,
		modifyPlan("agent-1", "a.go"),
		modifyPlan("agent-2", "b.go"),
	)

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PhaseReached != PhaseComplete {
		t.Fatalf("phase reached = %s, want %s", report.PhaseReached, PhaseComplete)
	}
	if len(report.Batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(report.Batches))
	}
	if len(report.Conflicts) != 0 {
		t.Errorf("unexpected conflicts: %v", report.Conflicts)
	}
	for _, id := range []string{"agent-1", "agent-2"} {
		if st := report.Agents[id]; st.Status != AgentDone {
			t.Errorf("agent %s status = %s, want %s", id, st.Status, AgentDone)
		}
	}
}

func TestRunSequentialConflictTwoBatches(t *testing.T) {
	o := newTestOrchestrator(t, []string{"agent-x", "agent-y"},
		WithRunner(touchClaims()),
		WithChoiceFunc(func(conflict.Conflict) (resolve.Choice, bool) {
			return resolve.Choice{Kind: resolve.KindSequential}, true
		}))
	submitAll(t, o,
		modifyPlan("agent-x", "shared.go"),
		modifyPlan("agent-y", "shared.go"),
	)

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PhaseReached != PhaseComplete {
		t.Fatalf("phase reached = %s", report.PhaseReached)
	}
	if len(report.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(report.Batches))
	}

	// Audit for the contested path must show the full sequential
	// lifecycle in order: x claims and releases, then y queues, is
	// promoted, and releases.
	var statuses []registry.Status
	var owners []string
	for _, rec := range report.Audit {
		if rec.FilePath == "shared.go" {
			statuses = append(statuses, rec.Status)
			owners = append(owners, rec.AgentID)
		}
	}
	wantStatuses := []registry.Status{
		registry.StatusClaimed,
		registry.StatusReleased,
		registry.StatusPending,
		registry.StatusClaimed,
		registry.StatusReleased,
	}
	wantOwners := []string{"agent-x", "agent-x", "agent-y", "agent-y", "agent-y"}
	if len(statuses) != len(wantStatuses) {
		t.Fatalf("audit entries for shared.go = %v (owners %v)", statuses, owners)
	}
	for i := range wantStatuses {
		if statuses[i] != wantStatuses[i] || owners[i] != wantOwners[i] {
			t.Errorf("audit[%d] = %s/%s, want %s/%s",
				i, owners[i], statuses[i], wantOwners[i], wantStatuses[i])
		}
	}
}

func TestRunUnresolvedConflictAborts(t *testing.T) {
	o := newTestOrchestrator(t, []string{"a", "b"})
	submitAll(t, o,
		modifyPlan("a", "shared.go"),
		modifyPlan("b", "shared.go"),
	)

	report, err := o.Run(context.Background())
	if !errors.Is(err, swarmerr.ErrNoStrategy) {
		t.Fatalf("expected ErrNoStrategy, got %v", err)
	}
	if report.PhaseReached != PhaseAborted {
		t.Fatalf("phase reached = %s, want %s", report.PhaseReached, PhaseAborted)
	}
	if report.Offender == "" {
		t.Error("aborted report should name the offending entity")
	}

	// Contested paths are marked in the audit trail on unresolved abort.
	marked := false
	for _, rec := range report.Audit {
		if rec.FilePath == "shared.go" && rec.Status == registry.StatusConflict {
			marked = true
		}
	}
	if !marked {
		t.Error("audit trail missing conflict marker for shared.go")
	}
}

func TestRunUnclaimedEditAbortsWithoutRemediation(t *testing.T) {
	rogue := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		return Result{FilesTouched: append(claimBases(a.Files), "rogue.go")}, nil
	})
	o := newTestOrchestrator(t, []string{"agent-1"}, WithRunner(rogue))
	submitAll(t, o, modifyPlan("agent-1", "a.go"))

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected verification failure")
	}
	var ve *swarmerr.ViolationError
	if !errors.As(err, &ve) || ve.Kind != swarmerr.UnclaimedEdit {
		t.Fatalf("expected unclaimed edit violation, got %v", err)
	}
	if report.PhaseReached != PhaseAborted {
		t.Errorf("phase reached = %s", report.PhaseReached)
	}
	if len(report.Violations) == 0 {
		t.Error("report missing violations")
	}
}

func TestRunUnclaimedEditRemediatedRetroactively(t *testing.T) {
	rogue := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		return Result{FilesTouched: append(claimBases(a.Files), "rogue.go")}, nil
	})
	o := newTestOrchestrator(t, []string{"agent-1"},
		WithRunner(rogue),
		WithRemediation(RemediationRetroactive))
	submitAll(t, o, modifyPlan("agent-1", "a.go"))

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PhaseReached != PhaseComplete {
		t.Fatalf("phase reached = %s", report.PhaseReached)
	}

	// The retroactive claim and its release appear in the audit trail.
	var got []registry.Status
	for _, rec := range report.Audit {
		if rec.FilePath == "rogue.go" {
			got = append(got, rec.Status)
		}
	}
	if len(got) != 2 || got[0] != registry.StatusClaimed || got[1] != registry.StatusReleased {
		t.Errorf("rogue.go audit = %v, want [claimed released]", got)
	}
}

func TestRunUnclaimedEditRemediatedByRevert(t *testing.T) {
	rogue := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		return Result{FilesTouched: append(claimBases(a.Files), "rogue.go")}, nil
	})
	var reverted []string
	o := newTestOrchestrator(t, []string{"agent-1"},
		WithRunner(rogue),
		WithRemediation(RemediationRevert),
		WithReverter(func(agentID, path string) error {
			reverted = append(reverted, path)
			return nil
		}))
	submitAll(t, o, modifyPlan("agent-1", "a.go"))

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PhaseReached != PhaseComplete {
		t.Fatalf("phase reached = %s", report.PhaseReached)
	}
	if len(reverted) != 1 || reverted[0] != "rogue.go" {
		t.Errorf("reverted = %v, want [rogue.go]", reverted)
	}
}

func TestRunRevertWithoutReverterAborts(t *testing.T) {
	rogue := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		return Result{FilesTouched: append(claimBases(a.Files), "rogue.go")}, nil
	})
	o := newTestOrchestrator(t, []string{"agent-1"},
		WithRunner(rogue),
		WithRemediation(RemediationRevert))
	submitAll(t, o, modifyPlan("agent-1", "a.go"))

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected revert without a reverter to abort")
	}
	var ve *swarmerr.ViolationError
	if !swarmerr.As(err, &ve) || ve.Kind != swarmerr.UnclaimedEdit {
		t.Fatalf("error = %v, want unclaimed edit violation", err)
	}
	if !report.Aborted || report.PhaseReached != PhaseAborted {
		t.Errorf("aborted = %v, phase = %s", report.Aborted, report.PhaseReached)
	}
}

func TestRunCrossClaimEditFatal(t *testing.T) {
	intrude := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		if a.AgentID == "intruder" {
			return Result{FilesTouched: []string{"guarded.go"}}, nil
		}
		return Result{FilesTouched: claimBases(a.Files)}, nil
	})
	o := newTestOrchestrator(t, []string{"owner", "intruder"}, WithRunner(intrude))
	submitAll(t, o,
		modifyPlan("owner", "guarded.go"),
		modifyPlan("intruder", "other.go"),
	)

	report, err := o.Run(context.Background())
	var ve *swarmerr.ViolationError
	if !errors.As(err, &ve) || ve.Kind != swarmerr.CrossClaimEdit {
		t.Fatalf("expected cross claim violation, got %v", err)
	}
	if report.PhaseReached != PhaseAborted {
		t.Errorf("phase reached = %s", report.PhaseReached)
	}
	if swarmerr.SeverityOf(err) != swarmerr.SeverityBatchFatal {
		t.Errorf("severity = %v, want batch fatal", swarmerr.SeverityOf(err))
	}
}

func TestRunAgentFailureAborts(t *testing.T) {
	boom := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		return Result{}, errors.New("compile failed")
	})
	o := newTestOrchestrator(t, []string{"agent-1"}, WithRunner(boom))
	submitAll(t, o, modifyPlan("agent-1", "a.go"))

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected batch failure")
	}
	if report.PhaseReached != PhaseAborted {
		t.Errorf("phase reached = %s", report.PhaseReached)
	}
	if st := report.Agents["agent-1"]; st.Status != AgentFailed {
		t.Errorf("agent status = %s, want %s", st.Status, AgentFailed)
	}
}

func TestRunAmendmentApprovedWhenFree(t *testing.T) {
	amending := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		if err := a.Amend("extra.go"); err != nil {
			return Result{}, err
		}
		return Result{FilesTouched: append(claimBases(a.Files), "extra.go")}, nil
	})
	o := newTestOrchestrator(t, []string{"agent-1"}, WithRunner(amending))
	submitAll(t, o, modifyPlan("agent-1", "a.go"))

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PhaseReached != PhaseComplete {
		t.Fatalf("phase reached = %s", report.PhaseReached)
	}
	if len(report.Violations) != 0 {
		t.Errorf("amended file flagged as violation: %v", report.Violations)
	}
}

func TestRunAmendmentDeniedWhenHeld(t *testing.T) {
	greedy := RunnerFunc(func(_ context.Context, a Assignment) (Result, error) {
		if a.AgentID == "second" {
			if err := a.Amend("first.go"); !errors.Is(err, swarmerr.ErrAmendmentDenied) {
				return Result{}, errors.New("amendment for held path was not denied")
			}
		}
		return Result{FilesTouched: claimBases(a.Files)}, nil
	})
	o := newTestOrchestrator(t, []string{"first", "second"}, WithRunner(greedy))
	submitAll(t, o,
		modifyPlan("first", "first.go"),
		modifyPlan("second", "second.go"),
	)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunDropsSilentAgents(t *testing.T) {
	o := newTestOrchestrator(t, []string{"present", "silent"},
		WithRunner(touchClaims()),
		WithCollectTimeout(50*time.Millisecond))
	submitAll(t, o, modifyPlan("present", "a.go"))

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PhaseReached != PhaseComplete {
		t.Fatalf("phase reached = %s", report.PhaseReached)
	}
	if len(report.DroppedAgents) != 1 || report.DroppedAgents[0] != "silent" {
		t.Errorf("DroppedAgents = %v, want [silent]", report.DroppedAgents)
	}
	if st := report.Agents["silent"]; st.Status != AgentDropped {
		t.Errorf("silent agent status = %s, want %s", st.Status, AgentDropped)
	}
}

func TestRunNoPlansAborts(t *testing.T) {
	o := newTestOrchestrator(t, []string{"silent"},
		WithCollectTimeout(50*time.Millisecond))

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected abort with no plans")
	}
	if report.PhaseReached != PhaseAborted {
		t.Errorf("phase reached = %s", report.PhaseReached)
	}
}

func TestParseRemediation(t *testing.T) {
	for _, valid := range []string{"none", "retroactive_claim", "revert"} {
		if _, err := ParseRemediation(valid); err != nil {
			t.Errorf("ParseRemediation(%q): %v", valid, err)
		}
	}
	if _, err := ParseRemediation("rollback"); err == nil {
		t.Error("ParseRemediation(rollback) should fail")
	}
}
