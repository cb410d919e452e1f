package monitor

import (
	"testing"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

func claim(agent, path string, status registry.Status) registry.Claim {
	return registry.Claim{
		AgentID:   agent,
		FilePath:  path,
		ClaimedAt: time.Now(),
		Status:    status,
	}
}

func TestCheckNoViolations(t *testing.T) {
	claims := []registry.Claim{
		claim("agent-1", "a.go", registry.StatusClaimed),
		claim("agent-2", "b.go", registry.StatusClaimed),
	}
	changes := []Change{
		{AgentID: "agent-1", Path: "a.go"},
		{AgentID: "agent-2", Path: "b.go"},
	}

	if got := Check(claims, changes); len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}
}

func TestCheckUnclaimedEdit(t *testing.T) {
	claims := []registry.Claim{
		claim("agent-1", "a.go", registry.StatusClaimed),
	}
	changes := []Change{
		{AgentID: "agent-1", Path: "rogue.go"},
	}

	got := Check(claims, changes)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(got))
	}
	v := got[0]
	if v.Kind != swarmerr.UnclaimedEdit {
		t.Errorf("Kind = %s, want %s", v.Kind, swarmerr.UnclaimedEdit)
	}
	if v.AgentID != "agent-1" || v.FilePath != "rogue.go" {
		t.Errorf("violation = %+v", v)
	}
	if v.Claimant != "" {
		t.Errorf("unclaimed edit should have no claimant, got %q", v.Claimant)
	}
}

func TestCheckCrossClaimEdit(t *testing.T) {
	claims := []registry.Claim{
		claim("owner", "guarded.go", registry.StatusClaimed),
	}
	changes := []Change{
		{AgentID: "intruder", Path: "guarded.go"},
	}

	got := Check(claims, changes)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(got))
	}
	v := got[0]
	if v.Kind != swarmerr.CrossClaimEdit {
		t.Errorf("Kind = %s, want %s", v.Kind, swarmerr.CrossClaimEdit)
	}
	if v.Claimant != "owner" {
		t.Errorf("Claimant = %q, want owner", v.Claimant)
	}
}

func TestCheckPendingClaimStillEntitles(t *testing.T) {
	claims := []registry.Claim{
		claim("agent-1", "queued.go", registry.StatusPending),
	}
	changes := []Change{
		{AgentID: "agent-1", Path: "queued.go"},
	}

	if got := Check(claims, changes); len(got) != 0 {
		t.Fatalf("pending claim should entitle its owner, got %v", got)
	}
}

func TestCheckReleasedClaimGrantsNothing(t *testing.T) {
	claims := []registry.Claim{
		claim("agent-1", "done.go", registry.StatusReleased),
	}
	changes := []Change{
		{AgentID: "agent-1", Path: "done.go"},
	}

	got := Check(claims, changes)
	if len(got) != 1 || got[0].Kind != swarmerr.UnclaimedEdit {
		t.Fatalf("released claim should not entitle edits, got %v", got)
	}
}

func TestCheckSectionClaimCoversFile(t *testing.T) {
	claims := []registry.Claim{
		claim("top", registry.SectionPath("api.go", "1-100"), registry.StatusClaimed),
		claim("bottom", registry.SectionPath("api.go", "101-200"), registry.StatusClaimed),
	}
	changes := []Change{
		{AgentID: "top", Path: "api.go"},
		{AgentID: "bottom", Path: "api.go"},
		{AgentID: "other", Path: "api.go"},
	}

	got := Check(claims, changes)
	if len(got) != 1 {
		t.Fatalf("expected 1 violation, got %v", got)
	}
	if got[0].AgentID != "other" || got[0].Kind != swarmerr.CrossClaimEdit {
		t.Errorf("violation = %+v", got[0])
	}
}

func TestCheckPartitionClaimCoversFile(t *testing.T) {
	claims := []registry.Claim{
		claim("left", "data.go@left", registry.StatusClaimed),
		claim("right", "data.go@right", registry.StatusClaimed),
	}
	changes := []Change{
		{AgentID: "left", Path: "data.go"},
		{AgentID: "right", Path: "data.go"},
	}

	if got := Check(claims, changes); len(got) != 0 {
		t.Fatalf("partition claims should entitle both owners, got %v", got)
	}
}

func TestCheckDeduplicatesRepeatedChanges(t *testing.T) {
	changes := []Change{
		{AgentID: "a", Path: "x.go"},
		{AgentID: "a", Path: "x.go"},
		{AgentID: "a", Path: "x.go"},
	}

	got := Check(nil, changes)
	if len(got) != 1 {
		t.Fatalf("expected deduplicated single violation, got %d", len(got))
	}
}

func TestCheckSortedOutput(t *testing.T) {
	changes := []Change{
		{AgentID: "b", Path: "z.go"},
		{AgentID: "a", Path: "z.go"},
		{AgentID: "c", Path: "a.go"},
	}

	got := Check(nil, changes)
	if len(got) != 3 {
		t.Fatalf("expected 3 violations, got %d", len(got))
	}
	if got[0].FilePath != "a.go" || got[1].AgentID != "a" || got[2].AgentID != "b" {
		t.Errorf("unexpected order: %+v", got)
	}
}
