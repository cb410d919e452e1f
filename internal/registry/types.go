package registry

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a claim. Exactly these four values are
// valid; no other string may appear in the persisted table.
type Status string

const (
	// StatusClaimed grants the owning agent exclusive edit rights.
	StatusClaimed Status = "claimed"

	// StatusPending is a queued claim awaiting promotion, used by the
	// sequential strategy between batch activation and agent launch.
	StatusPending Status = "pending"

	// StatusReleased marks a completed claim, archived for audit.
	StatusReleased Status = "released"

	// StatusConflict marks a claim recorded for a contested path when a
	// session aborts unresolved. Audit-only; never active.
	StatusConflict Status = "conflict"
)

// Active reports whether the status grants or reserves edit rights.
func (s Status) Active() bool {
	return s == StatusClaimed || s == StatusPending
}

// Valid reports whether s is one of the four defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusClaimed, StatusPending, StatusReleased, StatusConflict:
		return true
	}
	return false
}

// Claim asserts one agent's right to edit one file path for the duration of
// a batch. For section-based sub-claims the path carries a "#range" suffix
// (for example "pkg/foo.go#1-120").
type Claim struct {
	AgentID   string    `json:"agent_id"`
	FilePath  string    `json:"file_path"`
	ClaimedAt time.Time `json:"claimed_at"`
	Status    Status    `json:"status"`
}

// SectionPath builds a registry path for a section-based sub-claim.
func SectionPath(filePath, byteRange string) string {
	return filePath + "#" + byteRange
}

// BasePath strips any "#range" suffix, returning the underlying file path.
func BasePath(registryPath string) string {
	if i := strings.IndexByte(registryPath, '#'); i >= 0 {
		return registryPath[:i]
	}
	return registryPath
}

// AuditRecord is one immutable entry in the claim history. Records are
// totally ordered by Seq; the sequence is assigned under the registry's
// single writer lock.
type AuditRecord struct {
	Seq        uint64    `json:"seq"`
	AgentID    string    `json:"agent_id"`
	FilePath   string    `json:"file_path"`
	ClaimedAt  time.Time `json:"claimed_at"`
	Status     Status    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (r AuditRecord) String() string {
	return fmt.Sprintf("#%d %s %s %s", r.Seq, r.Status, r.FilePath, r.AgentID)
}
