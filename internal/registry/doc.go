// Package registry implements the claims registry, the single source of
// truth for which agent may edit which file during a swarm session.
//
// The registry is an append-only audit log with a derived current-state
// projection. Every mutation appends an immutable audit record to
// {sessionDir}/claims.jsonl before updating the projection, so the full
// claim history is always reconstructable; Verify replays the log and
// reports corruption if the projection disagrees.
//
// # Invariant
//
// For any file path, at most one claim is active (status claimed or pending)
// at any instant. All mutating operations are serialized behind a single
// mutex to preserve this under concurrent calls; reads may proceed
// concurrently and observe either the pre- or post-write state, never a torn
// claim.
//
// # Claim lifecycle
//
//	claimed  -> released   (agent reported completion)
//	pending  -> claimed    (prior batch released the path)
//	pending  -> released   (claim withdrawn before promotion)
//
// Released claims are archived, not deleted. A claim may also be recorded
// with status conflict when a session aborts on an unresolved conflict; such
// records are audit-only and never active.
//
// # Usage
//
//	reg, err := registry.New(sessionDir, bus)
//
//	err = reg.Claim("agent-1", "pkg/foo.go")
//	owner, ok := reg.Owner("pkg/foo.go")
//	released, err := reg.Release("agent-1", "pkg/foo.go")
//	claims := reg.Snapshot()
//
// Only the orchestrator calls Claim, Promote, and Release. Agents query
// ownership read-only via Query/Owner before each edit.
package registry
