package registry

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/event"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// Registry manages file claims for a swarm session. See the package
// documentation for the invariant and lifecycle it enforces.
type Registry struct {
	mu      sync.RWMutex
	active  map[string]Claim // path -> active claim (claimed or pending)
	archive []Claim          // released/conflict claims in audit order
	log     *auditLog
	bus     *event.Bus
	clock   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source. Tests use this to control ClaimedAt.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// New opens a Registry persisted under sessionDir, replaying any existing
// audit log so reopened sessions see prior claims. An empty sessionDir keeps
// the registry memory-only.
func New(sessionDir string, bus *event.Bus, opts ...Option) (*Registry, error) {
	log, err := newAuditLog(sessionDir)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		active: make(map[string]Claim),
		log:    log,
		bus:    bus,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	// Rebuild the projection from replayed history.
	active, archive, err := replay(log.all())
	if err != nil {
		return nil, err
	}
	r.active = active
	r.archive = archive
	return r, nil
}

// replay folds an audit history into the projection it implies.
func replay(records []AuditRecord) (map[string]Claim, []Claim, error) {
	active := make(map[string]Claim)
	var archive []Claim

	for _, rec := range records {
		if !rec.Status.Valid() {
			return nil, nil, swarmerr.NewRegistryError(rec.FilePath,
				fmt.Sprintf("audit record %d has invalid status %q", rec.Seq, rec.Status))
		}
		claim := Claim{
			AgentID:   rec.AgentID,
			FilePath:  rec.FilePath,
			ClaimedAt: rec.ClaimedAt,
			Status:    rec.Status,
		}
		switch rec.Status {
		case StatusClaimed, StatusPending:
			if cur, ok := active[rec.FilePath]; ok && cur.AgentID != rec.AgentID {
				return nil, nil, swarmerr.NewRegistryError(rec.FilePath,
					fmt.Sprintf("audit record %d claims a path already active for %s", rec.Seq, cur.AgentID))
			}
			active[rec.FilePath] = claim
		case StatusReleased:
			if cur, ok := active[rec.FilePath]; ok && cur.AgentID == rec.AgentID {
				delete(active, rec.FilePath)
			}
			archive = append(archive, claim)
		case StatusConflict:
			archive = append(archive, claim)
		}
	}
	return active, archive, nil
}

// record appends an audit entry and then applies fn to the projection, in
// that order, so the log always leads the derived state.
// Caller must hold the write lock.
func (r *Registry) record(agentID, path string, claimedAt time.Time, status Status, fn func()) error {
	rec := AuditRecord{
		Seq:        r.log.nextSeq(),
		AgentID:    agentID,
		FilePath:   path,
		ClaimedAt:  claimedAt,
		Status:     status,
		RecordedAt: r.clock(),
	}
	if err := r.log.append(rec); err != nil {
		return err
	}
	fn()
	return nil
}

// Claim registers an exclusive claimed-status claim for the agent on path.
// Claiming a path the agent already holds is a no-op, not a duplicate
// record. A path actively held by another agent returns a *swarmerr.ClaimError
// carrying the current owner. A pending claim held by the same agent is
// promoted.
func (r *Registry) Claim(agentID, path string) error {
	r.mu.Lock()
	changed, err := r.claimLocked(agentID, path, StatusClaimed)
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if changed && r.bus != nil {
		r.bus.Publish(event.NewClaimRegisteredEvent(agentID, path))
	}
	return nil
}

// ClaimPending registers a pending-status claim: the path is reserved for
// the agent but editing must wait for promotion. Denial rules match Claim.
func (r *Registry) ClaimPending(agentID, path string) error {
	r.mu.Lock()
	changed, err := r.claimLocked(agentID, path, StatusPending)
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if changed && r.bus != nil {
		r.bus.Publish(event.NewClaimPendingEvent(agentID, path))
	}
	return nil
}

// claimLocked performs a single claim while the write lock is held.
// Returns whether a new audit record was written, for post-lock event
// publishing; idempotent re-claims change nothing.
func (r *Registry) claimLocked(agentID, path string, status Status) (bool, error) {
	if existing, ok := r.active[path]; ok {
		if existing.AgentID != agentID {
			return false, swarmerr.NewClaimError(agentID, path, existing.AgentID)
		}
		if existing.Status == status || status == StatusPending {
			return false, nil // idempotent
		}
		// pending -> claimed promotion keeps the original ClaimedAt.
		err := r.record(agentID, path, existing.ClaimedAt, StatusClaimed, func() {
			existing.Status = StatusClaimed
			r.active[path] = existing
		})
		return err == nil, err
	}

	now := r.clock()
	err := r.record(agentID, path, now, status, func() {
		r.active[path] = Claim{
			AgentID:   agentID,
			FilePath:  path,
			ClaimedAt: now,
			Status:    status,
		}
	})
	return err == nil, err
}

// Promote transitions the agent's pending claim on path to claimed.
// Promoting an already-claimed path held by the same agent is a no-op.
func (r *Registry) Promote(agentID, path string) error {
	return r.Claim(agentID, path)
}

// Release transitions the agent's active claim on path to released and
// archives it. Releasing an unclaimed or already-released path is a no-op
// returning false. Releasing a path actively held by another agent returns
// ErrNotOwner.
func (r *Registry) Release(agentID, path string) (bool, error) {
	r.mu.Lock()
	released, err := r.releaseLocked(agentID, path)
	r.mu.Unlock()

	if err != nil {
		return false, err
	}
	if released && r.bus != nil {
		r.bus.Publish(event.NewClaimReleasedEvent(agentID, path))
	}
	return released, nil
}

func (r *Registry) releaseLocked(agentID, path string) (bool, error) {
	existing, ok := r.active[path]
	if !ok {
		return false, nil // idempotent no-op
	}
	if existing.AgentID != agentID {
		return false, fmt.Errorf("%w: %s holds %s", swarmerr.ErrNotOwner, existing.AgentID, path)
	}

	err := r.record(agentID, path, existing.ClaimedAt, StatusReleased, func() {
		delete(r.active, path)
		released := existing
		released.Status = StatusReleased
		r.archive = append(r.archive, released)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseAll releases every active claim held by agentID, in sorted path
// order. Returns the released paths.
func (r *Registry) ReleaseAll(agentID string) ([]string, error) {
	r.mu.Lock()
	var paths []string
	for path, claim := range r.active {
		if claim.AgentID == agentID {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	var released []string
	for _, path := range paths {
		ok, err := r.releaseLocked(agentID, path)
		if err != nil {
			r.mu.Unlock()
			return released, err
		}
		if ok {
			released = append(released, path)
		}
	}
	r.mu.Unlock()

	if r.bus != nil {
		for _, path := range released {
			r.bus.Publish(event.NewClaimReleasedEvent(agentID, path))
		}
	}
	return released, nil
}

// MarkConflict records an audit-only conflict entry for a contested path.
// The orchestrator uses this to leave a durable trace of unresolved
// conflicts before aborting. No active claim is created.
func (r *Registry) MarkConflict(agentID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	return r.record(agentID, path, now, StatusConflict, func() {
		r.archive = append(r.archive, Claim{
			AgentID:   agentID,
			FilePath:  path,
			ClaimedAt: now,
			Status:    StatusConflict,
		})
	})
}

// Query returns the active claim on path, if any.
func (r *Registry) Query(path string) (Claim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.active[path]
	return claim, ok
}

// Owner returns the agent actively holding path, or ("", false).
func (r *Registry) Owner(path string) (string, bool) {
	claim, ok := r.Query(path)
	if !ok {
		return "", false
	}
	return claim.AgentID, true
}

// AgentFiles returns the paths actively claimed by agentID, sorted.
func (r *Registry) AgentFiles(agentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var files []string
	for path, claim := range r.active {
		if claim.AgentID == agentID {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files
}

// Snapshot returns a point-in-time view of every claim, archived and active,
// sorted by path then claim time. The violation monitor and reporting read
// this; it never exposes internal state.
func (r *Registry) Snapshot() []Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Claim, 0, len(r.archive)+len(r.active))
	out = append(out, r.archive...)
	for _, claim := range r.active {
		out = append(out, claim)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].ClaimedAt.Before(out[j].ClaimedAt)
	})
	return out
}

// History returns the full ordered audit trail.
func (r *Registry) History() []AuditRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.log.all()
}

// Stale returns active claimed-status claims older than threshold, sorted by
// path. The orchestrator escalates these; the registry itself never
// force-releases.
func (r *Registry) Stale(threshold time.Duration) []Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := r.clock().Add(-threshold)
	var stale []Claim
	for _, claim := range r.active {
		if claim.Status == StatusClaimed && claim.ClaimedAt.Before(cutoff) {
			stale = append(stale, claim)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].FilePath < stale[j].FilePath })
	return stale
}

// Verify replays the audit log and compares the result against the live
// projection. A mismatch returns a *swarmerr.RegistryError; it is never
// auto-repaired.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	replayed, _, err := replay(r.log.all())
	if err != nil {
		return err
	}

	for path, claim := range r.active {
		rc, ok := replayed[path]
		if !ok {
			return swarmerr.NewRegistryError(path, "active claim missing from audit replay")
		}
		if rc.AgentID != claim.AgentID || rc.Status != claim.Status {
			return swarmerr.NewRegistryError(path, fmt.Sprintf(
				"projection has %s/%s, audit replay has %s/%s",
				claim.AgentID, claim.Status, rc.AgentID, rc.Status))
		}
	}
	for path := range replayed {
		if _, ok := r.active[path]; !ok {
			return swarmerr.NewRegistryError(path, "audit replay has active claim absent from projection")
		}
	}
	return nil
}

// WriteTable writes the snapshot as the canonical four-column table external
// tooling audits: agent_id | file_path | claimed_at (ISO-8601) | status.
func (r *Registry) WriteTable(w io.Writer) error {
	for _, claim := range r.Snapshot() {
		_, err := fmt.Fprintf(w, "%s | %s | %s | %s\n",
			claim.AgentID,
			claim.FilePath,
			claim.ClaimedAt.UTC().Format(time.RFC3339),
			claim.Status,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
