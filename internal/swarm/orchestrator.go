package swarm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
	"github.com/Iron-Ham/swarmcoord/internal/event"
	"github.com/Iron-Ham/swarmcoord/internal/logging"
	"github.com/Iron-Ham/swarmcoord/internal/monitor"
	"github.com/Iron-Ham/swarmcoord/internal/plan"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/resolve"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// RemediationMode selects how unclaimed edits found during a batch are
// handled before verification.
type RemediationMode string

const (
	// RemediationNone leaves violations standing; any violation at
	// verification aborts the session.
	RemediationNone RemediationMode = "none"

	// RemediationRetroactive claims the edited file for the offending
	// agent when it is free, clearing the violation.
	RemediationRetroactive RemediationMode = "retroactive_claim"

	// RemediationRevert reverts the offending change via the configured
	// reverter, clearing the violation.
	RemediationRevert RemediationMode = "revert"
)

// ParseRemediation validates a remediation mode string.
func ParseRemediation(s string) (RemediationMode, error) {
	switch m := RemediationMode(s); m {
	case RemediationNone, RemediationRetroactive, RemediationRevert:
		return m, nil
	}
	return "", fmt.Errorf("unknown remediation mode %q", s)
}

// Orchestrator drives the phase state machine. It is the sole writer to the
// registry's mutation API; agents never claim or release directly.
type Orchestrator struct {
	session   *Session
	collector *plan.Collector
	engine    *resolve.Engine
	reg       *registry.Registry
	mon       *monitor.Monitor
	tracker   *monitor.Tracker
	bus       *event.Bus
	logger    *logging.Logger

	runner         AgentRunner
	choose         resolve.ChoiceFunc
	reverter       func(agentID, path string) error
	collectTimeout time.Duration
	staleThreshold time.Duration
	staleInterval  time.Duration
	remediation    RemediationMode

	mu         sync.Mutex
	schedule   *resolve.Schedule
	conflicts  []conflict.Conflict
	changes    []monitor.Change
	violations []monitor.Violation
	remediated bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner sets the agent runner invoked for each batch assignment.
func WithRunner(r AgentRunner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithChoiceFunc sets the per-conflict strategy lookup.
func WithChoiceFunc(f resolve.ChoiceFunc) Option {
	return func(o *Orchestrator) { o.choose = f }
}

// WithCollectTimeout bounds plan collection. Zero waits indefinitely on the
// run context.
func WithCollectTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.collectTimeout = d }
}

// WithStaleThreshold enables the stale claim scan: claims held longer than
// threshold without release are logged every interval.
func WithStaleThreshold(threshold, interval time.Duration) Option {
	return func(o *Orchestrator) {
		o.staleThreshold = threshold
		o.staleInterval = interval
	}
}

// WithRemediation sets the unclaimed edit remediation mode.
func WithRemediation(m RemediationMode) Option {
	return func(o *Orchestrator) { o.remediation = m }
}

// WithReverter sets the callback used by RemediationRevert to undo an
// offending change.
func WithReverter(f func(agentID, path string) error) Option {
	return func(o *Orchestrator) { o.reverter = f }
}

// WithTracker attaches a filesystem tracker whose observations join the
// runner-reported changes at each batch check.
func WithTracker(t *monitor.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// New creates an Orchestrator for one session over the expected agents.
func New(task string, agentIDs []string, reg *registry.Registry, bus *event.Bus, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	o := &Orchestrator{
		session:     NewSession(task, agentIDs, bus),
		reg:         reg,
		bus:         bus,
		remediation: RemediationNone,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logger.WithSwarm(o.session.SwarmID)
	o.collector = plan.NewCollector(agentIDs, bus, o.logger)
	o.engine = resolve.NewEngine(o.logger)
	o.mon = monitor.New(reg, bus, o.logger)
	return o
}

// Session returns the session this orchestrator drives.
func (o *Orchestrator) Session() *Session { return o.session }

// Collector returns the plan collector agents submit to.
func (o *Orchestrator) Collector() *plan.Collector { return o.collector }

// Run drives the session from planning through completion. The returned
// Report is non-nil on every path, including aborts; err is nil only when
// the session reaches PhaseComplete.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if err := o.session.TransitionTo(PhasePlanning, "session started"); err != nil {
		return o.finish(err), err
	}
	o.logger.Info("session started", "task", o.session.Task)

	plans := o.collectPlans(ctx)
	for _, id := range o.collector.Dropped() {
		o.session.setAgent(id, func(st *AgentState) {
			st.Status = AgentDropped
			st.Detail = "no plan submitted before collection closed"
		})
	}
	if len(plans) == 0 {
		return o.abort("no valid plans collected", swarmerr.ErrPlanEmpty)
	}

	if err := o.session.TransitionTo(PhaseConflictDetection, "plan collection closed"); err != nil {
		return o.finish(err), err
	}
	result := conflict.Detect(plans)
	o.mu.Lock()
	o.conflicts = result.Conflicts
	o.mu.Unlock()
	for _, c := range result.Conflicts {
		o.publish(event.NewConflictDetectedEvent(c.Files, c.Agents))
		o.logger.Info("conflict detected", "files", c.Files, "agents", c.Agents)
	}

	schedule, err := o.engine.Resolve(result, o.chooseFunc())
	if err != nil {
		o.markUnresolved(err)
		return o.abort("conflict resolution failed", err)
	}
	o.setSchedule(schedule)

	if err := o.session.TransitionTo(PhaseClaimRegistration, "schedule produced"); err != nil {
		return o.finish(err), err
	}
	if err := o.registerBatch(schedule.Batches[0], false); err != nil {
		return o.abort("claim registration failed", err)
	}

	if err := o.session.TransitionTo(PhaseImplementation, "batch 1 claims registered"); err != nil {
		return o.finish(err), err
	}
	for i, batch := range schedule.Batches {
		if i > 0 {
			// Claims for this batch were registered pending at the
			// previous batch barrier; promote them now.
			if err := o.promoteBatch(batch); err != nil {
				return o.abort("claim promotion failed", err)
			}
		}
		next := resolve.Batch{}
		if i+1 < len(schedule.Batches) {
			next = schedule.Batches[i+1]
		}
		if err := o.runBatch(ctx, batch, next); err != nil {
			return o.abort(fmt.Sprintf("batch %d failed", batch.Number), err)
		}
	}

	if err := o.session.TransitionTo(PhaseVerification, "all batches completed"); err != nil {
		return o.finish(err), err
	}
	if err := o.verify(); err != nil {
		return o.abort("verification failed", err)
	}

	if err := o.session.TransitionTo(PhaseComplete, "zero violations"); err != nil {
		return o.finish(err), err
	}
	o.logger.Info("session complete")
	return o.finish(nil), nil
}

func (o *Orchestrator) collectPlans(ctx context.Context) []plan.Plan {
	cctx := ctx
	if o.collectTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, o.collectTimeout)
		defer cancel()
	}
	return o.collector.Collect(cctx)
}

// chooseFunc returns the configured strategy lookup, or one that chooses
// nothing so every conflict surfaces as unresolved.
func (o *Orchestrator) chooseFunc() resolve.ChoiceFunc {
	if o.choose != nil {
		return o.choose
	}
	return func(conflict.Conflict) (resolve.Choice, bool) { return resolve.Choice{}, false }
}

// markUnresolved records conflict markers in the registry for an aborting
// session so the audit trail names the contested paths.
func (o *Orchestrator) markUnresolved(err error) {
	var ce *swarmerr.ConflictError
	if !swarmerr.As(err, &ce) {
		return
	}
	for _, f := range ce.Files {
		for _, a := range ce.Agents {
			if markErr := o.reg.MarkConflict(a, f); markErr != nil {
				o.logger.Warn("conflict marker failed", "path", f, "error", markErr)
			}
		}
	}
}

func (o *Orchestrator) setSchedule(s *resolve.Schedule) {
	for _, batch := range s.Batches {
		for agentID, files := range batch.Files {
			n, fs := batch.Number, files
			o.session.setAgent(agentID, func(st *AgentState) {
				st.Batch = n
				st.Files = fs
			})
		}
	}
	o.mu.Lock()
	o.schedule = s
	o.mu.Unlock()
}

// registerBatch claims every file in the batch. pending selects queued
// claims for a future batch; active claims are for the batch about to run.
// Any denial is fatal: the registry disagreeing with the schedule is a
// scheduling bug, never retried.
func (o *Orchestrator) registerBatch(b resolve.Batch, pending bool) error {
	for _, agentID := range b.Agents() {
		for _, f := range b.Files[agentID] {
			var err error
			if pending {
				err = o.reg.ClaimPending(agentID, f)
			} else {
				err = o.reg.Claim(agentID, f)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) promoteBatch(b resolve.Batch) error {
	for _, agentID := range b.Agents() {
		for _, f := range b.Files[agentID] {
			if err := o.reg.Promote(agentID, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// runBatch executes one batch: launch all agents concurrently, wait, check
// violations while claims are still active, then release and register the
// next batch's claims as pending. The pending registration after release is
// the batch barrier: no next-batch claim exists until every release in this
// batch is durably recorded.
func (o *Orchestrator) runBatch(ctx context.Context, b, next resolve.Batch) error {
	agents := b.Agents()
	o.publish(event.NewBatchStartedEvent(b.Number, agents))
	o.logger.WithBatch(b.Number).Info("batch started", "agents", agents)

	stopStale := o.watchStale(b.Number)
	err := o.launchAgents(ctx, b)
	stopStale()
	if err != nil {
		o.publish(event.NewBatchCompletedEvent(b.Number, false))
		return err
	}

	violations := o.mon.Check(o.batchChanges())
	if o.tracker != nil {
		o.tracker.Reset()
	}
	o.clearChanges()
	for _, v := range violations {
		if v.Kind == swarmerr.CrossClaimEdit {
			o.publish(event.NewBatchCompletedEvent(b.Number, false))
			return v.Err()
		}
	}
	o.mu.Lock()
	o.violations = append(o.violations, violations...)
	o.mu.Unlock()

	for _, agentID := range agents {
		if _, err := o.reg.ReleaseAll(agentID); err != nil {
			return err
		}
	}
	if len(next.Files) > 0 {
		if err := o.registerBatch(next, true); err != nil {
			return err
		}
	}
	o.publish(event.NewBatchCompletedEvent(b.Number, true))
	o.logger.WithBatch(b.Number).Info("batch completed")
	return nil
}

// launchAgents runs every agent in the batch concurrently and waits for
// all of them. The first agent error aborts the batch.
func (o *Orchestrator) launchAgents(ctx context.Context, b resolve.Batch) error {
	agents := b.Agents()
	var wg sync.WaitGroup
	errs := make([]error, len(agents))

	for i, agentID := range agents {
		o.session.setAgent(agentID, func(st *AgentState) { st.Status = AgentRunning })
		wg.Add(1)
		go func(i int, agentID string) {
			defer wg.Done()
			errs[i] = o.runAgent(ctx, Assignment{
				AgentID: agentID,
				Batch:   b.Number,
				Task:    o.session.Task,
				Files:   b.Files[agentID],
				Amend: func(path string) error {
					return o.requestAmendment(agentID, path)
				},
			})
		}(i, agentID)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("agent %s: %w", agents[i], err)
		}
	}
	return ctx.Err()
}

func (o *Orchestrator) runAgent(ctx context.Context, a Assignment) error {
	if o.runner == nil {
		o.session.setAgent(a.AgentID, func(st *AgentState) { st.Status = AgentDone })
		return nil
	}
	res, err := o.runner.Run(ctx, a)
	if err != nil {
		o.session.setAgent(a.AgentID, func(st *AgentState) {
			st.Status = AgentFailed
			st.Detail = err.Error()
		})
		return err
	}
	o.recordTouched(a.AgentID, res.FilesTouched)
	o.session.setAgent(a.AgentID, func(st *AgentState) {
		st.Status = AgentDone
		st.Detail = res.Summary
	})
	return nil
}

// requestAmendment handles a mid-batch request to claim an additional file.
// Approval claims the file when it is free; denial leaves the plan
// unchanged. Agents never claim for themselves.
func (o *Orchestrator) requestAmendment(agentID, path string) error {
	if owner, held := o.reg.Owner(path); held && owner != agentID {
		o.publish(event.NewAmendmentRequestedEvent(agentID, path, false, "path held by "+owner))
		o.logger.Warn("amendment denied", "agent", agentID, "path", path, "owner", owner)
		return fmt.Errorf("%w: %s held by %s", swarmerr.ErrAmendmentDenied, path, owner)
	}
	if err := o.reg.Claim(agentID, path); err != nil {
		o.publish(event.NewAmendmentRequestedEvent(agentID, path, false, err.Error()))
		return fmt.Errorf("%w: %s", swarmerr.ErrAmendmentDenied, path)
	}
	o.session.setAgent(agentID, func(st *AgentState) {
		st.Files = append(st.Files, path)
		sort.Strings(st.Files)
	})
	o.publish(event.NewAmendmentRequestedEvent(agentID, path, true, ""))
	o.logger.Info("amendment approved", "agent", agentID, "path", path)
	return nil
}

// watchStale scans for claims held past the configured threshold while a
// batch runs. Escalation is a logged warning; agents are never preempted.
func (o *Orchestrator) watchStale(batch int) (stop func()) {
	if o.staleThreshold <= 0 {
		return func() {}
	}
	interval := o.staleInterval
	if interval <= 0 {
		interval = o.staleThreshold
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, c := range o.reg.Stale(o.staleThreshold) {
					o.logger.WithBatch(batch).Warn("stale claim",
						"agent", c.AgentID,
						"path", c.FilePath,
						"held_since", c.ClaimedAt,
					)
				}
			}
		}
	}()
	return func() { close(done) }
}

// recordTouched merges runner-reported file touches into the change set.
func (o *Orchestrator) recordTouched(agentID string, paths []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for _, p := range paths {
		o.changes = append(o.changes, monitor.Change{AgentID: agentID, Path: p, At: now})
	}
}

func (o *Orchestrator) batchChanges() []monitor.Change {
	o.mu.Lock()
	changes := append([]monitor.Change(nil), o.changes...)
	o.mu.Unlock()
	if o.tracker != nil {
		changes = append(changes, o.tracker.Changes()...)
	}
	return changes
}

func (o *Orchestrator) clearChanges() {
	o.mu.Lock()
	o.changes = nil
	o.mu.Unlock()
}

// verify closes out the session: the registry must replay cleanly and no
// violation may remain after at most one remediation pass.
func (o *Orchestrator) verify() error {
	if err := o.reg.Verify(); err != nil {
		return err
	}

	o.mu.Lock()
	outstanding := append([]monitor.Violation(nil), o.violations...)
	o.mu.Unlock()
	if len(outstanding) == 0 {
		return nil
	}

	if o.remediation != RemediationNone && !o.remediated {
		o.remediated = true
		outstanding = o.remediate(outstanding)
		o.mu.Lock()
		o.violations = outstanding
		o.mu.Unlock()
	}
	if len(outstanding) > 0 {
		v := outstanding[0]
		return v.Err()
	}
	return nil
}

// remediate performs the single bounded remediation pass over unclaimed
// edits, returning the violations that could not be cleared.
func (o *Orchestrator) remediate(violations []monitor.Violation) []monitor.Violation {
	var remaining []monitor.Violation
	for _, v := range violations {
		if v.Kind != swarmerr.UnclaimedEdit {
			remaining = append(remaining, v)
			continue
		}
		switch o.remediation {
		case RemediationRetroactive:
			if err := o.reg.Claim(v.AgentID, v.FilePath); err != nil {
				o.logger.Warn("retroactive claim denied", "agent", v.AgentID, "path", v.FilePath, "error", err)
				remaining = append(remaining, v)
				continue
			}
			if _, err := o.reg.Release(v.AgentID, v.FilePath); err != nil {
				remaining = append(remaining, v)
				continue
			}
			o.logger.Info("violation remediated by retroactive claim", "agent", v.AgentID, "path", v.FilePath)
		case RemediationRevert:
			if o.reverter == nil {
				o.logger.Warn("revert remediation configured without a reverter", "agent", v.AgentID, "path", v.FilePath)
				remaining = append(remaining, v)
				continue
			}
			if err := o.reverter(v.AgentID, v.FilePath); err != nil {
				o.logger.Warn("revert failed", "agent", v.AgentID, "path", v.FilePath, "error", err)
				remaining = append(remaining, v)
				continue
			}
			o.logger.Info("violation remediated by revert", "agent", v.AgentID, "path", v.FilePath)
		}
	}
	return remaining
}

// abort transitions to PhaseAborted and assembles the failure report.
func (o *Orchestrator) abort(reason string, err error) (*Report, error) {
	full := fmt.Errorf("%s: %w", reason, err)
	if terr := o.session.Abort(full.Error()); terr != nil {
		o.logger.Error("abort transition failed", "error", terr)
	}
	o.logger.Error("session aborted", "reason", reason, "error", err)
	return o.finish(full), full
}

func (o *Orchestrator) publish(e event.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}
