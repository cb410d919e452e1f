// Package monitor observes file modifications during the implementation
// phase and checks them against the claim registry.
//
// Two pieces cooperate: Tracker watches agent worktrees via fsnotify and
// attributes filesystem events to agents, and Check compares accumulated
// changes against a claim snapshot to classify violations. A file changed
// with no claim at all is an unclaimed edit; a file changed by an agent
// other than its claimant is a cross claim edit.
package monitor
