// Package resolve turns detected plan conflicts into a conflict-free batch
// schedule. Each conflict is resolved by an operator-chosen strategy; the
// engine never infers one:
//
//   - sequential: conflicting agents run in successive batches; the later
//     agent's claim on the shared file stays pending until the earlier agent
//     releases it.
//   - partition: the contested file is split into per-agent sub-files by
//     convention; the physical split happens outside the engine, which only
//     records the narrower claims replacing the original.
//   - merge: one agent's claim set absorbs the contested file; the absorbed
//     agent's plan loses the file but keeps a batch slot for its remaining
//     files.
//   - section: agents claim disjoint line ranges of the same file, recorded
//     as "path#range" sub-claims. Higher risk: the ranges must be merged
//     manually at the end, and section claims do not compose with other
//     strategies on the same file.
//
// The resulting schedule guarantees that within a batch every claimed path
// has exactly one claimant, and that any path shared across batches is
// strictly ordered.
package resolve
