package resolve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// Kind names a resolution strategy.
type Kind string

const (
	KindSequential Kind = "sequential"
	KindPartition  Kind = "partition"
	KindMerge      Kind = "merge"
	KindSection    Kind = "section"
)

// ParseKind validates a strategy name from configuration or operator input.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindSequential:
		return KindSequential, nil
	case KindPartition:
		return KindPartition, nil
	case KindMerge:
		return KindMerge, nil
	case KindSection:
		return KindSection, nil
	}
	return "", fmt.Errorf("%w: %q", swarmerr.ErrUnknownStrategy, s)
}

// Choice is the operator's resolution decision for one conflict.
type Choice struct {
	Kind Kind

	// Absorber names the agent whose claim set absorbs the contested files
	// under the merge strategy. Empty picks the agent with the largest
	// post-resolution file set (ties broken lexicographically).
	Absorber string

	// Sections maps agent ID to its claimed line range ("1-120") under the
	// section strategy. Every agent in the conflict must have a range.
	Sections map[string]string
}

// ChoiceFunc supplies the chosen strategy for a conflict. A false return
// means no strategy was chosen, which is fatal to the session.
type ChoiceFunc func(c conflict.Conflict) (Choice, bool)

// Strategy applies one resolution kind to a conflict, mutating the
// working claim sets held by the builder.
type Strategy interface {
	Kind() Kind
	Apply(c conflict.Conflict, choice Choice, b *builder) (Resolution, error)
}

// strategies is the registry of known strategy implementations.
var strategies = map[Kind]Strategy{
	KindSequential: sequentialStrategy{},
	KindPartition:  partitionStrategy{},
	KindMerge:      mergeStrategy{},
	KindSection:    sectionStrategy{},
}

// Compile-time checks that every strategy satisfies the interface.
var (
	_ Strategy = sequentialStrategy{}
	_ Strategy = partitionStrategy{}
	_ Strategy = mergeStrategy{}
	_ Strategy = sectionStrategy{}
)

// -----------------------------------------------------------------------------
// Sequential
// -----------------------------------------------------------------------------

// sequentialStrategy places conflicting agents in successive batches. Every
// agent keeps its claim on the shared files; the builder records ordering
// constraints so later agents' claims stay pending until the earlier batch
// releases.
type sequentialStrategy struct{}

func (sequentialStrategy) Kind() Kind { return KindSequential }

func (sequentialStrategy) Apply(c conflict.Conflict, _ Choice, b *builder) (Resolution, error) {
	// Agents run in sorted-ID order; each must finish before the next starts.
	for i := 0; i+1 < len(c.Agents); i++ {
		b.order(c.Agents[i], c.Agents[i+1])
	}

	resolved := c
	resolved.Strategy = string(KindSequential)
	resolved.Detail = fmt.Sprintf("agents %s run in successive batches; later claims pend until %s released",
		strings.Join(c.Agents, " -> "), strings.Join(c.Files, ", "))
	return Resolution{Conflict: resolved}, nil
}

// -----------------------------------------------------------------------------
// Partition
// -----------------------------------------------------------------------------

// partitionStrategy replaces each contested file with per-agent sub-files.
// The physical split is performed outside the engine by convention; the
// engine records the two narrower claims replacing the original.
type partitionStrategy struct{}

func (partitionStrategy) Kind() Kind { return KindPartition }

// PartitionPath is the sub-file naming convention for partitioned claims.
func PartitionPath(path, agentID string) string {
	return path + "@" + agentID
}

func (partitionStrategy) Apply(c conflict.Conflict, _ Choice, b *builder) (Resolution, error) {
	var parts []string
	for _, f := range c.Files {
		for _, agent := range c.Agents {
			if b.owns(agent, f) {
				b.swap(agent, f, PartitionPath(f, agent))
				parts = append(parts, PartitionPath(f, agent))
			}
		}
	}
	sort.Strings(parts)

	resolved := c
	resolved.Strategy = string(KindPartition)
	resolved.Detail = fmt.Sprintf("contested files split by convention into %s", strings.Join(parts, ", "))
	return Resolution{Conflict: resolved}, nil
}

// -----------------------------------------------------------------------------
// Merge
// -----------------------------------------------------------------------------

// mergeStrategy widens one agent's claim set to absorb the contested files
// and removes them from the other agents' plans. Absorbed agents keep their
// batch slot for any remaining files.
type mergeStrategy struct{}

func (mergeStrategy) Kind() Kind { return KindMerge }

func (mergeStrategy) Apply(c conflict.Conflict, choice Choice, b *builder) (Resolution, error) {
	absorber := choice.Absorber
	if absorber == "" {
		absorber = pickAbsorber(c, b)
	} else if !contains(c.Agents, absorber) {
		return Resolution{}, fmt.Errorf("merge absorber %q is not part of the conflict", absorber)
	}

	for _, f := range c.Files {
		for _, agent := range c.Agents {
			if agent != absorber {
				b.drop(agent, f)
			}
		}
		b.add(absorber, f)
	}

	resolved := c
	resolved.Strategy = string(KindMerge)
	resolved.Detail = fmt.Sprintf("%s absorbs %s; absorbed agents keep their remaining files",
		absorber, strings.Join(c.Files, ", "))
	return Resolution{Conflict: resolved}, nil
}

// pickAbsorber chooses the conflict agent with the largest working file set,
// breaking ties by agent ID.
func pickAbsorber(c conflict.Conflict, b *builder) string {
	best := c.Agents[0]
	for _, agent := range c.Agents[1:] {
		if b.fileCount(agent) > b.fileCount(best) {
			best = agent
		}
	}
	return best
}

// -----------------------------------------------------------------------------
// Section
// -----------------------------------------------------------------------------

// sectionStrategy records disjoint line-range sub-claims on the contested
// file. Flagged for manual merge: ranges are claimed independently but the
// file must be reconciled by hand at the end of the session.
type sectionStrategy struct{}

func (sectionStrategy) Kind() Kind { return KindSection }

func (sectionStrategy) Apply(c conflict.Conflict, choice Choice, b *builder) (Resolution, error) {
	if len(choice.Sections) == 0 {
		return Resolution{}, fmt.Errorf("section strategy for %s: no ranges supplied", c.Key())
	}
	type span struct {
		agent  string
		lo, hi int
	}
	spans := make([]span, 0, len(c.Agents))
	for _, agent := range c.Agents {
		rng, ok := choice.Sections[agent]
		if !ok {
			// Missing ranges are reported per file below.
			continue
		}
		lo, hi, err := parseRange(rng)
		if err != nil {
			return Resolution{}, fmt.Errorf("section strategy for %s: agent %s: %w", c.Key(), agent, err)
		}
		for _, s := range spans {
			if lo <= s.hi && s.lo <= hi {
				return Resolution{}, fmt.Errorf("section strategy for %s: ranges %q (%s) and %q (%s) overlap",
					c.Key(), choice.Sections[s.agent], s.agent, rng, agent)
			}
		}
		spans = append(spans, span{agent: agent, lo: lo, hi: hi})
	}

	var claims []string
	for _, f := range c.Files {
		for _, agent := range c.Agents {
			rng, ok := choice.Sections[agent]
			if !ok {
				return Resolution{}, fmt.Errorf("section strategy for %s: agent %s has no range", c.Key(), agent)
			}
			sub := registry.SectionPath(f, rng)
			b.swap(agent, f, sub)
			claims = append(claims, fmt.Sprintf("%s:%s", agent, sub))
		}
	}
	sort.Strings(claims)

	resolved := c
	resolved.Strategy = string(KindSection)
	resolved.Detail = fmt.Sprintf("disjoint range sub-claims %s; manual merge required", strings.Join(claims, ", "))
	return Resolution{Conflict: resolved, ManualMerge: true}, nil
}

// parseRange reads the "N-M" line-range shape used by section sub-claims.
func parseRange(rng string) (lo, hi int, err error) {
	first, second, ok := strings.Cut(rng, "-")
	if ok {
		if lo, err = strconv.Atoi(first); err == nil {
			hi, err = strconv.Atoi(second)
		}
	}
	if !ok || err != nil {
		return 0, 0, fmt.Errorf("range %q is not of the form N-M", rng)
	}
	if lo < 1 || hi < lo {
		return 0, 0, fmt.Errorf("range %q is empty or inverted", rng)
	}
	return lo, hi, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
