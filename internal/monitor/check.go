package monitor

import (
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/swarmcoord/internal/event"
	"github.com/Iron-Ham/swarmcoord/internal/logging"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// Change is one attributed file modification.
type Change struct {
	AgentID string    // Agent whose worktree produced the event
	Path    string    // Path relative to the agent's worktree root
	At      time.Time // When the modification was observed
}

// Violation is an observed edit inconsistent with the claim registry.
type Violation struct {
	Kind     swarmerr.ViolationKind
	AgentID  string
	FilePath string
	Claimant string // Owning agent for cross claim edits, empty otherwise
	At       time.Time
}

// Err converts the violation into the error taxonomy for severity routing.
func (v Violation) Err() error {
	return swarmerr.NewViolationError(v.Kind, v.AgentID, v.FilePath)
}

// claimFile maps a registry path back to the file it covers. Section claims
// carry a "#range" suffix and partitioned claims an "@owner" suffix; both
// entitle edits to the underlying file.
func claimFile(c registry.Claim) string {
	p := registry.BasePath(c.FilePath)
	return strings.TrimSuffix(p, "@"+c.AgentID)
}

// Check classifies changes against a claim snapshot. Claims that are not
// active (released or conflict markers) grant nothing. The result is sorted
// by file path then agent so repeated checks over the same inputs agree.
func Check(claims []registry.Claim, changes []Change) []Violation {
	// file path -> set of agents holding an active claim covering it
	entitled := make(map[string]map[string]bool)
	for _, c := range claims {
		if !c.Status.Active() {
			continue
		}
		f := claimFile(c)
		if entitled[f] == nil {
			entitled[f] = make(map[string]bool)
		}
		entitled[f][c.AgentID] = true
	}

	seen := make(map[string]bool)
	var out []Violation
	for _, ch := range changes {
		key := ch.AgentID + "\x00" + ch.Path
		if seen[key] {
			continue
		}
		seen[key] = true

		holders := entitled[ch.Path]
		if holders[ch.AgentID] {
			continue
		}
		v := Violation{AgentID: ch.AgentID, FilePath: ch.Path, At: ch.At}
		if len(holders) == 0 {
			v.Kind = swarmerr.UnclaimedEdit
		} else {
			v.Kind = swarmerr.CrossClaimEdit
			owners := make([]string, 0, len(holders))
			for a := range holders {
				owners = append(owners, a)
			}
			sort.Strings(owners)
			v.Claimant = owners[0]
		}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

// Monitor ties a Tracker's observations to the live registry.
type Monitor struct {
	reg    *registry.Registry
	bus    *event.Bus
	logger *logging.Logger
}

// New creates a Monitor. A nil bus disables event publication; a nil logger
// disables logging.
func New(reg *registry.Registry, bus *event.Bus, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Monitor{reg: reg, bus: bus, logger: logger}
}

// Check classifies the given changes against the registry's current claims,
// publishing a ViolationDetectedEvent per violation.
func (m *Monitor) Check(changes []Change) []Violation {
	violations := Check(m.reg.Snapshot(), changes)
	for _, v := range violations {
		m.logger.Warn("claim violation",
			"kind", string(v.Kind),
			"agent", v.AgentID,
			"path", v.FilePath,
			"claimant", v.Claimant,
		)
		if m.bus != nil {
			m.bus.Publish(event.NewViolationDetectedEvent(v.AgentID, v.FilePath, string(v.Kind)))
		}
	}
	return violations
}
