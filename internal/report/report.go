// Package report renders a session's final report for the terminal. Every
// run, completed or aborted, ends with one of these so failures are never
// silent.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/swarmcoord/internal/swarm"
	"github.com/Iron-Ham/swarmcoord/internal/util"
)

var (
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#F87171") // Red
	warningColor = lipgloss.Color("#F59E0B") // Amber
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	primaryColor = lipgloss.Color("#A78BFA") // Purple

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
)

// Renderer writes human-readable reports.
type Renderer struct {
	width int
}

// NewRenderer creates a Renderer sized to the terminal, falling back to 80
// columns when stdout is not a terminal.
func NewRenderer() *Renderer {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	return &Renderer{width: width}
}

// Write renders the report to w.
func (rd *Renderer) Write(w io.Writer, r *swarm.Report) error {
	_, err := io.WriteString(w, rd.Render(r))
	return err
}

// WriteJSON writes the report as indented JSON, for machine consumers.
func WriteJSON(w io.Writer, r *swarm.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Render produces the full report text.
func (rd *Renderer) Render(r *swarm.Report) string {
	var b strings.Builder
	rule := mutedStyle.Render(strings.Repeat("─", min(rd.width, 100)))

	b.WriteString(titleStyle.Render("swarm "+r.SwarmID) + "\n")
	b.WriteString(rule + "\n")
	b.WriteString(mutedStyle.Render(util.TruncateANSI(r.Task, rd.width)) + "\n")
	b.WriteString(fmt.Sprintf("started %s, finished %s (%s)\n",
		r.StartedAt.Format(time.RFC3339),
		r.FinishedAt.Format(time.RFC3339),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))

	if r.Aborted {
		b.WriteString(errorStyle.Render("ABORTED") + " in phase " + string(r.PhaseReached) + "\n")
		if r.Reason != "" {
			b.WriteString("reason: " + r.Reason + "\n")
		}
		if r.Offender != "" {
			b.WriteString("offending entity: " + r.Offender + "\n")
		}
	} else {
		b.WriteString(successStyle.Render("COMPLETE") + "\n")
	}

	rd.renderAgents(&b, r)
	rd.renderConflicts(&b, r)
	rd.renderBatches(&b, r)
	rd.renderViolations(&b, r)
	rd.renderTransitions(&b, r)
	rd.renderAudit(&b, r)

	return b.String()
}

func (rd *Renderer) renderAgents(b *strings.Builder, r *swarm.Report) {
	if len(r.Agents) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Agents") + "\n")

	ids := make([]string, 0, len(r.Agents))
	for id := range r.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := r.Agents[id]
		line := fmt.Sprintf("  %-20s %-8s", id, st.Status)
		if st.Batch > 0 {
			line += fmt.Sprintf(" batch %d", st.Batch)
		}
		if st.Detail != "" {
			line += "  " + mutedStyle.Render(st.Detail)
		}
		b.WriteString(util.TruncateANSI(line, rd.width) + "\n")
	}
}

func (rd *Renderer) renderConflicts(b *strings.Builder, r *swarm.Report) {
	if len(r.Conflicts) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Conflicts") + "\n")
	for _, c := range r.Conflicts {
		b.WriteString(fmt.Sprintf("  %s\n", strings.Join(c.Files, ", ")))
		b.WriteString(fmt.Sprintf("    agents:   %s\n", strings.Join(c.Agents, ", ")))
		if c.Strategy != "" {
			b.WriteString(fmt.Sprintf("    strategy: %s\n", c.Strategy))
		}
		if c.Detail != "" {
			b.WriteString("    " + mutedStyle.Render(c.Detail) + "\n")
		}
	}
	if len(r.ManualMerge) > 0 {
		b.WriteString(warningStyle.Render("  manual merge required: "+strings.Join(r.ManualMerge, ", ")) + "\n")
	}
}

func (rd *Renderer) renderBatches(b *strings.Builder, r *swarm.Report) {
	if len(r.Batches) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Batches") + "\n")
	for _, batch := range r.Batches {
		agents := make([]string, 0, len(batch.Files))
		for id := range batch.Files {
			agents = append(agents, id)
		}
		sort.Strings(agents)
		b.WriteString(fmt.Sprintf("  batch %d\n", batch.Number))
		for _, id := range agents {
			b.WriteString(fmt.Sprintf("    %-20s %s\n", id, strings.Join(batch.Files[id], ", ")))
		}
	}
}

func (rd *Renderer) renderViolations(b *strings.Builder, r *swarm.Report) {
	if len(r.Violations) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Violations") + "\n")
	for _, v := range r.Violations {
		line := fmt.Sprintf("  %s: agent %s edited %s", v.Kind, v.AgentID, v.FilePath)
		if v.Claimant != "" {
			line += " (claimed by " + v.Claimant + ")"
		}
		b.WriteString(warningStyle.Render(line) + "\n")
	}
}

func (rd *Renderer) renderTransitions(b *strings.Builder, r *swarm.Report) {
	if len(r.Transitions) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Phases") + "\n")
	for _, tr := range r.Transitions {
		line := "  " + string(tr.To)
		if tr.From != "" {
			line = fmt.Sprintf("  %s -> %s", tr.From, tr.To)
		}
		line += "  " + mutedStyle.Render(tr.Timestamp.Format(time.RFC3339))
		if tr.Reason != "" {
			line += "  " + mutedStyle.Render(tr.Reason)
		}
		b.WriteString(line + "\n")
	}
}

func (rd *Renderer) renderAudit(b *strings.Builder, r *swarm.Report) {
	if len(r.Audit) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("Claim audit trail") + "\n")
	for _, rec := range r.Audit {
		b.WriteString(fmt.Sprintf("  #%-4d %-9s %-30s %s  %s\n",
			rec.Seq,
			rec.Status,
			rec.FilePath,
			rec.AgentID,
			mutedStyle.Render(rec.RecordedAt.Format(time.RFC3339)),
		))
	}
}
