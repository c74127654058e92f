package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/buildmaster/internal/api"
	"github.com/mattjoyce/buildmaster/internal/events"
)

func newBuilderTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Builder", Width: 24},
			{Title: "Generation", Width: 10},
			{Title: "PID", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func builderRows(builders []api.BuilderSummary) []table.Row {
	rows := make([]table.Row, 0, len(builders))
	for _, b := range builders {
		st, gen, pid := "·", "", ""
		if b.Running {
			st = "▶"
		}
		if b.GenerationID != "" {
			gen = b.GenerationID
			if len(gen) > 8 {
				gen = gen[:8]
			}
			pid = fmt.Sprintf("%d", b.PID)
		}
		rows = append(rows, table.Row{st, b.Name, gen, pid})
	}
	return rows
}

// applyEvent updates the builder list from a lifecycle event. It reports
// false when the event names a builder the list does not know, in which case
// the list should be refetched.
func applyEvent(builders []api.BuilderSummary, e events.Event) ([]api.BuilderSummary, bool) {
	if e.Builder == "" {
		return builders, e.Type != events.ScriptChanged
	}

	i := sort.Search(len(builders), func(i int) bool { return builders[i].Name >= e.Builder })
	if i == len(builders) || builders[i].Name != e.Builder {
		return builders, false
	}
	b := &builders[i]

	switch e.Type {
	case events.BuilderSpawned:
		var p events.GenerationPayload
		if err := json.Unmarshal(e.Data, &p); err == nil {
			b.GenerationID, b.PID = p.GenerationID, p.PID
		}
		b.Running = true
	case events.BuilderExited:
		var p events.ExitPayload
		if err := json.Unmarshal(e.Data, &p); err == nil && p.GenerationID != b.GenerationID {
			// Exit of a replaced generation.
			return builders, true
		}
		b.Running = false
	case events.BuilderTerminated, events.BuilderFailed:
		b.Running = false
		b.GenerationID, b.PID = "", 0
	case events.ScriptChanged:
		return builders, false
	}
	return builders, true
}

func renderBuilders(t table.Model, theme Theme, width int) string {
	innerWidth := width - 4
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("BUILDERS"),
		t.View(),
	)
	return theme.Border.Width(innerWidth).Render(content)
}

// formatOutput renders a builder's drained output for the viewport.
func formatOutput(b api.BuilderResponse, theme Theme) string {
	var sb strings.Builder

	if b.Summary != "" {
		sb.WriteString(theme.Dim.Render(b.Summary))
		sb.WriteString("\n\n")
	}
	sb.WriteString(strings.TrimRight(b.Stdout, "\n"))
	if b.Stderr != "" {
		if b.Stdout != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(theme.Stderr.Render(strings.TrimRight(b.Stderr, "\n")))
	}

	switch {
	case b.Running:
	case b.ExitCode != nil && *b.ExitCode == 0:
		sb.WriteString("\n" + theme.StatusOK.Render(fmt.Sprintf("-- %s --", b.ExitStatus)))
	case b.ExitCode != nil:
		sb.WriteString("\n" + theme.StatusFailed.Render(fmt.Sprintf("-- %s --", b.ExitStatus)))
	}
	return sb.String()
}
