package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/buildmaster/internal/events"
)

const maxEventLines = 8

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENTS"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	lines := make([]string, 0, maxEventLines)
	for i, e := range eventLog {
		if i >= maxEventLines {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENTS"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	var typeStyle lipgloss.Style
	switch e.Type {
	case events.BuilderSpawned:
		typeStyle = theme.StatusRunning
	case events.BuilderFailed:
		typeStyle = theme.StatusFailed
	case events.BuilderExited:
		typeStyle = theme.StatusOK
		if exitCode(e) != 0 {
			typeStyle = theme.StatusFailed
		}
	case events.ScriptChanged:
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.StatusIdle
	}

	ts := theme.Dim.Render(e.At.Format("15:04:05"))
	typeName := typeStyle.Render(fmt.Sprintf("%-20s", e.Type))
	return fmt.Sprintf("%s %s %s %s", ts, typeName, e.Builder, describeEvent(e))
}

// describeEvent summarizes an event's payload in a few words.
func describeEvent(e events.Event) string {
	data := make(map[string]any)
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}

	var parts []string
	if gen, ok := data["generation_id"].(string); ok && gen != "" {
		if len(gen) > 8 {
			gen = gen[:8]
		}
		parts = append(parts, "["+gen+"]")
	}
	if pid, ok := data["pid"].(float64); ok && pid > 0 {
		parts = append(parts, fmt.Sprintf("pid %d", int(pid)))
	}
	if status, ok := data["status"].(string); ok && status != "" {
		parts = append(parts, status)
	}
	if change, ok := data["change"].(string); ok {
		parts = append(parts, change)
	}
	if msg, ok := data["error"].(string); ok {
		if len(msg) > 60 {
			msg = msg[:60] + "..."
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, " ")
}

func exitCode(e events.Event) int {
	var p events.ExitPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return 0
	}
	return p.ExitCode
}
