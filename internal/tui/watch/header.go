package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks service health from /healthz polling.
type HealthState struct {
	Status          string
	UptimeSeconds   int64
	BuildersRunning int
	ScriptsKnown    int
	Connected       bool
	LastCheck       time.Time
	LastEvent       time.Time
}

// activityWindow is how long the activity dot stays lit after an event.
const activityWindow = 2 * time.Second

func renderHeader(health HealthState, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.StatusOK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusFailed.Render("DEGRADED")
	}

	clock := theme.Dim.Render(now.Format("15:04:05"))
	titleText := " BUILDMASTER WATCH"
	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  up %s  running: %d  scripts: %d",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		health.BuildersRunning,
		health.ScriptsKnown,
	)

	lastEvent := "never"
	dot := theme.ActivityOff.Render("●")
	if !health.LastEvent.IsZero() {
		lastEvent = fmt.Sprintf("%s ago", now.Sub(health.LastEvent).Round(time.Second))
		if now.Sub(health.LastEvent) < activityWindow {
			dot = theme.ActivityOn.Render("●")
		}
	}
	activityLine := fmt.Sprintf(" Last event: %s %s", lastEvent, dot)

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
