package api

import (
	"time"

	"github.com/mattjoyce/buildmaster/internal/storage"
)

// BuilderResponse is returned by GET /builders/{name}.
type BuilderResponse struct {
	Name         string     `json:"name"`
	GenerationID string     `json:"generation_id"`
	PID          int        `json:"pid"`
	StartedAt    time.Time  `json:"started_at"`
	Running      bool       `json:"running"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	ExitStatus   string     `json:"exit_status,omitempty"`
	ExitedAt     *time.Time `json:"exited_at,omitempty"`
	Fingerprint  string     `json:"fingerprint,omitempty"`
	Stdout       string     `json:"stdout"`
	Stderr       string     `json:"stderr"`
	Summary      string     `json:"summary,omitempty"`
	// DescriptionHTML is the script's header comment rendered as markdown.
	DescriptionHTML string `json:"description_html,omitempty"`
}

// BuilderSummary is one entry of GET /builders.
type BuilderSummary struct {
	Name         string `json:"name"`
	Running      bool   `json:"running"`
	GenerationID string `json:"generation_id,omitempty"`
	PID          int    `json:"pid,omitempty"`
}

// BuilderListResponse is returned by GET /builders.
type BuilderListResponse struct {
	Builders []BuilderSummary `json:"builders"`
}

// RedeployResponse is returned after a redeploy.
type RedeployResponse struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	GenerationID string `json:"generation_id,omitempty"`
}

// HistoryResponse is returned by GET /builders/{name}/history.
type HistoryResponse struct {
	Name        string               `json:"name"`
	Deployments []storage.Deployment `json:"deployments"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	BuildersRunning int    `json:"builders_running"`
	ScriptsKnown    int    `json:"scripts_known"`
}
