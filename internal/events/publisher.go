package events

import (
	"time"

	"github.com/mattjoyce/buildmaster/internal/scripts"
	"github.com/mattjoyce/buildmaster/internal/supervisor"
)

// Event types published to the hub.
const (
	BuilderSpawned    = "builder.spawned"
	BuilderRedeployed = "builder.redeployed"
	BuilderExited     = "builder.exited"
	BuilderTerminated = "builder.terminated"
	BuilderFailed     = "builder.failed"
	ScriptChanged     = "script.changed"
)

// GenerationPayload is the data of builder.spawned, builder.redeployed and
// builder.terminated events.
type GenerationPayload struct {
	GenerationID string    `json:"generation_id"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
}

// ExitPayload is the data of builder.exited events.
type ExitPayload struct {
	GenerationID string    `json:"generation_id"`
	PID          int       `json:"pid"`
	ExitCode     int       `json:"exit_code"`
	Status       string    `json:"status"`
	ExitedAt     time.Time `json:"exited_at"`
}

// FailedPayload is the data of builder.failed events.
type FailedPayload struct {
	Error string `json:"error"`
}

// ChangePayload is the data of script.changed events.
type ChangePayload struct {
	Change string `json:"change"`
}

// Publisher turns builder lifecycle callbacks into hub events.
type Publisher struct {
	hub *Hub
}

var _ supervisor.Observer = (*Publisher)(nil)

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

func (p *Publisher) Spawned(info supervisor.GenerationInfo) {
	p.hub.Publish(BuilderSpawned, info.Builder, generationPayload(info))
}

// Stopped publishes builder.redeployed for a redeploy and
// builder.terminated otherwise.
func (p *Publisher) Stopped(info supervisor.GenerationInfo, reason string) {
	eventType := BuilderTerminated
	if reason == "redeploy" {
		eventType = BuilderRedeployed
	}
	p.hub.Publish(eventType, info.Builder, generationPayload(info))
}

func (p *Publisher) Exited(info supervisor.GenerationInfo, exit supervisor.Exit) {
	p.hub.Publish(BuilderExited, info.Builder, ExitPayload{
		GenerationID: info.ID,
		PID:          info.PID,
		ExitCode:     exit.Code,
		Status:       exit.Status,
		ExitedAt:     exit.At,
	})
}

func (p *Publisher) Failed(name string, err error) {
	p.hub.Publish(BuilderFailed, name, FailedPayload{Error: err.Error()})
}

// ScriptChanged publishes a scripts directory change. It has the signature
// scripts.Dir.Watch expects.
func (p *Publisher) ScriptChanged(c scripts.Change) {
	p.hub.Publish(ScriptChanged, c.Name, ChangePayload{Change: string(c.Kind)})
}

func generationPayload(info supervisor.GenerationInfo) GenerationPayload {
	return GenerationPayload{
		GenerationID: info.ID,
		PID:          info.PID,
		StartedAt:    info.StartedAt,
		Fingerprint:  info.Fingerprint,
	}
}
