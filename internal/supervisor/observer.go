package supervisor

import "time"

// GenerationInfo identifies one spawn of a builder.
type GenerationInfo struct {
	Builder     string
	ID          string
	PID         int
	StartedAt   time.Time
	Fingerprint string
}

// Exit describes how a generation's process ended.
type Exit struct {
	Code   int
	Status string
	At     time.Time
}

// Observer is told about builder lifecycle transitions. Calls may come from
// any goroutine and must not block for long.
type Observer interface {
	Spawned(info GenerationInfo)
	// Stopped is called when a generation is signalled; reason is
	// "redeploy" or "terminate".
	Stopped(info GenerationInfo, reason string)
	Exited(info GenerationInfo, exit Exit)
	Failed(name string, err error)
}

// Observers fans every call out to each member in order.
type Observers []Observer

func (obs Observers) Spawned(info GenerationInfo) {
	for _, o := range obs {
		o.Spawned(info)
	}
}

func (obs Observers) Stopped(info GenerationInfo, reason string) {
	for _, o := range obs {
		o.Stopped(info, reason)
	}
}

func (obs Observers) Exited(info GenerationInfo, exit Exit) {
	for _, o := range obs {
		o.Exited(info, exit)
	}
}

func (obs Observers) Failed(name string, err error) {
	for _, o := range obs {
		o.Failed(name, err)
	}
}
