package engine

import "time"

// EventType names what happened during a run
type EventType string

const (
	EventRunStarted  EventType = "run_started"
	EventWordTyped   EventType = "word_typed"
	EventLineBreak   EventType = "line_break"
	EventRunFinished EventType = "run_finished"
)

// Reasons a run finishes
const (
	ReasonQueueEmpty = "queue_empty"
	ReasonStopped    = "stopped"
)

// Event is published to the engine's sink as a run progresses
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	Word     string    `json:"word,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Time     time.Time `json:"time"`
}
