// Package publisher defines the change event emitted after a status transition is
// persisted.
package publisher

import (
	"context"
	"time"
)

// ChangeEvent describes one detected status transition.
type ChangeEvent struct {
	EventID      string    `json:"event_id"`
	InvocationID string    `json:"invocation_id"`
	HomeworkID   int64     `json:"homework_id"`
	HomeworkName string    `json:"homework_name"`
	Status       string    `json:"status"`
	LessonName   string    `json:"lesson_name,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Publisher emits change events to a downstream channel.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) (string, error)
}
