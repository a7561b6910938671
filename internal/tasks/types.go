package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypePushNotify   = "notify:push"
	TypeIdeaGenerate = "ideas:generate"
	TypeReminderTick = "reminder:tick"
)

// PushNotifyPayload fans one notification out to a jar's members. ActorID is
// excluded from delivery so users are not notified about their own actions.
type PushNotifyPayload struct {
	JarID   uuid.UUID         `json:"jar_id"`
	ActorID uuid.UUID         `json:"actor_id"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

func NewPushNotifyTask(payload PushNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePushNotify, data), nil
}

// IdeaGeneratePayload asks the planner to fill a jar from a free-text prompt.
type IdeaGeneratePayload struct {
	JarID  uuid.UUID `json:"jar_id"`
	UserID uuid.UUID `json:"user_id"`
	Prompt string    `json:"prompt"`
	Count  int       `json:"count"`
}

func NewIdeaGenerateTask(payload IdeaGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIdeaGenerate, data), nil
}

// ReminderTickPayload is empty - the tick sweeps all due reminders.
type ReminderTickPayload struct{}

func NewReminderTickTask() *asynq.Task {
	return asynq.NewTask(TypeReminderTick, nil)
}
