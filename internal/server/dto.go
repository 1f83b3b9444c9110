package server

import (
	"focusquest/internal/config"
	"focusquest/internal/domain"
)

// Request payloads

type CreateTaskRequest struct {
	ID      *string `json:"id,omitempty"`
	Name    string  `json:"name"`
	Icon    *string `json:"icon,omitempty"`
	JobType string  `json:"job_type" enum:"warrior,mage,priest,sage"`
}

type UpdateTaskRequest struct {
	Name    *string `json:"name,omitempty"`
	Icon    *string `json:"icon,omitempty"`
	JobType *string `json:"job_type,omitempty" enum:"warrior,mage,priest,sage"`
}

type CompleteSessionRequest struct {
	TaskID          string `json:"task_id"`
	DurationSeconds *int   `json:"duration_seconds,omitempty" minimum:"1"`
	Timestamp       *int64 `json:"timestamp,omitempty"`
}

type ImportSettingsRequest struct {
	Config config.Config `json:"config"`
}

// Response payloads

type ExperienceResponse struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

type TaskResponse struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Icon       string             `json:"icon,omitempty"`
	JobType    string             `json:"job_type" enum:"warrior,mage,priest,sage"`
	Level      int                `json:"level"`
	Experience ExperienceResponse `json:"experience"`
	CreatedAt  string             `json:"created_at" format:"date-time"`
	UpdatedAt  string             `json:"updated_at" format:"date-time"`
}

type SessionResponse struct {
	ID               string `json:"id"`
	TaskID           string `json:"task_id"`
	TaskType         string `json:"task_type"`
	Timestamp        int64  `json:"timestamp"`
	Duration         int    `json:"duration"`
	ExperiencePoints int    `json:"experience_points"`
}

type CompleteSessionResponse struct {
	Session   SessionResponse `json:"session"`
	Task      TaskResponse    `json:"task"`
	LeveledUp bool            `json:"leveled_up"`
	Message   string          `json:"message,omitempty"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json,omitempty"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:      t.ID,
		Name:    t.Name,
		Icon:    t.Icon,
		JobType: t.JobType,
		Level:   t.Level,
		Experience: ExperienceResponse{
			Current: t.Experience.Current,
			Max:     t.Experience.Max,
		},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	res := []TaskResponse{}
	for _, t := range tasks {
		res = append(res, taskResponse(t))
	}
	return res
}

func sessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		TaskID:           s.TaskID,
		TaskType:         s.TaskType,
		Timestamp:        s.Timestamp,
		Duration:         s.Duration,
		ExperiencePoints: s.ExperiencePoints,
	}
}

func mapSessions(sessions []domain.Session) []SessionResponse {
	res := []SessionResponse{}
	for _, s := range sessions {
		res = append(res, sessionResponse(s))
	}
	return res
}

func mapEvents(events []domain.Event) []EventResponse {
	res := []EventResponse{}
	for _, e := range events {
		res = append(res, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return res
}
