package domain

// Experience tracks progress within a task's current level.
type Experience struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

type Task struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Icon       string     `json:"icon,omitempty"`
	JobType    string     `json:"job_type"`
	Level      int        `json:"level"`
	Experience Experience `json:"experience"`
	CreatedAt  string     `json:"created_at" format:"date-time"`
	UpdatedAt  string     `json:"updated_at" format:"date-time"`
}

// Session is one completed focus interval. Sessions are append-only;
// they are deleted only in bulk when their owning task is deleted.
// TaskType holds the task's display name snapshotted at completion time.
type Session struct {
	ID               string `json:"id"`
	TaskID           string `json:"task_id"`
	TaskType         string `json:"task_type"`
	Timestamp        int64  `json:"timestamp"`
	Duration         int    `json:"duration"`
	ExperiencePoints int    `json:"experience_points"`
}

type DailyStat struct {
	Date             string `json:"date"`
	SessionCount     int    `json:"session_count"`
	TotalDuration    int    `json:"total_duration"`
	ExperiencePoints int    `json:"experience_points"`
}

type TaskDistribution struct {
	TaskID       string `json:"task_id"`
	TaskType     string `json:"task_type"`
	SessionCount int    `json:"session_count"`
}

type Stats struct {
	DailyStats       []DailyStat        `json:"daily_stats"`
	TaskDistribution []TaskDistribution `json:"task_distribution"`
	StreakDays       int                `json:"streak_days"`
	TotalExperience  int                `json:"total_experience"`
}

// Skill is one unlockable ability from a job's skill list.
type Skill struct {
	Name        string `json:"name"`
	Level       int    `json:"level"`
	Description string `json:"description,omitempty"`
	Acquired    bool   `json:"acquired"`
}

// SkillProgress reports a task's standing against its job's skill list.
type SkillProgress struct {
	TaskID             string  `json:"task_id"`
	JobType            string  `json:"job_type"`
	Level              int     `json:"level"`
	Acquired           []Skill `json:"acquired"`
	Next               *Skill  `json:"next,omitempty"`
	ProgressPercentage float64 `json:"progress_percentage"`
	RemainingExp       int     `json:"remaining_exp"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
