package focusquestsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal FocusQuest HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Experience is a task's progress within its current level.
type Experience struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Task represents the API task model.
type Task struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Icon       string     `json:"icon,omitempty"`
	JobType    string     `json:"job_type"`
	Level      int        `json:"level"`
	Experience Experience `json:"experience"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

// Session is one completed focus session.
type Session struct {
	ID               string `json:"id"`
	TaskID           string `json:"task_id"`
	TaskType         string `json:"task_type"`
	Timestamp        int64  `json:"timestamp"`
	Duration         int    `json:"duration"`
	ExperiencePoints int    `json:"experience_points"`
}

// SessionResult is the outcome of recording a session.
type SessionResult struct {
	Session   Session `json:"session"`
	Task      Task    `json:"task"`
	LeveledUp bool    `json:"leveled_up"`
	Message   string  `json:"message,omitempty"`
}

// DailyStat is one day's rollup.
type DailyStat struct {
	Date             string `json:"date"`
	SessionCount     int    `json:"session_count"`
	TotalDuration    int    `json:"total_duration"`
	ExperiencePoints int    `json:"experience_points"`
}

// TaskDistribution counts sessions per task.
type TaskDistribution struct {
	TaskID       string `json:"task_id,omitempty"`
	TaskType     string `json:"task_type"`
	SessionCount int    `json:"session_count"`
}

// Stats is the aggregate dashboard payload.
type Stats struct {
	DailyStats       []DailyStat        `json:"daily_stats"`
	TaskDistribution []TaskDistribution `json:"task_distribution"`
	StreakDays       int                `json:"streak_days"`
	TotalExperience  int                `json:"total_experience"`
}

// Skill is one unlockable ability.
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

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, name, jobType string) (Task, error) {
	body := map[string]any{
		"name":     name,
		"job_type": jobType,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// ListTasks returns all tasks.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "v0/tasks", nil, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "v0/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteTask removes a task and its session log.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/tasks/"+url.PathEscape(id), nil, nil)
}

// CompleteSession records a finished focus session for a task.
func (c *Client) CompleteSession(ctx context.Context, taskID string, durationSeconds int) (SessionResult, error) {
	body := map[string]any{"task_id": taskID}
	if durationSeconds > 0 {
		body["duration_seconds"] = durationSeconds
	}
	var resp SessionResult
	err := c.do(ctx, http.MethodPost, "v0/sessions", body, &resp)
	return resp, err
}

// Stats returns aggregate statistics over a trailing day window.
func (c *Client) Stats(ctx context.Context, days int) (Stats, error) {
	endpoint := "v0/stats"
	if days > 0 {
		endpoint = fmt.Sprintf("%s?days=%d", endpoint, days)
	}
	var resp Stats
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SkillProgress returns the skill standing for a task.
func (c *Client) SkillProgress(ctx context.Context, taskID string) (SkillProgress, error) {
	var resp SkillProgress
	endpoint := fmt.Sprintf("v0/tasks/%s/skills", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
